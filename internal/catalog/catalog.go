// Package catalog defines the closed set of actions the tool gateway will
// execute. Every action is registered statically with its category, rate
// class, destructive flag, and parameter validation. Unknown actions are
// rejected at lookup, never dispatched.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// Category groups actions by the subsystem they touch.
type Category string

const (
	CategoryCompute    Category = "compute"
	CategoryStorage    Category = "storage"
	CategoryFunctions  Category = "functions"
	CategoryContainers Category = "containers"
	CategoryRepository Category = "repository"
	CategoryShell      Category = "shell"
)

// Class selects the admission-control path an action takes through the
// gateway.
type Class string

const (
	// ClassExternal actions call a cloud provider API and consume the
	// per-caller external token bucket.
	ClassExternal Class = "external"
	// ClassShell actions run local commands (clone, package) and carry the
	// hard wall-clock timeout.
	ClassShell Class = "shell"
)

// ErrUnknownAction is returned by Lookup for names outside the catalog.
var ErrUnknownAction = errors.New("unknown action")

// ValidationError reports missing or malformed parameters. Recoverable: the
// caller re-prompts rather than failing the session.
type ValidationError struct {
	Action string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Reason)
}

func validationErr(action, format string, args ...any) error {
	return &ValidationError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// Definition describes one catalog action.
type Definition struct {
	Name     string
	Category Category
	Class    Class

	// Destructive actions terminate, delete, or mutate a live resource's
	// running state and require confirm == true.
	Destructive bool

	// Validate checks params before dispatch. Nil means no validation.
	Validate func(params map[string]any) error

	// Compensate derives the compensating action for a committed effect.
	// It receives the original params and the action's result and returns
	// the compensating action name and params, or ok == false when the
	// effect needs no compensation.
	Compensate func(params, result map[string]any) (name string, cparams map[string]any, ok bool)
}

// Catalog is an immutable action registry.
type Catalog struct {
	defs map[string]*Definition
}

// New builds a catalog from definitions. Duplicate names are an error.
func New(defs []*Definition) (*Catalog, error) {
	byName := make(map[string]*Definition, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, errors.New("catalog: definition with empty name")
		}
		if _, dup := byName[def.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate action %q", def.Name)
		}
		byName[def.Name] = def
	}
	return &Catalog{defs: byName}, nil
}

// MustNew builds a catalog, panicking on error. For static registries.
func MustNew(defs []*Definition) *Catalog {
	c, err := New(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the definition for name or ErrUnknownAction.
func (c *Catalog) Lookup(name string) (*Definition, error) {
	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownAction, name, c.Names())
	}
	return def, nil
}

// Names returns all action names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered actions.
func (c *Catalog) Len() int {
	return len(c.defs)
}
