package secrets

import (
	"fmt"
	"regexp"
)

// Mask replaces every detected secret. A fixed string keeps redacted output
// from leaking secret length.
const Mask = "[REDACTED]"

// Rule is a single detection pattern.
type Rule struct {
	// ID identifies the rule in findings and audit events.
	ID string `koanf:"id"`

	// Description explains what the rule detects.
	Description string `koanf:"description"`

	// Pattern is the regular expression matched against content.
	Pattern string `koanf:"pattern"`

	// Keywords, when set, must appear in the content (case-insensitive)
	// before the pattern is evaluated. Cheap pre-filter for broad patterns.
	Keywords []string `koanf:"keywords"`

	// Severity is "high", "medium", or "low".
	Severity string `koanf:"severity"`
}

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active.
	Enabled bool `koanf:"enabled"`

	// Rules are the detection rules. Empty means DefaultRules().
	Rules []Rule `koanf:"rules"`

	// AllowList patterns exempt matches from redaction.
	AllowList []string `koanf:"allow_list"`

	// DeepScan runs the gitleaks detector in addition to the rules.
	DeepScan bool `koanf:"deep_scan"`

	compiledRules     []*compiledRule
	compiledAllowList []*regexp.Regexp
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled config with the standard rules.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Rules:   DefaultRules(),
	}
}

// Validate compiles the rules and allow list.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		compiled := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			kwPattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(kw))
			if err != nil {
				return fmt.Errorf("rule %s: invalid keyword %q: %w", rule.ID, kw, err)
			}
			compiled.keywords = append(compiled.keywords, kwPattern)
		}
		c.compiledRules = append(c.compiledRules, compiled)
	}

	c.compiledAllowList = make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		c.compiledAllowList = append(c.compiledAllowList, compiled)
	}
	return nil
}
