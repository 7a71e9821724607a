package secrets

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Scrubber detects and redacts secrets from tool output.
type Scrubber interface {
	// Scrub redacts secrets from the content.
	Scrub(content string) *Result

	// ScrubValue walks a decoded JSON value and redacts every string leaf.
	// Maps and slices are copied, not mutated in place.
	ScrubValue(v any) any

	// Check detects secrets without redacting.
	Check(content string) *Result

	// IsEnabled reports whether scrubbing is active.
	IsEnabled() bool
}

type scrubber struct {
	config *Config
	deep   *deepScanner
	mu     sync.RWMutex
}

type redaction struct {
	start, end int
}

// New creates a Scrubber. A nil config means DefaultConfig().
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &scrubber{config: cfg}
	if cfg.Enabled && cfg.DeepScan {
		deep, err := newDeepScanner()
		if err != nil {
			return nil, err
		}
		s.deep = deep
	}
	return s, nil
}

// MustNew creates a Scrubber, panicking on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *scrubber) Scrub(content string) *Result {
	result := &Result{
		Original: content,
		Scrubbed: content,
		ByRule:   make(map[string]int),
	}
	if !s.config.Enabled {
		return result
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var redactions []redaction

	for _, rule := range s.config.compiledRules {
		if len(rule.keywords) > 0 && !anyKeyword(rule.keywords, content) {
			continue
		}
		for _, match := range rule.pattern.FindAllStringIndex(content, -1) {
			matchStr := content[match[0]:match[1]]
			if s.isAllowed(matchStr) {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				StartIndex:  match[0],
				EndIndex:    match[1],
				Line:        strings.Count(content[:match[0]], "\n") + 1,
			})
			result.ByRule[rule.ID]++
			redactions = append(redactions, redaction{start: match[0], end: match[1]})
		}
	}

	if s.deep != nil {
		for _, f := range s.deep.scan(content) {
			if s.isAllowed(content[f.StartIndex:f.EndIndex]) {
				continue
			}
			result.Findings = append(result.Findings, f)
			result.ByRule[f.RuleID]++
			redactions = append(redactions, redaction{start: f.StartIndex, end: f.EndIndex})
		}
	}

	result.TotalFindings = len(result.Findings)

	if len(redactions) > 0 {
		merged := mergeRedactions(redactions)
		// Apply back to front so earlier indexes stay valid.
		scrubbed := content
		for i := len(merged) - 1; i >= 0; i-- {
			r := merged[i]
			if r.start >= 0 && r.end <= len(scrubbed) && r.start < r.end {
				scrubbed = scrubbed[:r.start] + Mask + scrubbed[r.end:]
			}
		}
		result.Scrubbed = scrubbed
	}
	return result
}

func (s *scrubber) ScrubValue(v any) any {
	if !s.config.Enabled {
		return v
	}
	switch val := v.(type) {
	case string:
		return s.Scrub(val).Scrubbed
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = s.ScrubValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = s.ScrubValue(elem)
		}
		return out
	default:
		return v
	}
}

func (s *scrubber) Check(content string) *Result {
	result := s.Scrub(content)
	result.Scrubbed = result.Original
	return result
}

func (s *scrubber) IsEnabled() bool {
	return s.config.Enabled
}

func (s *scrubber) isAllowed(match string) bool {
	for _, pattern := range s.config.compiledAllowList {
		if pattern.MatchString(match) {
			return true
		}
	}
	return false
}

func anyKeyword(keywords []*regexp.Regexp, content string) bool {
	for _, kw := range keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func mergeRedactions(redactions []redaction) []redaction {
	sort.Slice(redactions, func(i, j int) bool {
		return redactions[i].start < redactions[j].start
	})
	merged := []redaction{redactions[0]}
	for _, curr := range redactions[1:] {
		last := &merged[len(merged)-1]
		if curr.start <= last.end {
			if curr.end > last.end {
				last.end = curr.end
			}
		} else {
			merged = append(merged, curr)
		}
	}
	return merged
}

// Noop is a disabled scrubber for tests and opt-out configurations.
type Noop struct{}

func (Noop) Scrub(content string) *Result {
	return &Result{Original: content, Scrubbed: content, ByRule: map[string]int{}}
}

func (Noop) ScrubValue(v any) any { return v }

func (n Noop) Check(content string) *Result { return n.Scrub(content) }

func (Noop) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
