package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// stringParam returns params[key] as a non-empty string.
func stringParam(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func hasParam(params map[string]any, key string) bool {
	v, ok := params[key]
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func requireParams(action string, params map[string]any, keys ...string) error {
	for _, key := range keys {
		if !hasParam(params, key) {
			return validationErr(action, "%q parameter is required", key)
		}
	}
	return nil
}

// EnsureList coerces a parameter into a slice. Strings are parsed as JSON
// arrays when bracketed, otherwise split on commas.
func EnsureList(value any) ([]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if strings.HasPrefix(trimmed, "[") {
			var parsed []any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
				return nil, fmt.Errorf("invalid list value: %w", err)
			}
			return parsed, nil
		}
		var out []any
		for _, item := range strings.Split(trimmed, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	default:
		return []any{value}, nil
	}
}

// EnsureMap coerces a parameter into a map. Strings are parsed as JSON
// objects.
func EnsureMap(value any) (map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return v, nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil, nil
		}
		if !strings.HasPrefix(trimmed, "{") {
			return nil, fmt.Errorf("expected object value, got %q", trimmed)
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
			return nil, fmt.Errorf("invalid object value: %w", err)
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("expected object value, got %T", value)
	}
}

// validImageFilterPrefixes is the allowlist of filter names accepted for
// image describe calls. Narrowing the query surface keeps planning-stage
// lookups from turning into open-ended scans.
var validImageFilterPrefixes = map[string]struct{}{
	"architecture":         {},
	"block-device-mapping": {},
	"description":          {},
	"image-id":             {},
	"image-type":           {},
	"is-public":            {},
	"name":                 {},
	"owner-alias":          {},
	"owner-id":             {},
	"platform":             {},
	"root-device-type":     {},
	"state":                {},
	"tag":                  {},
	"virtualization-type":  {},
}

// ValidateImageFilter checks a describe-images filter name against the
// allowlist. Filter names of the form "tag:<key>" are always accepted.
func ValidateImageFilter(name string) error {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "tag:") {
		return nil
	}
	for prefix := range validImageFilterPrefixes {
		if lower == prefix || strings.HasPrefix(lower, prefix+".") {
			return nil
		}
	}
	return fmt.Errorf("unsupported filter name %q for describe_images", name)
}

// NormalizeFilters coerces filters given as structured maps or "name=v1,v2"
// strings into a uniform list, validating each name.
func NormalizeFilters(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return NormalizeFilters([]any{v})
	case string:
		return NormalizeFilters([]any{v})
	case []any:
		var filters []map[string]any
		for _, entry := range v {
			switch e := entry.(type) {
			case map[string]any:
				name := stringParam(e, "Name")
				if name == "" {
					name = stringParam(e, "name")
				}
				values, err := EnsureList(firstOf(e, "Values", "values"))
				if err != nil {
					return nil, err
				}
				if name == "" || len(values) == 0 {
					continue
				}
				if err := ValidateImageFilter(name); err != nil {
					return nil, err
				}
				filters = append(filters, map[string]any{"Name": name, "Values": values})
			case string:
				name, rawValues, found := strings.Cut(e, "=")
				if !found {
					continue
				}
				name = strings.TrimSpace(name)
				var values []any
				for _, item := range strings.Split(rawValues, ",") {
					if item = strings.TrimSpace(item); item != "" {
						values = append(values, item)
					}
				}
				if name == "" || len(values) == 0 {
					continue
				}
				if err := ValidateImageFilter(name); err != nil {
					return nil, err
				}
				filters = append(filters, map[string]any{"Name": name, "Values": values})
			}
		}
		return filters, nil
	default:
		return nil, fmt.Errorf("filters must be a list, object, or \"name=value\" string")
	}
}

func firstOf(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return nil
}

// ValidateBucketName enforces virtual-hosted-style bucket naming: 3-63
// characters, lowercase letters, digits and hyphens only, no periods or
// underscores, starting and ending alphanumeric.
func ValidateBucketName(name string) error {
	if name == "" {
		return fmt.Errorf("bucket name is required")
	}
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("bucket name must be between 3 and 63 characters")
	}
	if strings.ToLower(name) != name {
		return fmt.Errorf("bucket names must use lowercase letters only")
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("bucket names must not contain periods")
	}
	if strings.Contains(name, "_") {
		return fmt.Errorf("bucket names cannot include underscores, use hyphens instead")
	}
	if !bucketNamePattern.MatchString(name) {
		return fmt.Errorf("bucket names may contain only lowercase letters, numbers, and hyphens, and must start and end with a letter or number")
	}
	return nil
}
