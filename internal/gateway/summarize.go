package gateway

const (
	maxSummaryString = 6000
	maxSummaryItems  = 5
)

// summarizeResult caps large action results before they reach the session
// transcript: long strings are truncated and lists are cut to their first
// items with a sibling "<key>_summary" recording shown and total counts.
func summarizeResult(value any) any {
	switch v := value.(type) {
	case string:
		return truncateString(v, maxSummaryString)
	case []any:
		trimmed := v
		if len(trimmed) > maxSummaryItems {
			trimmed = trimmed[:maxSummaryItems]
		}
		out := make([]any, len(trimmed))
		for i, item := range trimmed {
			out[i] = summarizeResult(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if list, ok := item.([]any); ok {
				total := len(list)
				out[key] = summarizeResult(list)
				if total > maxSummaryItems {
					out[key+"_summary"] = map[string]any{
						"shown": maxSummaryItems,
						"total": total,
					}
				}
				continue
			}
			out[key] = summarizeResult(item)
		}
		return out
	default:
		return value
	}
}

func truncateString(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= 3 {
		return s[:limit]
	}
	return s[:limit-3] + "..."
}
