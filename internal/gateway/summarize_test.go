package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeResult_TruncatesLongStrings(t *testing.T) {
	in := map[string]any{"stdout": strings.Repeat("a", maxSummaryString+100)}

	out := summarizeResult(in).(map[string]any)
	s := out["stdout"].(string)
	assert.Len(t, s, maxSummaryString)
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestSummarizeResult_CapsListsWithSummary(t *testing.T) {
	items := make([]any, 12)
	for i := range items {
		items[i] = i
	}
	in := map[string]any{"buckets": items, "count": 12}

	out := summarizeResult(in).(map[string]any)
	assert.Len(t, out["buckets"], maxSummaryItems)
	assert.Equal(t, map[string]any{"shown": maxSummaryItems, "total": 12}, out["buckets_summary"])
	assert.Equal(t, 12, out["count"])
}

func TestSummarizeResult_LeavesSmallResultsAlone(t *testing.T) {
	in := map[string]any{
		"instances": []any{"i-1"},
		"status":    "ok",
		"nested":    map[string]any{"region": "us-east-1"},
	}

	out := summarizeResult(in).(map[string]any)
	assert.Equal(t, in, out)
	_, hasSummary := out["instances_summary"]
	assert.False(t, hasSummary)
}

func TestSummarizeResult_RecursesIntoNestedMaps(t *testing.T) {
	inner := make([]any, 9)
	for i := range inner {
		inner[i] = map[string]any{"id": i}
	}
	in := map[string]any{"page": map[string]any{"objects": inner}}

	out := summarizeResult(in).(map[string]any)
	page := out["page"].(map[string]any)
	assert.Len(t, page["objects"], maxSummaryItems)
	assert.Equal(t, map[string]any{"shown": maxSummaryItems, "total": 9}, page["objects_summary"])
}

func TestSanitizeParams(t *testing.T) {
	out := SanitizeParams(map[string]any{
		"bucket_name":    "artifacts",
		"key_name":       "deploy-key",
		"api_token":      "abc123",
		"password":       "hunter2",
		"aws_secret_key": "xyz",
		"region":         "us-east-1",
	})

	assert.Equal(t, "artifacts", out["bucket_name"])
	assert.Equal(t, "deploy-key", out["key_name"])
	assert.Equal(t, "us-east-1", out["region"])
	assert.NotEqual(t, "abc123", out["api_token"])
	assert.NotEqual(t, "hunter2", out["password"])
	assert.NotEqual(t, "xyz", out["aws_secret_key"])
}
