package secrets

import (
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
)

// deepScanner runs the gitleaks detector with its default ruleset over
// content already checked by the built-in rules. Detector construction is
// expensive, so one instance is built per scrubber and reused.
type deepScanner struct {
	detector *detect.Detector
}

func newDeepScanner() (*deepScanner, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, err
	}
	return &deepScanner{detector: detector}, nil
}

// scan converts gitleaks findings into position-based findings. Positions
// are recovered by searching for the reported secret text; a secret that
// cannot be located is skipped rather than guessed at.
func (d *deepScanner) scan(content string) []Finding {
	raw := d.detector.DetectString(content)
	findings := make([]Finding, 0, len(raw))
	offset := 0
	for _, f := range raw {
		if f.Secret == "" {
			continue
		}
		idx := strings.Index(content[offset:], f.Secret)
		if idx < 0 {
			idx = strings.Index(content, f.Secret)
			if idx < 0 {
				continue
			}
		} else {
			idx += offset
		}
		findings = append(findings, Finding{
			RuleID:      "gitleaks/" + f.RuleID,
			Description: f.Description,
			Severity:    "high",
			StartIndex:  idx,
			EndIndex:    idx + len(f.Secret),
			Line:        strings.Count(content[:idx], "\n") + 1,
		})
		offset = idx + len(f.Secret)
	}
	return findings
}
