package domain

import (
	"encoding/json"
	"regexp"
	"strings"
)

var reviewBlockRe = regexp.MustCompile(`(?s)<review>(.*?)</review>`)

// ParseReview extracts and strictly parses the first <review> block from
// assistant text. ok=false means the text carries no usable review
func ParseReview(text string) (ReviewResult, bool) {
	m := reviewBlockRe.FindStringSubmatch(text)
	if m == nil {
		return ReviewResult{}, false
	}
	body := stripFence(strings.TrimSpace(m[1]))

	var raw struct {
		Verdict  string            `json:"verdict"`
		Summary  string            `json:"summary"`
		Findings []json.RawMessage `json:"findings"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return ReviewResult{}, false
	}

	switch Verdict(raw.Verdict) {
	case VerdictApprove, VerdictRequestChanges, VerdictComment:
	default:
		return ReviewResult{}, false
	}

	var findings []Finding
	for _, fr := range raw.Findings {
		if f, ok := parseFinding(fr); ok {
			findings = append(findings, f)
		}
	}

	// the verdict the model claims is advisory; the law is authoritative
	return ReviewResult{
		Verdict:  ComputeVerdict(findings),
		Summary:  raw.Summary,
		Findings: findings,
	}, true
}

// parseFinding keeps a finding iff path is a string and line an integer;
// the remaining fields are coerced with safe defaults
func parseFinding(raw json.RawMessage) (Finding, bool) {
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return Finding{}, false
	}

	var path string
	if err := json.Unmarshal(loose["path"], &path); err != nil || path == "" {
		return Finding{}, false
	}
	line, ok := intField(loose["line"])
	if !ok || line < 1 {
		return Finding{}, false
	}

	f := Finding{Path: path, Line: line, Skill: "unknown", Severity: SeveritySuggestion, Title: "Finding"}

	if v, ok := stringField(loose["skill"]); ok && v != "" {
		f.Skill = v
	}
	if v, ok := stringField(loose["severity"]); ok {
		switch Severity(v) {
		case SeverityCritical, SeverityWarning, SeveritySuggestion, SeverityNote:
			f.Severity = Severity(v)
		}
	}
	if v, ok := stringField(loose["title"]); ok && v != "" {
		f.Title = v
	}
	if v, ok := stringField(loose["body"]); ok {
		f.Body = v
	}
	if v, ok := intField(loose["end_line"]); ok && v >= line {
		f.EndLine = &v
	}
	return f, true
}

func stringField(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func intField(raw json.RawMessage) (int, bool) {
	if raw == nil {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}

// stripFence removes an optional markdown code fence around the JSON
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the fence language line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
