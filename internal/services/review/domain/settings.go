package domain

// Strictness tunes how aggressively the review preamble asks for findings
type Strictness string

// Strictness levels
const (
	StrictnessLenient  Strictness = "lenient"
	StrictnessBalanced Strictness = "balanced"
	StrictnessStrict   Strictness = "strict"
)

// Valid reports whether s is one of the three levels
func (s Strictness) Valid() bool {
	switch s {
	case StrictnessLenient, StrictnessBalanced, StrictnessStrict:
		return true
	}
	return false
}

// RepoSettings are the per-repository knobs admins can patch
type RepoSettings struct {
	Strictness  Strictness `json:"strictness"`
	IgnoreGlobs []string   `json:"ignoreGlobs"`
	Checklist   []string   `json:"checklist"`
}

// DefaultSettings is what a freshly registered repository gets
func DefaultSettings() RepoSettings {
	return RepoSettings{Strictness: StrictnessBalanced}
}

// Normalized returns a copy with an invalid strictness replaced by balanced
func (s RepoSettings) Normalized() RepoSettings {
	if !s.Strictness.Valid() {
		s.Strictness = StrictnessBalanced
	}
	return s
}
