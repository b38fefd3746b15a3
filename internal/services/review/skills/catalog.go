// Package skills holds the built-in review skill catalog and the composer
// that turns a changed-file list plus repo settings into a system prompt
// and tool set
package skills

// Skill is one static catalog entry
type Skill struct {
	Name             string
	Label            string
	Description      string
	Instructions     string
	RequiredTools    []string
	FileGlobs        []string
	EnabledByDefault bool
	Priority         int
}

// Catalog returns the built-in skills. Callers must not mutate entries
func Catalog() []Skill { return catalog }

var catalog = []Skill{
	{
		Name:        "correctness",
		Label:       "Correctness",
		Description: "Logic errors, off-by-ones, nil/None handling, broken edge cases",
		Instructions: `Look for logic errors introduced by this change: inverted conditions,
off-by-one boundaries, unhandled nil or empty cases, lost error returns,
and state that can become inconsistent. Read surrounding code with
read_file before claiming a bug; confirm the failure path actually exists.`,
		RequiredTools:    []string{"read_file", "list_files", "search_content", "git_diff"},
		EnabledByDefault: true,
		Priority:         10,
	},
	{
		Name:        "security",
		Label:       "Security",
		Description: "Injection, secrets, unsafe deserialization, authz gaps",
		Instructions: `Check the change for security regressions: user input reaching shells,
SQL, or templates without sanitization; secrets or tokens committed in
code or config; weakened authentication or authorization checks; unsafe
deserialization. Use search_content to trace where tainted values flow.`,
		RequiredTools:    []string{"read_file", "search_content", "git_diff"},
		EnabledByDefault: true,
		Priority:         20,
	},
	{
		Name:        "performance",
		Label:       "Performance",
		Description: "Algorithmic regressions, N+1 queries, unbounded allocation",
		Instructions: `Flag clear performance regressions only: loops that became quadratic,
queries moved inside loops, unbounded buffering of large inputs, missing
pagination. Do not speculate about micro-optimizations.`,
		RequiredTools:    []string{"read_file", "search_content"},
		EnabledByDefault: true,
		Priority:         30,
	},
	{
		Name:        "tests",
		Label:       "Test coverage",
		Description: "Missing or weakened tests for changed behavior",
		Instructions: `Check whether changed behavior is covered by tests. Use list_files and
find_files to locate the test files next to changed code. If a test was
deleted or an assertion weakened, call it out. Running the suite with
run_command is allowed when a test command is obvious from the repo.`,
		RequiredTools:    []string{"read_file", "list_files", "find_files", "run_command"},
		EnabledByDefault: true,
		Priority:         40,
	},
	{
		Name:        "dependencies",
		Label:       "Dependencies",
		Description: "Vulnerable or suspicious dependency changes",
		Instructions: `The manifest changed. Identify added or upgraded packages and check them
with check_vulnerabilities (batch the names, pick the right ecosystem).
Report any advisory at moderate severity or above, including the fixed
version when one exists.`,
		RequiredTools: []string{"read_file", "git_diff", "check_vulnerabilities"},
		FileGlobs: []string{
			"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml",
			"go.mod", "go.sum",
			"requirements*.txt", "Pipfile", "Pipfile.lock", "pyproject.toml", "poetry.lock",
			"Cargo.toml", "Cargo.lock",
			"Gemfile", "Gemfile.lock",
			"composer.json", "composer.lock",
		},
		EnabledByDefault: true,
		Priority:         50,
	},
	{
		Name:        "docs",
		Label:       "Documentation",
		Description: "Stale or contradictory documentation",
		Instructions: `Documentation changed. Check that the prose matches the code it
describes, links resolve to files that exist, and examples still compile
conceptually. Only flag factual drift, not style.`,
		RequiredTools:    []string{"read_file", "list_files", "search_content"},
		FileGlobs:        []string{"**/*.md", "docs/**"},
		EnabledByDefault: true,
		Priority:         60,
	},
	{
		Name:        "style",
		Label:       "Style",
		Description: "Naming and formatting nits",
		Instructions: `Point out naming and formatting inconsistencies with the surrounding
code. Never raise style findings above suggestion severity.`,
		RequiredTools:    []string{"read_file"},
		EnabledByDefault: false,
		Priority:         70,
	},
}
