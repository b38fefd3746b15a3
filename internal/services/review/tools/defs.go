package tools

import (
	sdk "github.com/anthropics/anthropic-sdk-go"
)

// Known reports whether name is a tool this surface can dispatch
func Known(name string) bool {
	_, ok := defs[name]
	return ok
}

// Definitions returns the model-facing schemas for the named tools,
// preserving order and silently dropping unknown names
func Definitions(names []string) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(names))
	for _, name := range names {
		def, ok := defs[name]
		if !ok {
			continue
		}
		out = append(out, sdk.ToolUnionParam{OfTool: &sdk.ToolParam{
			Name:        name,
			Description: sdk.String(def.description),
			InputSchema: sdk.ToolInputSchemaParam{Properties: def.properties},
		}})
	}
	return out
}

type toolDef struct {
	description string
	properties  map[string]any
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var defs = map[string]toolDef{
	"read_file": {
		description: "Read a file from the repository working copy. Output is capped at 30000 characters.",
		properties: map[string]any{
			"path": prop("string", "Repository-relative file path"),
		},
	},
	"list_files": {
		description: "List tracked files, optionally narrowed by a git pathspec. Returns at most 500 entries.",
		properties: map[string]any{
			"pattern": prop("string", "Optional git pathspec, e.g. 'src/*.go'"),
		},
	},
	"run_command": {
		description: "Run an allowlisted command (test runners, linters, read-only git) in the working copy. Shell operators are rejected.",
		properties: map[string]any{
			"command": prop("string", "The command line to run"),
			"cwd":     prop("string", "Optional repository-relative working directory"),
		},
	},
	"git_diff": {
		description: "Show the diff between a base commit and HEAD.",
		properties: map[string]any{
			"base_sha": prop("string", "Base commit SHA (7-40 hex characters)"),
		},
	},
	"search_content": {
		description: "Search file contents with ripgrep. Returns up to 200 matches with file and line numbers.",
		properties: map[string]any{
			"pattern":        prop("string", "Literal search pattern"),
			"glob":           prop("string", "Optional file glob to narrow the search, e.g. '*.go'"),
			"case_sensitive": prop("boolean", "Match case exactly (default false)"),
		},
	},
	"find_files": {
		description: "Find files or directories by name pattern. Depth is capped at 15.",
		properties: map[string]any{
			"pattern":   prop("string", "Shell-style name pattern, e.g. '*.lock'"),
			"type":      prop("string", "Optional entry type: 'f' for files, 'd' for directories"),
			"max_depth": prop("integer", "Optional maximum directory depth (1-15)"),
		},
	},
	"check_vulnerabilities": {
		description: "Look up known vulnerabilities for dependencies. At most 50 packages per call.",
		properties: map[string]any{
			"ecosystem": prop("string", "Package ecosystem, e.g. 'npm', 'Go', 'PyPI', 'crates.io'"),
			"packages":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Package names to check"},
		},
	},
}
