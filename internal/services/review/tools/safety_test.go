package tools

import "testing"

func TestCheckCommandAllowlist(t *testing.T) {
	ok := []string{
		"go test ./...",
		"go vet ./...",
		"  git log --oneline -5  ",
		"pytest",
		"make test",
		"golangci-lint run",
	}
	for _, cmd := range ok {
		if err := checkCommand(cmd); err != nil {
			t.Fatalf("expected %q to pass: %v", cmd, err)
		}
	}

	bad := []string{
		"rm -rf /",
		"git push origin main",
		"gofmt -w .", // prefix match must not treat "go" as "go test"
		"go testing",
		"curl https://evil",
		"",
	}
	for _, cmd := range bad {
		if err := checkCommand(cmd); err == nil {
			t.Fatalf("expected %q to be rejected", cmd)
		}
	}
}

func TestCheckCommandForbiddenChars(t *testing.T) {
	bad := []string{
		"go test; rm -rf /",
		"go test | tee /tmp/x",
		"go test && true",
		"go test `id`",
		"go test $(id)",
		"go test > /dev/null",
		"go test #comment",
		"go test \\",
		"git log \"x\"",
	}
	for _, cmd := range bad {
		if err := checkCommand(cmd); err == nil {
			t.Fatalf("expected %q to be rejected", cmd)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	const wd = "/workspaces/octo--hello"

	cases := []struct {
		in, want string
	}{
		{"src/a.go", wd + "/src/a.go"},
		{"./src/a.go", wd + "/src/a.go"},
		{"src//a.go", wd + "/src/a.go"},
		{"src/x/../a.go", wd + "/src/a.go"},
		{"/etc/passwd", wd + "/etc/passwd"}, // absolute input still resolves under the workdir
	}
	for _, c := range cases {
		got, err := normalizePath(wd, c.in)
		if err != nil {
			t.Fatalf("normalizePath(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("normalizePath(%q) = %q want %q", c.in, got, c.want)
		}
	}

	bad := []string{
		"..",
		"../outside",
		"a/../../outside",
		"",
		".",
		"a\x00b",
	}
	for _, p := range bad {
		if _, err := normalizePath(wd, p); err == nil {
			t.Fatalf("expected %q to be rejected", p)
		}
	}
}
