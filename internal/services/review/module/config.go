package module

import "nitpick/internal/platform/config"

// Config holds env-derived settings for the review worker
type Config struct {
	Stream        string
	Group         string
	Consumer      string
	Concurrency   int
	MaxDeliveries int64

	SandboxRunnerURL string
	SandboxRoot      string

	GithubBaseURL string
	GithubToken   string

	AnthropicKey string
	Model        string

	OSVURL string
}

// FromConfig reads the worker's env surface
func FromConfig(cfg config.Conf) Config {
	q := cfg.Prefix("QUEUE_")
	sb := cfg.Prefix("SANDBOX_")
	gh := cfg.Prefix("GITHUB_")
	ai := cfg.Prefix("ANTHROPIC_")
	return Config{
		Stream:        q.MayString("STREAM", "nitpick:jobs"),
		Group:         q.MayString("GROUP", "reviewers"),
		Consumer:      q.MayString("CONSUMER", ""),
		Concurrency:   cfg.MayInt("WORKER_CONCURRENCY", 2),
		MaxDeliveries: int64(q.MayInt("MAX_DELIVERIES", 5)),

		SandboxRunnerURL: sb.MustString("RUNNER_URL"),
		SandboxRoot:      sb.MayString("ROOT", "/workspaces"),

		GithubBaseURL: gh.MayString("API_URL", ""),
		GithubToken:   gh.MustString("TOKEN"),

		AnthropicKey: ai.MustString("API_KEY"),
		Model:        ai.MayString("MODEL", ""),

		OSVURL: cfg.MayString("OSV_URL", "https://api.osv.dev"),
	}
}
