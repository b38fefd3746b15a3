package module

import "nitpick/internal/platform/config"

// Config holds env-derived settings for the ingest module
type Config struct {
	WebhookSecret string
	MaxPerHour    int
	Stream        string
	Group         string
}

// FromConfig reads the module's env surface
func FromConfig(cfg config.Conf) Config {
	gh := cfg.Prefix("GITHUB_")
	q := cfg.Prefix("QUEUE_")
	return Config{
		WebhookSecret: gh.MustString("WEBHOOK_SECRET"),
		MaxPerHour:    cfg.MayInt("MAX_REVIEWS_PER_REPO_PER_HOUR", 50),
		Stream:        q.MayString("STREAM", "nitpick:jobs"),
		Group:         q.MayString("GROUP", "reviewers"),
	}
}
