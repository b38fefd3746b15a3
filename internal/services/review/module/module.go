// Package module assembles the review worker from its adapters
package module

import (
	"nitpick/internal/adapters/anthropic"
	"nitpick/internal/adapters/github"
	"nitpick/internal/adapters/osv"
	"nitpick/internal/adapters/queue"
	sbx "nitpick/internal/adapters/sandbox"
	modkit "nitpick/internal/modkit"
	"nitpick/internal/services/review/repo"
	rsvc "nitpick/internal/services/review/service"
)

// New wires a Worker from deps, env config, and the gate's ledger
func New(deps modkit.Deps, ledger rsvc.Ledger) *rsvc.Worker {
	cfg := FromConfig(deps.Cfg)

	q := queue.New(deps.RD, queue.Options{
		Stream:   cfg.Stream,
		Group:    cfg.Group,
		Consumer: cfg.Consumer,
	})

	tokens := github.TokenSource(github.StaticTokenSource(cfg.GithubToken))
	gh := github.NewClient(github.Options{BaseURL: cfg.GithubBaseURL}, tokens)

	var vulnDB *osv.Client
	if cfg.OSVURL != "" {
		vulnDB = osv.New(cfg.OSVURL)
	}

	storage := repo.NewPG().Bind(deps.PG)

	return rsvc.New(
		rsvc.Config{
			Concurrency:   cfg.Concurrency,
			MaxDeliveries: cfg.MaxDeliveries,
			SandboxRoot:   cfg.SandboxRoot,
			ModelName:     cfg.Model,
		},
		q,
		ledger,
		storage,
		gh,
		tokens,
		sbx.NewHTTPExecutor(cfg.SandboxRunnerURL),
		anthropic.New(cfg.AnthropicKey),
		vulnDB,
		deps.Met,
	)
}
