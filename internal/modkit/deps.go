// Package modkit provides module wiring and core deps
package modkit

import (
	"nitpick/internal/modkit/repokit"
	"nitpick/internal/platform/config"
	"nitpick/internal/platform/logger"
	"nitpick/internal/platform/metrics"

	"github.com/redis/go-redis/v9"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	RD  *redis.Client
	Met *metrics.Set
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
