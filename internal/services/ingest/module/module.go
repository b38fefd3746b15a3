// Package module wires the ingestion gate into the API using modkit
package module

import (
	stdhttp "net/http"

	"nitpick/internal/adapters/queue"
	modkit "nitpick/internal/modkit"
	"nitpick/internal/modkit/httpkit"

	ihttp "nitpick/internal/services/ingest/http"
	irepo "nitpick/internal/services/ingest/repo"
	isvc "nitpick/internal/services/ingest/service"
)

// Module implements the ingest module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(stdhttp.Handler) stdhttp.Handler
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *isvc.Service
}

// Ports exposes the gate and ledger surfaces other modules consume
type Ports struct {
	Gate   *isvc.Service
	Ledger *isvc.Service
}

// New constructs the ingest module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("ingest"),
	}, opts...)...)

	cfg := FromConfig(deps.Cfg)

	q := queue.New(deps.RD, queue.Options{
		Stream: cfg.Stream,
		Group:  cfg.Group,
	})

	svc := isvc.New(deps.PG, irepo.NewPG(), q, deps.Met, isvc.Config{
		WebhookSecret: cfg.WebhookSecret,
		MaxPerHour:    cfg.MaxPerHour,
	})

	m := &Module{
		deps:      deps,
		name:      b.Name,
		prefix:    b.Prefix,
		mws:       b.Mw,
		subrouter: b.Subrouter,
		svc:       svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ihttp.Register(r, svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the webhook route at the router root
func (m *Module) MountRoutes(r httpkit.Router) {
	mount := func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		if m.subrouter != nil {
			rr = m.subrouter(rr)
		}
		if m.register != nil {
			m.register(rr)
		}
	}
	if m.prefix == "" {
		mount(r)
		return
	}
	r.Route(m.prefix, mount)
}

// Ports returns the module's injectable ports
func (m *Module) Ports() any { return Ports{Gate: m.svc, Ledger: m.svc} }

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Service returns the gate service for direct wiring in the worker binary
func (m *Module) Service() *isvc.Service { return m.svc }
