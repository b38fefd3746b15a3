// Package module wires the admin API into the router using modkit
package module

import (
	stdhttp "net/http"

	modkit "nitpick/internal/modkit"
	"nitpick/internal/modkit/httpkit"

	ahttp "nitpick/internal/services/admin/http"
	arepo "nitpick/internal/services/admin/repo"
	asvc "nitpick/internal/services/admin/service"
)

// Module implements the admin API module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws       []func(stdhttp.Handler) stdhttp.Handler
	subrouter func(httpkit.Router) httpkit.Router
	register  func(httpkit.Router)

	svc *asvc.Service
}

// New constructs the admin module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("admin"),
	}, opts...)...)

	svc := asvc.New(deps.PG, arepo.NewPG())

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
		ahttp.Register(r, svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the module routes on the given router
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

// Ports returns nothing; the admin module exposes only HTTP
func (m *Module) Ports() any { return nil }

// Name returns the module name
func (m *Module) Name() string { return m.name }
