// Package http mounts the admin API routes
package http

import (
	stdhttp "net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nitpick/internal/modkit/httpkit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/services/admin/domain"
	"nitpick/internal/services/admin/service"
)

// Register mounts the admin routes on r
func Register(r httpkit.Router, svc *service.Service) {
	httpkit.Get(r, "/repos", listRepos(svc))
	httpkit.PatchJSON(r, "/repos/{owner}/{name}", patchRepo(svc))
	httpkit.PostJSON(r, "/repos/{owner}/{name}/enabled", setEnabled(svc))

	httpkit.Get(r, "/reviews", listReviews(svc))
	httpkit.Get(r, "/reviews/{id}", getReview(svc))
	httpkit.Get(r, "/reviews/{id}/trace", getTrace(svc))
}

func listRepos(svc *service.Service) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) {
		page, size := pageParams(r)
		repos, total, err := svc.ListRepos(r.Context(), page, size)
		if err != nil {
			return nil, err
		}
		page, size = service.ClampPage(page, size)
		return httpkit.List(repos, total, page, size), nil
	}
}

func patchRepo(svc *service.Service) func(*stdhttp.Request, service.SettingsPatch) (any, error) {
	return func(r *stdhttp.Request, patch service.SettingsPatch) (any, error) {
		return svc.PatchSettings(r.Context(), repoParam(r), patch)
	}
}

type enabledReq struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func setEnabled(svc *service.Service) func(*stdhttp.Request, enabledReq) (any, error) {
	return func(r *stdhttp.Request, in enabledReq) (any, error) {
		return svc.SetEnabled(r.Context(), repoParam(r), *in.Enabled)
	}
}

func listReviews(svc *service.Service) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) {
		page, size := pageParams(r)
		f := domain.ReviewFilter{
			RepoFullName: r.URL.Query().Get("repo"),
			Status:       r.URL.Query().Get("status"),
			Page:         page,
			Size:         size,
		}
		reviews, total, err := svc.ListReviews(r.Context(), f)
		if err != nil {
			return nil, err
		}
		page, size = service.ClampPage(page, size)
		return httpkit.List(reviews, total, page, size), nil
	}
}

func getReview(svc *service.Service) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) {
		id, err := idParam(r)
		if err != nil {
			return nil, err
		}
		return svc.GetReview(r.Context(), id)
	}
}

func getTrace(svc *service.Service) func(*stdhttp.Request) (any, error) {
	return func(r *stdhttp.Request) (any, error) {
		id, err := idParam(r)
		if err != nil {
			return nil, err
		}
		return svc.GetTrace(r.Context(), id)
	}
}

func repoParam(r *stdhttp.Request) string {
	return chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
}

func idParam(r *stdhttp.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, perr.InvalidArgf("invalid review id")
	}
	return id, nil
}

func pageParams(r *stdhttp.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	return page, size
}
