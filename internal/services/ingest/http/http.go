// Package http mounts the webhook endpoint for the ingestion gate
package http

import (
	"io"
	stdhttp "net/http"

	"nitpick/internal/modkit/httpkit"
	perr "nitpick/internal/platform/errors"
	phttp "nitpick/internal/platform/net/http"
	"nitpick/internal/services/ingest/domain"
)

const maxBodyBytes = 1 << 20

// Register mounts POST /webhook. The handler is raw-body on purpose: the
// signature covers the exact received bytes, so nothing may decode or
// re-encode them before verification
func Register(r httpkit.Router, svc domain.WebhookPort) {
	r.Post("/webhook", handleWebhook(svc))
}

func handleWebhook(svc domain.WebhookPort) phttp.Handler {
	return func(w stdhttp.ResponseWriter, req *stdhttp.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
		if err != nil {
			phttp.RespondError(w, req, perr.InvalidArgf("cannot read request body"))
			return
		}
		if len(body) > maxBodyBytes {
			phttp.RespondError(w, req, perr.InvalidArgf("request body exceeds %d bytes", maxBodyBytes))
			return
		}
		event := req.Header.Get("X-GitHub-Event")
		if event == "" {
			phttp.RespondError(w, req, perr.InvalidArgf("missing X-GitHub-Event header"))
			return
		}

		out, err := svc.HandleWebhook(req.Context(), body, req.Header.Get("X-Hub-Signature-256"), event)
		if err != nil {
			phttp.RespondError(w, req, err)
			return
		}
		if out.Status == domain.WebhookDenied && out.Reason == domain.ReasonRateLimited {
			phttp.RespondError(w, req, perr.TooManyRequestsf("rate_limited: review quota exceeded for %s", out.RepoFullName))
			return
		}
		phttp.RespondOK(w, req, out)
	}
}
