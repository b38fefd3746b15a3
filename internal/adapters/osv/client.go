// Package osv queries an OSV-style vulnerability database in batches
package osv

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/logger"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
)

// Vulnerability is one collated advisory for a package
type Vulnerability struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	FixedIn  string `json:"fixed_in,omitempty"`
}

// PackageReport groups advisories under the queried package name
type PackageReport struct {
	Package string          `json:"package"`
	Vulns   []Vulnerability `json:"vulns"`
}

// Client posts batched queries behind a circuit breaker so a degraded
// vulnerability API cannot stall every review
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	breaker *gobreaker.CircuitBreaker
	log     logger.Logger
}

// New builds a Client for the API at baseURL
func New(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "osv",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL: baseURL,
		http:    rc,
		breaker: cb,
		log:     *logger.Named("osv"),
	}
}

// wire shapes for /v1/querybatch

type batchQuery struct {
	Package batchPackage `json:"package"`
}

type batchPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type batchRequest struct {
	Queries []batchQuery `json:"queries"`
}

type batchResponse struct {
	Results []struct {
		Vulns []wireVuln `json:"vulns"`
	} `json:"results"`
}

type wireVuln struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Severity []struct {
		Type  string `json:"type"`
		Score string `json:"score"`
	} `json:"severity"`
	Affected []struct {
		Ranges []struct {
			Events []struct {
				Introduced string `json:"introduced"`
				Fixed      string `json:"fixed"`
			} `json:"events"`
		} `json:"ranges"`
	} `json:"affected"`
}

// QueryBatch checks each package in one round trip and collates results
// positionally; results[i] answers packages[i]
func (c *Client) QueryBatch(ctx context.Context, ecosystem string, packages []string) ([]PackageReport, error) {
	queries := make([]batchQuery, len(packages))
	for i, p := range packages {
		queries[i] = batchQuery{Package: batchPackage{Name: p, Ecosystem: ecosystem}}
	}
	payload, err := json.Marshal(batchRequest{Queries: queries})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "osv query marshal failed")
	}

	raw, err := c.breaker.Execute(func() (any, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/querybatch", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			tail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return nil, perr.Upstreamf("osv status %d: %s", resp.StatusCode, string(tail))
		}
		var out batchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUpstream, "osv query failed")
	}

	out := raw.(*batchResponse)
	reports := make([]PackageReport, len(packages))
	for i, pkg := range packages {
		reports[i] = PackageReport{Package: pkg}
		if i >= len(out.Results) {
			continue
		}
		for _, v := range out.Results[i].Vulns {
			reports[i].Vulns = append(reports[i].Vulns, Vulnerability{
				ID:       v.ID,
				Summary:  v.Summary,
				Severity: bucketSeverity(v),
				FixedIn:  firstFixed(v),
			})
		}
	}
	return reports, nil
}

// bucketSeverity prefers CVSS_V3 and maps score to a coarse bucket
func bucketSeverity(v wireVuln) string {
	score, ok := cvssV3Score(v)
	if !ok {
		return "unknown"
	}
	switch {
	case score >= 9:
		return "critical"
	case score >= 7:
		return "high"
	case score >= 4:
		return "moderate"
	default:
		return "low"
	}
}

func cvssV3Score(v wireVuln) (float64, bool) {
	for _, s := range v.Severity {
		if s.Type != "CVSS_V3" {
			continue
		}
		if f, err := strconv.ParseFloat(s.Score, 64); err == nil {
			return f, true
		}
	}
	// fall back to any parseable score
	for _, s := range v.Severity {
		if f, err := strconv.ParseFloat(s.Score, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// firstFixed returns the first fixed version in the affected-range events
func firstFixed(v wireVuln) string {
	for _, a := range v.Affected {
		for _, r := range a.Ranges {
			for _, e := range r.Events {
				if e.Fixed != "" {
					return e.Fixed
				}
			}
		}
	}
	return ""
}
