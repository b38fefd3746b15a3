//go:build integration_pg
// +build integration_pg

package repo_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	perr "nitpick/internal/platform/errors"
	"nitpick/internal/platform/store"
	"nitpick/internal/services/ingest/repo"
)

const gateSchema = `
CREATE TABLE installations (
	id          BIGSERIAL PRIMARY KEY,
	external_id BIGINT NOT NULL UNIQUE,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE repositories (
	id              BIGSERIAL PRIMARY KEY,
	full_name       TEXT NOT NULL UNIQUE,
	installation_id BIGINT NOT NULL,
	enabled         BOOLEAN NOT NULL DEFAULT TRUE,
	settings        JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE review_jobs (
	id             BIGSERIAL PRIMARY KEY,
	repo_full_name TEXT NOT NULL,
	pr_number      INT NOT NULL,
	head_sha       TEXT NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (repo_full_name, pr_number, head_sha)
);
`

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func openStorage(t *testing.T, ctx context.Context, dsn string) repo.Storage {
	t.Helper()

	st, err := store.Open(ctx, store.Config{
		AppName: "nitpick-gate-integration",
		PG:      store.PGConfig{Enabled: true, URL: dsn},
	})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	if _, err := st.PG.Exec(ctx, gateSchema); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return repo.NewPG().Bind(st.PG)
}

const (
	intSha1 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	intSha2 = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func TestGateStorage_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st := openStorage(t, ctx, dsn)

	// absent repository row: not found, not an error
	if _, found, err := st.RepoEnabled(ctx, "octo/hello"); err != nil || found {
		t.Fatalf("absent repo: found=%v err=%v", found, err)
	}

	if err := st.UpsertInstallation(ctx, 77); err != nil {
		t.Fatalf("installation upsert: %v", err)
	}
	if err := st.UpsertInstallation(ctx, 77); err != nil {
		t.Fatalf("installation upsert must be idempotent: %v", err)
	}
	if err := st.UpsertRepository(ctx, "octo/hello", 77); err != nil {
		t.Fatalf("repository upsert: %v", err)
	}
	enabled, found, err := st.RepoEnabled(ctx, "octo/hello")
	if err != nil || !found || !enabled {
		t.Fatalf("registered repo: enabled=%v found=%v err=%v", enabled, found, err)
	}

	// dedup: second claim for the same (repo, pr, sha) conflicts
	if err := st.InsertDedup(ctx, "octo/hello", 1, intSha1); err != nil {
		t.Fatalf("dedup insert: %v", err)
	}
	err = st.InsertDedup(ctx, "octo/hello", 1, intSha1)
	if perr.CodeOf(err) != perr.ErrorCodeConflict {
		t.Fatalf("duplicate claim: %v", err)
	}

	if err := st.InsertDedup(ctx, "octo/hello", 1, intSha2); err != nil {
		t.Fatalf("dedup insert sha2: %v", err)
	}
	n, err := st.CountRecent(ctx, "octo/hello", time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("recent count: %d %v", n, err)
	}

	// supersession demotes the still-queued older sha only
	demoted, err := st.SupersedeOthers(ctx, "octo/hello", 1, intSha2)
	if err != nil || demoted != 1 {
		t.Fatalf("supersede: %d %v", demoted, err)
	}
	if sup, err := st.IsSuperseded(ctx, "octo/hello", 1, intSha1); err != nil || !sup {
		t.Fatalf("old sha: superseded=%v err=%v", sup, err)
	}
	if sup, err := st.IsSuperseded(ctx, "octo/hello", 1, intSha2); err != nil || sup {
		t.Fatalf("new sha: superseded=%v err=%v", sup, err)
	}
	// absent ledger row: not superseded
	if sup, err := st.IsSuperseded(ctx, "octo/hello", 99, intSha1); err != nil || sup {
		t.Fatalf("absent row: superseded=%v err=%v", sup, err)
	}

	// lifecycle transitions on the live sha
	if err := st.MarkProcessing(ctx, "octo/hello", 1, intSha2); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := st.MarkDone(ctx, "octo/hello", 1, intSha2, false); err != nil {
		t.Fatalf("mark done: %v", err)
	}
	if err := st.MarkFailed(ctx, "octo/hello", 1, intSha1); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
}
