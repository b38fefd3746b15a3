package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nitpick/internal/adapters/github"
	"nitpick/internal/adapters/queue"
	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/services/ingest/domain"
	"nitpick/internal/services/ingest/repo"
	"nitpick/internal/services/ingest/service"
	revdom "nitpick/internal/services/review/domain"
)

type jobRow struct {
	repo   string
	pr     int
	sha    string
	status string
}

// fakeStore is an in-memory repo.Storage
type fakeStore struct {
	repos    map[string]bool // full_name -> enabled
	jobs     []jobRow
	installs map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{repos: map[string]bool{}, installs: map[int64]bool{}}
}

func (f *fakeStore) Bind(repokit.Queryer) repo.Storage { return f }

func (f *fakeStore) RepoEnabled(_ context.Context, fullName string) (bool, bool, error) {
	enabled, found := f.repos[fullName]
	return enabled, found, nil
}

func (f *fakeStore) UpsertInstallation(_ context.Context, id int64) error {
	f.installs[id] = true
	return nil
}

func (f *fakeStore) UpsertRepository(_ context.Context, fullName string, _ int64) error {
	if _, ok := f.repos[fullName]; !ok {
		f.repos[fullName] = true
	}
	return nil
}

func (f *fakeStore) InsertDedup(_ context.Context, repoName string, pr int, sha string) error {
	for _, j := range f.jobs {
		if j.repo == repoName && j.pr == pr && j.sha == sha {
			return perr.Conflictf("dedup row exists")
		}
	}
	f.jobs = append(f.jobs, jobRow{repo: repoName, pr: pr, sha: sha, status: repo.StatusQueued})
	return nil
}

func (f *fakeStore) CountRecent(_ context.Context, repoName string, _ time.Duration) (int, error) {
	n := 0
	for _, j := range f.jobs {
		if j.repo == repoName {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkFailed(_ context.Context, repoName string, pr int, sha string) error {
	return f.setStatus(repoName, pr, sha, repo.StatusFailed)
}

func (f *fakeStore) SupersedeOthers(_ context.Context, repoName string, pr int, keepSha string) (int64, error) {
	var n int64
	for i, j := range f.jobs {
		if j.repo == repoName && j.pr == pr && j.sha != keepSha && j.status == repo.StatusQueued {
			f.jobs[i].status = repo.StatusSuperseded
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) IsSuperseded(_ context.Context, repoName string, pr int, sha string) (bool, error) {
	for _, j := range f.jobs {
		if j.repo == repoName && j.pr == pr && j.sha == sha {
			return j.status == repo.StatusSuperseded, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkProcessing(_ context.Context, repoName string, pr int, sha string) error {
	return f.setStatus(repoName, pr, sha, repo.StatusProcessing)
}

func (f *fakeStore) MarkDone(_ context.Context, repoName string, pr int, sha string, failed bool) error {
	status := repo.StatusDone
	if failed {
		status = repo.StatusFailed
	}
	return f.setStatus(repoName, pr, sha, status)
}

func (f *fakeStore) setStatus(repoName string, pr int, sha, status string) error {
	for i, j := range f.jobs {
		if j.repo == repoName && j.pr == pr && j.sha == sha {
			f.jobs[i].status = status
		}
	}
	return nil
}

func (f *fakeStore) statusOf(repoName string, pr int, sha string) string {
	for _, j := range f.jobs {
		if j.repo == repoName && j.pr == pr && j.sha == sha {
			return j.status
		}
	}
	return ""
}

const (
	secret = "hooksecret"
	sha1   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	sha2   = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func newGate(t *testing.T, fs *fakeStore, maxPerHour int) (*service.Service, *queue.Queue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rd := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rd.Close() })
	q := queue.New(rd, queue.Options{Stream: "t:jobs", Group: "g", Consumer: "c"})
	if err := q.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	svc := service.New(nil, fs, q, nil, service.Config{
		WebhookSecret: secret,
		MaxPerHour:    maxPerHour,
	})
	return svc, q
}

func TestTryEnqueueAllows(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)

	d, err := svc.TryEnqueue(context.Background(), "octo/hello", 1, sha1)
	if err != nil {
		t.Fatalf("try enqueue: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("decision %+v", d)
	}
	if fs.statusOf("octo/hello", 1, sha1) != repo.StatusQueued {
		t.Fatal("dedup row not queued")
	}
}

func TestTryEnqueueUnknownRepoAllowed(t *testing.T) {
	// no repositories row yet: the gate lets the job through and the
	// webhook path registers the repo before calling the gate
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)

	d, err := svc.TryEnqueue(context.Background(), "never/seen", 1, sha1)
	if err != nil || !d.Allowed {
		t.Fatalf("decision %+v err %v", d, err)
	}
}

func TestTryEnqueueRepoDisabled(t *testing.T) {
	fs := newFakeStore()
	fs.repos["octo/hello"] = false
	svc, _ := newGate(t, fs, 50)

	d, err := svc.TryEnqueue(context.Background(), "octo/hello", 1, sha1)
	if err != nil {
		t.Fatalf("try enqueue: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonRepoDisabled {
		t.Fatalf("decision %+v", d)
	}
	if len(fs.jobs) != 0 {
		t.Fatal("disabled repo must not claim a dedup row")
	}
}

func TestTryEnqueueDuplicateSha(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)
	ctx := context.Background()

	if d, _ := svc.TryEnqueue(ctx, "octo/hello", 1, sha1); !d.Allowed {
		t.Fatalf("first attempt denied: %+v", d)
	}
	d, err := svc.TryEnqueue(ctx, "octo/hello", 1, sha1)
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonDuplicateSha {
		t.Fatalf("decision %+v", d)
	}
}

func TestTryEnqueueQuotaBoundary(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 2)
	ctx := context.Background()

	// insert-then-count: the quota admits exactly MaxPerHour jobs
	shas := []string{sha1, sha2}
	for i, sha := range shas {
		d, err := svc.TryEnqueue(ctx, "octo/hello", i+1, sha)
		if err != nil || !d.Allowed {
			t.Fatalf("job %d: %+v %v", i+1, d, err)
		}
	}

	over := "cccccccccccccccccccccccccccccccccccccccc"
	d, err := svc.TryEnqueue(ctx, "octo/hello", 3, over)
	if err != nil {
		t.Fatalf("over-quota attempt: %v", err)
	}
	if d.Allowed || d.Reason != domain.ReasonRateLimited {
		t.Fatalf("decision %+v", d)
	}
	if fs.statusOf("octo/hello", 3, over) != repo.StatusFailed {
		t.Fatal("rate-limited row must finalize as failed")
	}
}

func TestTryEnqueueSupersedesOlderShas(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)
	ctx := context.Background()

	if d, _ := svc.TryEnqueue(ctx, "octo/hello", 1, sha1); !d.Allowed {
		t.Fatal("first push denied")
	}
	if d, _ := svc.TryEnqueue(ctx, "octo/hello", 1, sha2); !d.Allowed {
		t.Fatal("second push denied")
	}

	sup, err := svc.IsSuperseded(ctx, "octo/hello", 1, sha1)
	if err != nil || !sup {
		t.Fatalf("old sha superseded=%v err=%v", sup, err)
	}
	if sup, _ := svc.IsSuperseded(ctx, "octo/hello", 1, sha2); sup {
		t.Fatal("new sha must stay live")
	}
}

func prEventBody(t *testing.T, action string, draft bool) []byte {
	t.Helper()
	body := "body text"
	ev := github.PullRequestEvent{
		Action: action,
		PullRequest: github.PullRequest{
			Number: 9,
			Title:  "Add thing",
			Body:   &body,
			Draft:  draft,
			User:   github.User{Login: "octocat"},
			Head:   github.Ref{Ref: "feature/x", Sha: sha1},
			Base:   github.Ref{Ref: "main", Sha: sha2},
		},
		Repository: github.Repository{
			FullName: "octo/hello",
			CloneURL: "https://github.com/octo/hello.git",
		},
		Installation: &github.Installation{ID: 77},
	}
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return b
}

func TestHandleWebhookEnqueues(t *testing.T) {
	fs := newFakeStore()
	svc, q := newGate(t, fs, 50)
	ctx := context.Background()

	body := prEventBody(t, "opened", false)
	out, err := svc.HandleWebhook(ctx, body, github.Sign(body, secret), "pull_request")
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if out.Status != domain.WebhookEnqueued {
		t.Fatalf("outcome %+v", out)
	}
	if !fs.installs[77] || len(fs.repos) != 1 {
		t.Fatal("installation and repository must be upserted")
	}

	msgs, err := q.Receive(ctx, 1, 10*time.Millisecond)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("queue receive: %v %v", msgs, err)
	}
	job, err := revdom.ParseJob(msgs[0].Payload)
	if err != nil {
		t.Fatalf("enqueued payload invalid: %v", err)
	}
	if job.RepoFullName != "octo/hello" || job.PRNumber != 9 || job.HeadSha != sha1 || job.InstallationID != 77 {
		t.Fatalf("job %+v", job)
	}
	if _, err := time.Parse(time.RFC3339, job.EnqueuedAt); err != nil {
		t.Fatalf("enqueuedAt %q", job.EnqueuedAt)
	}
}

func TestHandleWebhookBadSignature(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)

	body := prEventBody(t, "opened", false)
	_, err := svc.HandleWebhook(context.Background(), body, github.Sign(body, "wrong"), "pull_request")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if perr.CodeOf(err) != perr.ErrorCodeUnauthorized {
		t.Fatalf("code %v", perr.CodeOf(err))
	}
	if len(fs.jobs) != 0 {
		t.Fatal("unverified payload must not reach the gate")
	}
}

func TestHandleWebhookIgnores(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)
	ctx := context.Background()

	cases := []struct {
		name  string
		body  []byte
		event string
	}{
		{"other event", prEventBody(t, "opened", false), "issues"},
		{"closed action", prEventBody(t, "closed", false), "pull_request"},
		{"draft", prEventBody(t, "opened", true), "pull_request"},
	}
	for _, c := range cases {
		out, err := svc.HandleWebhook(ctx, c.body, github.Sign(c.body, secret), c.event)
		if err != nil {
			t.Fatalf("%s: %v", c.name, err)
		}
		if out.Status != domain.WebhookIgnored {
			t.Fatalf("%s: outcome %+v", c.name, out)
		}
	}
	if len(fs.jobs) != 0 {
		t.Fatal("ignored deliveries must not claim dedup rows")
	}
}

func TestHandleWebhookMissingInstallation(t *testing.T) {
	fs := newFakeStore()
	svc, _ := newGate(t, fs, 50)

	var ev map[string]any
	body := prEventBody(t, "opened", false)
	if err := json.Unmarshal(body, &ev); err != nil {
		t.Fatal(err)
	}
	delete(ev, "installation")
	body, _ = json.Marshal(ev)

	_, err := svc.HandleWebhook(context.Background(), body, github.Sign(body, secret), "pull_request")
	if err == nil {
		t.Fatal("expected rejection")
	}
	if perr.CodeOf(err) != perr.ErrorCodeInvalidArgument {
		t.Fatalf("code %v", perr.CodeOf(err))
	}
}

func TestHandleWebhookDenied(t *testing.T) {
	fs := newFakeStore()
	svc, q := newGate(t, fs, 50)
	ctx := context.Background()

	body := prEventBody(t, "opened", false)
	sig := github.Sign(body, secret)
	if _, err := svc.HandleWebhook(ctx, body, sig, "pull_request"); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	out, err := svc.HandleWebhook(ctx, body, sig, "pull_request")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if out.Status != domain.WebhookDenied || out.Reason != domain.ReasonDuplicateSha {
		t.Fatalf("outcome %+v", out)
	}

	msgs, _ := q.Receive(ctx, 10, 10*time.Millisecond)
	if len(msgs) != 1 {
		t.Fatalf("exactly one job expected, got %d", len(msgs))
	}
}
