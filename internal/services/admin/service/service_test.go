package service_test

import (
	"context"
	"strings"
	"testing"

	"nitpick/internal/modkit/repokit"
	perr "nitpick/internal/platform/errors"
	"nitpick/internal/services/admin/domain"
	"nitpick/internal/services/admin/repo"
	"nitpick/internal/services/admin/service"
	revdom "nitpick/internal/services/review/domain"
)

type fakeStore struct {
	repoRow revdom.Repository
	saved   *revdom.RepoSettings
	reviews map[int64]domain.ReviewDetail
	trace   []domain.TraceRow
}

func (f *fakeStore) Bind(repokit.Queryer) repo.Storage { return f }

func (f *fakeStore) ListRepos(_ context.Context, _, _ int) ([]revdom.Repository, int, error) {
	return []revdom.Repository{f.repoRow}, 1, nil
}

func (f *fakeStore) GetRepo(_ context.Context, fullName string) (revdom.Repository, error) {
	if fullName != f.repoRow.FullName {
		return revdom.Repository{}, perr.NotFoundf("repository %s not registered", fullName)
	}
	return f.repoRow, nil
}

func (f *fakeStore) UpdateSettings(_ context.Context, _ string, settings revdom.RepoSettings) (revdom.Repository, error) {
	f.saved = &settings
	out := f.repoRow
	out.Settings = settings
	return out, nil
}

func (f *fakeStore) SetEnabled(_ context.Context, _ string, enabled bool) (revdom.Repository, error) {
	out := f.repoRow
	out.Enabled = enabled
	return out, nil
}

func (f *fakeStore) ListReviews(_ context.Context, _ domain.ReviewFilter) ([]domain.ReviewSummary, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) GetReview(_ context.Context, id int64) (domain.ReviewDetail, error) {
	d, ok := f.reviews[id]
	if !ok {
		return domain.ReviewDetail{}, perr.NotFoundf("review %d not found", id)
	}
	return d, nil
}

func (f *fakeStore) ListTrace(_ context.Context, _ int64) ([]domain.TraceRow, error) {
	return f.trace, nil
}

func newFake() *fakeStore {
	return &fakeStore{
		repoRow: revdom.Repository{
			ID:       1,
			FullName: "octo/hello",
			Enabled:  true,
			Settings: revdom.RepoSettings{
				Strictness:  revdom.StrictnessBalanced,
				IgnoreGlobs: []string{"vendor/**"},
				Checklist:   []string{"existing item"},
			},
		},
		reviews: map[int64]domain.ReviewDetail{},
	}
}

func strp(s string) *string { return &s }

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size, wantPage, wantSize int
	}{
		{0, 0, 1, 25},
		{-3, -1, 1, 25},
		{2, 10, 2, 10},
		{1, 1000, 1, 100},
	}
	for _, c := range cases {
		p, s := service.ClampPage(c.page, c.size)
		if p != c.wantPage || s != c.wantSize {
			t.Fatalf("ClampPage(%d, %d) = %d, %d", c.page, c.size, p, s)
		}
	}
}

func TestPatchSettingsMerges(t *testing.T) {
	fs := newFake()
	svc := service.New(nil, fs)

	updated, err := svc.PatchSettings(context.Background(), "octo/hello", service.SettingsPatch{
		Strictness: strp("strict"),
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	if updated.Settings.Strictness != revdom.StrictnessStrict {
		t.Fatalf("strictness %q", updated.Settings.Strictness)
	}
	// untouched fields survive the merge
	if len(fs.saved.IgnoreGlobs) != 1 || fs.saved.IgnoreGlobs[0] != "vendor/**" {
		t.Fatalf("ignore globs clobbered: %v", fs.saved.IgnoreGlobs)
	}
	if len(fs.saved.Checklist) != 1 {
		t.Fatalf("checklist clobbered: %v", fs.saved.Checklist)
	}
}

func TestPatchSettingsReplacesLists(t *testing.T) {
	fs := newFake()
	svc := service.New(nil, fs)

	empty := []string{}
	_, err := svc.PatchSettings(context.Background(), "octo/hello", service.SettingsPatch{
		IgnoreGlobs: &empty,
	})
	if err != nil {
		t.Fatalf("patch: %v", err)
	}
	// an explicit empty list clears, unlike an absent field
	if len(fs.saved.IgnoreGlobs) != 0 {
		t.Fatalf("globs not cleared: %v", fs.saved.IgnoreGlobs)
	}
}

func TestPatchSettingsValidation(t *testing.T) {
	fs := newFake()
	svc := service.New(nil, fs)
	ctx := context.Background()

	manyGlobs := make([]string, 51)
	for i := range manyGlobs {
		manyGlobs[i] = "*.txt"
	}
	manyLines := make([]string, 21)
	for i := range manyLines {
		manyLines[i] = "item"
	}
	longLine := []string{strings.Repeat("x", 501)}
	emptyGlob := []string{""}

	cases := []struct {
		name  string
		patch service.SettingsPatch
	}{
		{"too many globs", service.SettingsPatch{IgnoreGlobs: &manyGlobs}},
		{"empty glob", service.SettingsPatch{IgnoreGlobs: &emptyGlob}},
		{"long checklist line", service.SettingsPatch{Checklist: &longLine}},
		{"too many checklist lines", service.SettingsPatch{Checklist: &manyLines}},
	}
	for _, c := range cases {
		if _, err := svc.PatchSettings(ctx, "octo/hello", c.patch); err == nil {
			t.Fatalf("%s: expected validation error", c.name)
		}
	}
	if fs.saved != nil {
		t.Fatal("rejected patches must not persist")
	}
}

func TestPatchSettingsUnknownRepo(t *testing.T) {
	svc := service.New(nil, newFake())
	_, err := svc.PatchSettings(context.Background(), "no/such", service.SettingsPatch{})
	if perr.CodeOf(err) != perr.ErrorCodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetEnabled(t *testing.T) {
	svc := service.New(nil, newFake())
	out, err := svc.SetEnabled(context.Background(), "octo/hello", false)
	if err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if out.Enabled {
		t.Fatal("expected disabled")
	}
}

func TestGetTraceUnknownReview(t *testing.T) {
	fs := newFake()
	fs.trace = []domain.TraceRow{{TurnNumber: 1}}
	svc := service.New(nil, fs)

	if _, err := svc.GetTrace(context.Background(), 404); perr.CodeOf(err) != perr.ErrorCodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	fs.reviews[1] = domain.ReviewDetail{}
	rows, err := svc.GetTrace(context.Background(), 1)
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows %d", len(rows))
	}
}
