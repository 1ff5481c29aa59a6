package application_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ericfisherdev/repoobserver/internal/application"
	"github.com/ericfisherdev/repoobserver/internal/domain/model"
	"github.com/ericfisherdev/repoobserver/internal/domain/port/driven"
)

// --- Sleep and executor helpers ---

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return ctx.Err()
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.sleeps))
	copy(out, r.sleeps)
	return out
}

func (r *sleepRecorder) count(d time.Duration) int {
	n := 0
	for _, s := range r.recorded() {
		if s == d {
			n++
		}
	}
	return n
}

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// noRetryExecutor fails fast so per-item error paths are exercised directly.
func noRetryExecutor(rec *sleepRecorder) *application.Executor {
	policy := application.DefaultRetryPolicy()
	policy.MaxRetries = 0
	return application.NewExecutor(policy, application.WithClock(func() time.Time { return fixedNow }, rec.sleep))
}

func notFound() error {
	return &driven.APIError{StatusCode: 404, Message: "Not Found", RateRemaining: -1}
}

func secondaryLimit() error {
	return &driven.APIError{StatusCode: 403, Message: "You have exceeded a secondary rate limit", RateRemaining: -1}
}

func serverError() error {
	return &driven.APIError{StatusCode: 502, Message: "Bad Gateway", RateRemaining: -1}
}

// --- Repository source ---

type fakeSource struct {
	listRepos    func(ctx context.Context, account string, page, perPage int) ([]driven.RepoRef, error)
	getRepo      func(ctx context.Context, owner, name string) (*model.Repository, error)
	release      func(ctx context.Context, owner, name string) (*model.Release, error)
	latestIssue  func(ctx context.Context, owner, name string) (*time.Time, error)
	closedIssues func(ctx context.Context, owner, name string, page, perPage int) (driven.IssuePage, error)
	commits      func(ctx context.Context, owner, name string) (int, error)

	mu          sync.Mutex
	detailCalls int
	listCalls   int
	closedCalls int
}

func (f *fakeSource) ListRepositories(ctx context.Context, account string, page, perPage int) ([]driven.RepoRef, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	return f.listRepos(ctx, account, page, perPage)
}

func (f *fakeSource) GetRepository(ctx context.Context, owner, name string) (*model.Repository, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if f.getRepo != nil {
		return f.getRepo(ctx, owner, name)
	}
	return &model.Repository{Name: name, FullName: owner + "/" + name, PushedAt: fixedNow}, nil
}

func (f *fakeSource) GetLatestRelease(ctx context.Context, owner, name string) (*model.Release, error) {
	if f.release != nil {
		return f.release(ctx, owner, name)
	}
	return nil, notFound()
}

func (f *fakeSource) LatestIssueUpdate(ctx context.Context, owner, name string) (*time.Time, error) {
	if f.latestIssue != nil {
		return f.latestIssue(ctx, owner, name)
	}
	return nil, nil
}

func (f *fakeSource) ListClosedIssues(ctx context.Context, owner, name string, page, perPage int) (driven.IssuePage, error) {
	f.mu.Lock()
	f.closedCalls++
	f.mu.Unlock()
	if f.closedIssues != nil {
		return f.closedIssues(ctx, owner, name, page, perPage)
	}
	return driven.IssuePage{}, nil
}

func (f *fakeSource) CommitCount(ctx context.Context, owner, name string) (int, error) {
	if f.commits != nil {
		return f.commits(ctx, owner, name)
	}
	return 0, nil
}

func repoRefs(owner string, from, n int) []driven.RepoRef {
	refs := make([]driven.RepoRef, 0, n)
	for i := from; i < from+n; i++ {
		refs = append(refs, driven.RepoRef{Owner: owner, Name: fmt.Sprintf("repo-%03d", i)})
	}
	return refs
}

// --- Issue tracker ---

// memTracker is an in-memory issue container.
type memTracker struct {
	mu     sync.Mutex
	issues []model.TrackedItem
	bodies map[int]string

	creates []string
	updates []int
	gets    []int

	failCreate func(title string) error
	failUpdate func(number int) error
	failList   func(page int) error
}

func newMemTracker(items ...model.TrackedItem) *memTracker {
	t := &memTracker{bodies: make(map[int]string)}
	t.issues = append(t.issues, items...)
	return t
}

func (t *memTracker) ListIssues(_ context.Context, _, _ string, page, perPage int) (driven.IssuePage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failList != nil {
		if err := t.failList(page); err != nil {
			return driven.IssuePage{}, err
		}
	}
	start := (page - 1) * perPage
	if start >= len(t.issues) {
		return driven.IssuePage{}, nil
	}
	end := min(start+perPage, len(t.issues))
	items := make([]model.TrackedItem, 0, end-start)
	for _, it := range t.issues[start:end] {
		it.NodeID = ""
		items = append(items, it)
	}
	return driven.IssuePage{Items: items}, nil
}

func (t *memTracker) CreateIssue(_ context.Context, _, _, title, body string) (model.TrackedItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failCreate != nil {
		if err := t.failCreate(title); err != nil {
			return model.TrackedItem{}, err
		}
	}
	t.creates = append(t.creates, title)
	item := model.TrackedItem{
		Number: len(t.issues) + 1,
		Title:  title,
		State:  model.IssueStateOpen,
		NodeID: fmt.Sprintf("I_%d", len(t.issues)+1),
	}
	t.issues = append(t.issues, item)
	t.bodies[item.Number] = body
	return item, nil
}

func (t *memTracker) UpdateIssueBody(_ context.Context, _, _ string, number int, body string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failUpdate != nil {
		if err := t.failUpdate(number); err != nil {
			return err
		}
	}
	t.updates = append(t.updates, number)
	t.bodies[number] = body
	return nil
}

func (t *memTracker) GetIssue(_ context.Context, _, _ string, number int) (model.TrackedItem, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gets = append(t.gets, number)
	for _, it := range t.issues {
		if it.Number == number {
			it.NodeID = fmt.Sprintf("I_%d", number)
			return it, nil
		}
	}
	return model.TrackedItem{}, notFound()
}

func (t *memTracker) countTitle(title string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, it := range t.issues {
		if it.Title == title {
			n++
		}
	}
	return n
}

// --- Board client ---

type mockBoardClient struct {
	mock.Mock
}

func (m *mockBoardClient) GetBoard(ctx context.Context, owner string, number int) (*driven.Board, error) {
	args := m.Called(ctx, owner, number)
	board, _ := args.Get(0).(*driven.Board)
	return board, args.Error(1)
}

func (m *mockBoardClient) AddItem(ctx context.Context, projectID, contentID string) (string, error) {
	args := m.Called(ctx, projectID, contentID)
	return args.String(0), args.Error(1)
}

func (m *mockBoardClient) ListItems(ctx context.Context, projectID string) ([]model.BoardItem, error) {
	args := m.Called(ctx, projectID)
	items, _ := args.Get(0).([]model.BoardItem)
	return items, args.Error(1)
}

func (m *mockBoardClient) SetSingleSelect(ctx context.Context, projectID, itemID, fieldID, optionID string) error {
	args := m.Called(ctx, projectID, itemID, fieldID, optionID)
	return args.Error(0)
}

// statusBoard returns a board whose Status field offers the given buckets.
func statusBoard(buckets ...model.RecencyBucket) *driven.Board {
	opts := make([]model.BoardOption, 0, len(buckets))
	for _, b := range buckets {
		opts = append(opts, model.BoardOption{ID: "opt-" + string(b), Name: b.Label()})
	}
	return &driven.Board{
		ID: "PVT_1",
		Fields: []model.BoardField{
			{ID: "F_title", Name: "Title"},
			{ID: "F_status", Name: "Status", Options: opts},
		},
	}
}

// --- Records ---

func record(name string, bucket model.RecencyBucket) model.Record {
	return model.Record{
		Repository: model.Repository{
			Name:     name,
			FullName: "octo/" + name,
			URL:      "https://github.com/octo/" + name,
			PushedAt: fixedNow.AddDate(0, 0, -3),
		},
		Activity: model.ActivityInfo{
			LastActivityAt: fixedNow.AddDate(0, 0, -3),
			Source:         model.ActivityPush,
			Bucket:         bucket,
		},
	}
}
