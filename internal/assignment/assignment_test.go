//go:build testutil
// +build testutil

package assignment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/assignment"
	"github.com/Spok95/course-tracker/internal/blob"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/notify"
	"github.com/Spok95/course-tracker/internal/testutil/testdb"
)

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", apperr.Wrap("fake.Put", apperr.ErrStorage, "disk full", errors.New("ENOSPC"))
}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, apperr.NotFound("fake.Get", "nothing")
}

type recorder struct{ events []notify.Event }

func (r *recorder) Notify(_ context.Context, e notify.Event) { r.events = append(r.events, e) }

type env struct {
	h     *testdb.DBHandle
	svc   *assignment.Service
	rec   *recorder
	admin int64
}

func setup(t *testing.T, store blob.Store) env {
	rec := &recorder{}
	e := setupWith(t, store, rec, 5*time.Second)
	e.rec = rec
	return e
}

func setupWith(t *testing.T, store blob.Store, n notify.Notifier, timeout time.Duration) env {
	h := testdb.MustStart(t)
	if store == nil {
		fs, err := blob.NewFSStore(t.TempDir())
		require.NoError(t, err)
		store = fs
	}
	g := guard.New(h.DB, nil, guard.Options{Timeout: timeout})
	svc := assignment.New(g, store, assignment.Options{TotalWeeks: 6, Notifier: n})
	return env{h: h, svc: svc, admin: testdb.MustSeedUser(t, h.DB, "admin", models.Admin)}
}

// heldStore держит Put, пока не закрыт release.
type heldStore struct {
	blob.Store
	entered chan struct{}
	release chan struct{}
}

func (s *heldStore) Put(ctx context.Context, key string, data []byte, ct string) (string, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.Store.Put(ctx, key, data, ct)
}

// heldNotifier держит первое уведомление, пока не закрыт release.
type heldNotifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (n *heldNotifier) Notify(context.Context, notify.Event) {
	first := false
	n.once.Do(func() { first = true })
	if first {
		close(n.entered)
		<-n.release
	}
}

func grade(f float64) *float64 { return &f }

func TestSubmitReviewScenario(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	uid := testdb.MustSeedUser(t, e.h.DB, "student42", models.Student)

	a, err := e.svc.Submit(ctx, uid, 1, []byte("fileA"), "essay.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.Submitted, a.Status)

	has, err := e.svc.HasSubmission(ctx, uid, 1)
	require.NoError(t, err)
	assert.True(t, has)
	g, err := e.svc.GetGrade(ctx, uid, 1)
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = e.svc.Review(ctx, a.ID, assignment.Decision{Status: models.Approved, Grade: grade(72), Feedback: "Good", ReviewerID: e.admin})
	require.NoError(t, err)

	g, err = e.svc.GetGrade(ctx, uid, 1)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, 72.0, g.Value)
	assert.Equal(t, "Merit", g.Badge)

	got, err := e.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Feedback)
	assert.Equal(t, "Good", *got.Feedback)
	require.NotNil(t, got.ReviewedBy)
	assert.Equal(t, e.admin, *got.ReviewedBy)

	require.Len(t, e.rec.events, 2)
	assert.Equal(t, notify.SubmissionReceived, e.rec.events[0].Kind)
	assert.Equal(t, "Merit", e.rec.events[1].Badge)
}

func TestResubmitResetsReview(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)

	a, err := e.svc.Submit(ctx, uid, 2, []byte("v1"), "v1.pdf")
	require.NoError(t, err)
	_, err = e.svc.Review(ctx, a.ID, assignment.Decision{Status: models.Approved, Grade: grade(91), Feedback: "great", ReviewerID: e.admin})
	require.NoError(t, err)

	b, err := e.svc.Submit(ctx, uid, 2, []byte("v2"), "v2.pdf")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "повторная сдача обновляет ту же строку")
	assert.Equal(t, models.Submitted, b.Status)
	assert.Nil(t, b.Grade)
	assert.Nil(t, b.Feedback)
	assert.Nil(t, b.ReviewedAt)
	assert.Nil(t, b.ReviewedBy)

	g, err := e.svc.GetGrade(ctx, uid, 2)
	require.NoError(t, err)
	assert.Nil(t, g)

	data, name, err := e.svc.Open(ctx, uid, 2)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Equal(t, "v2.pdf", name)
}

func TestSubmit_StorageFailureLeavesDBUntouched(t *testing.T) {
	ctx := context.Background()
	e := setup(t, brokenStore{})
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)

	_, err := e.svc.Submit(ctx, uid, 1, []byte("x"), "x.pdf")
	require.ErrorIs(t, err, apperr.ErrStorage)
	assert.True(t, apperr.Retryable(err))

	var n int
	require.NoError(t, e.h.DB.QueryRow(`SELECT COUNT(*) FROM assignments`).Scan(&n))
	assert.Zero(t, n)
	assert.Empty(t, e.rec.events)
}

func TestReview_InvalidGradeDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)
	a, err := e.svc.Submit(ctx, uid, 1, []byte("x"), "x.pdf")
	require.NoError(t, err)

	_, err = e.svc.Review(ctx, a.ID, assignment.Decision{Status: models.Approved, Grade: grade(150), ReviewerID: e.admin})
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := e.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Submitted, got.Status)
	assert.Nil(t, got.Grade)
}

func TestReview_RejectWithoutGrade(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)
	a, err := e.svc.Submit(ctx, uid, 3, []byte("x"), "x.pdf")
	require.NoError(t, err)

	got, err := e.svc.Review(ctx, a.ID, assignment.Decision{Status: models.Rejected, Feedback: "redo", ReviewerID: e.admin})
	require.NoError(t, err)
	assert.Equal(t, models.Rejected, got.Status)
	assert.Nil(t, got.Grade)

	g, err := e.svc.GetGrade(ctx, uid, 3)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)

	_, err := e.svc.Review(ctx, 12345, assignment.Decision{Status: models.Rejected, ReviewerID: e.admin})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.Submit(ctx, 9999, 1, []byte("x"), "x.pdf")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.svc.HasSubmission(ctx, 9999, 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)
	_, _, err = e.svc.Open(ctx, uid, 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSubmit_Validation(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)

	_, err := e.svc.Submit(ctx, uid, 0, []byte("x"), "x.pdf")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.svc.Submit(ctx, uid, 7, []byte("x"), "x.pdf")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = e.svc.Submit(ctx, uid, 1, nil, "x.pdf")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListAllAndSummary(t *testing.T) {
	ctx := context.Background()
	e := setup(t, nil)
	a := testdb.MustSeedUser(t, e.h.DB, "alice", models.Student)
	b := testdb.MustSeedUser(t, e.h.DB, "bob", models.Student)

	sub, err := e.svc.Submit(ctx, a, 1, []byte("x"), "a1.pdf")
	require.NoError(t, err)
	_, err = e.svc.Submit(ctx, b, 1, []byte("y"), "b1.pdf")
	require.NoError(t, err)
	_, err = e.svc.Review(ctx, sub.ID, assignment.Decision{Status: models.Approved, Grade: grade(85), ReviewerID: e.admin})
	require.NoError(t, err)

	all, err := e.svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	names := []string{all[0].Username, all[1].Username}
	assert.ElementsMatch(t, []string{"alice", "bob"}, names)

	sum, err := e.svc.Summary(ctx, a)
	require.NoError(t, err)
	require.Len(t, sum, 6)
	assert.Equal(t, "Distinction", sum[0].Badge)
	assert.Equal(t, models.AssignmentStatus(""), sum[1].Status)
}

func TestSubmit_SameKeyWaitIsBounded(t *testing.T) {
	ctx := context.Background()
	fs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	store := &heldStore{Store: fs, entered: make(chan struct{}, 1), release: make(chan struct{})}
	e := setupWith(t, store, notify.Nop{}, 200*time.Millisecond)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)

	first := make(chan error, 1)
	go func() {
		_, err := e.svc.Submit(ctx, uid, 1, []byte("v1"), "v1.pdf")
		first <- err
	}()
	<-store.entered

	start := time.Now()
	_, err = e.svc.Submit(ctx, uid, 1, []byte("v2"), "v2.pdf")
	require.ErrorIs(t, err, apperr.ErrBusy)
	assert.True(t, apperr.Retryable(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	close(store.release)
	require.NoError(t, <-first)
	_, name, err := e.svc.Open(ctx, uid, 1)
	require.NoError(t, err)
	assert.Equal(t, "v1.pdf", name)
}

func TestSubmit_NotifyDoesNotHoldKey(t *testing.T) {
	ctx := context.Background()
	n := &heldNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	e := setupWith(t, nil, n, time.Second)
	uid := testdb.MustSeedUser(t, e.h.DB, "s", models.Student)
	defer close(n.release)

	go func() { _, _ = e.svc.Submit(ctx, uid, 1, []byte("v1"), "v1.pdf") }()
	<-n.entered

	_, err := e.svc.Submit(ctx, uid, 1, []byte("v2"), "v2.pdf")
	require.NoError(t, err, "пока висит уведомление первой сдачи, ключ должен быть свободен")
	_, name, err := e.svc.Open(ctx, uid, 1)
	require.NoError(t, err)
	assert.Equal(t, "v2.pdf", name)
}
