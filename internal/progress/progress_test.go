//go:build testutil
// +build testutil

package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/progress"
	"github.com/Spok95/course-tracker/internal/testutil/testdb"
)

const weeks = 6

func newService(t *testing.T) (*progress.Service, *testdb.DBHandle) {
	h := testdb.MustStart(t)
	g := guard.New(h.DB, nil, guard.Options{Timeout: 5 * time.Second})
	return progress.New(g, weeks, nil), h
}

func TestSeed_AllWeeksPresent(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "student42", models.Student)

	require.NoError(t, svc.Seed(ctx, uid))
	require.NoError(t, svc.Seed(ctx, uid)) // идемпотентно

	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Len(t, m, weeks+1)
	require.Equal(t, models.Unlocked, m[0])
	for w := 1; w <= weeks; w++ {
		require.Equal(t, models.Locked, m[w], "неделя %d", w)
	}

	var rows int
	require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM progress WHERE user_id = $1`, uid).Scan(&rows))
	require.Equal(t, weeks+1, rows)
}

func TestAdminLock_OrientationStaysUnlocked(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)
	require.NoError(t, svc.Seed(ctx, uid))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AdminLock(ctx, uid, 0))
		m, err := svc.Get(ctx, uid)
		require.NoError(t, err)
		require.Equal(t, models.Unlocked, m[0])
	}
}

func TestCompleteOrientation_UnlocksWeekOne(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)
	require.NoError(t, svc.Seed(ctx, uid))

	require.NoError(t, svc.CompleteOrientation(ctx, uid))
	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, models.Completed, m[0])
	require.Equal(t, models.Unlocked, m[1])
	require.Equal(t, models.Locked, m[2], "остальные недели сами не открываются")

	done, err := svc.IsOrientationCompleted(ctx, uid)
	require.NoError(t, err)
	require.True(t, done)
}

func TestCompleteOrientation_RespectsAdminOverride(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)
	require.NoError(t, svc.Seed(ctx, uid))

	require.NoError(t, svc.AdminLock(ctx, uid, 1))
	require.NoError(t, svc.CompleteOrientation(ctx, uid))

	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, models.Completed, m[0])
	require.Equal(t, models.Locked, m[1], "неделю 1 закрыл админ, автоматически не открываем")
}

func TestCompleteWeek_NoCascade(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)
	require.NoError(t, svc.Seed(ctx, uid))
	require.NoError(t, svc.AdminUnlock(ctx, uid, 2))

	require.NoError(t, svc.CompleteWeek(ctx, uid, 2))
	require.NoError(t, svc.CompleteWeek(ctx, uid, 2))

	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, models.Completed, m[2])
	require.Equal(t, models.Locked, m[3])

	ok, err := svc.IsWeekUnlocked(ctx, uid, 2)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCompleteOrientation_DoesNotRegressCompletedWeekOne(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)
	require.NoError(t, svc.Seed(ctx, uid))
	require.NoError(t, svc.CompleteOrientation(ctx, uid))
	require.NoError(t, svc.CompleteWeek(ctx, uid, 1))

	require.NoError(t, svc.CompleteOrientation(ctx, uid))
	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, models.Completed, m[1])
}

func TestUnknownUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	require.ErrorIs(t, svc.Seed(ctx, 9999), apperr.ErrNotFound)
	require.ErrorIs(t, svc.AdminUnlock(ctx, 9999, 1), apperr.ErrNotFound)
	_, err := svc.Get(ctx, 9999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestWeekOutOfRange(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)

	require.ErrorIs(t, svc.AdminUnlock(ctx, uid, weeks+1), apperr.ErrValidation)
	require.ErrorIs(t, svc.CompleteWeek(ctx, uid, -1), apperr.ErrValidation)
}

func TestGet_DefaultsWhenNotSeeded(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	uid := testdb.MustSeedUser(t, h.DB, "s", models.Student)

	m, err := svc.Get(ctx, uid)
	require.NoError(t, err)
	require.Len(t, m, weeks+1)
	require.Equal(t, models.Unlocked, m[0])
	require.Equal(t, models.Locked, m[weeks])
}

func TestSync_FillsAllStudents(t *testing.T) {
	ctx := context.Background()
	svc, h := newService(t)
	a := testdb.MustSeedUser(t, h.DB, "a", models.Student)
	b := testdb.MustSeedUser(t, h.DB, "b", models.Student)
	testdb.MustSeedUser(t, h.DB, "root", models.Admin)

	n, err := svc.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, uid := range []int64{a, b} {
		var rows int
		require.NoError(t, h.DB.QueryRow(`SELECT COUNT(*) FROM progress WHERE user_id = $1`, uid).Scan(&rows))
		require.Equal(t, weeks+1, rows)
	}
}
