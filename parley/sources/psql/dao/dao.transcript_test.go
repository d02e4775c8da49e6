package dao

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"parley/parley/sources/psql"
	"parley/parley/sources/psql/models"
)

// --- Helpers ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection, so every query sees the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, psql.Migrate(context.Background(), db))
	return db
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

func newTestDAO(t *testing.T) (*TranscriptDAO, *stepClock) {
	clock := &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewTranscriptDAO(newTestDB(t)).WithClock(clock.Now), clock
}

func exchange(question, answer string) []models.Turn {
	return []models.Turn{
		{Role: models.RoleUser, Content: question},
		{Role: models.RoleAssistant, Content: answer},
	}
}

func contents(turns []models.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Role + ":" + t.Content
	}
	return out
}

func TestAppendThenReadKeepsOrder(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q1", "a1")...))
	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q2", "a2")...))
	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q1", "a1")...))

	turns, err := d.Read(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"user:q1", "assistant:a1",
		"user:q2", "assistant:a2",
		"user:q1", "assistant:a1",
	}, contents(turns))
	for _, turn := range turns {
		assert.False(t, turn.Timestamp.IsZero())
	}

	var headers int64
	require.NoError(t, d.DB.Model(&models.Transcript{}).Count(&headers).Error)
	assert.Equal(t, int64(1), headers)
}

func TestAppendUpdatesUpdatedAtOnly(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q1", "a1")...))
	var first models.Transcript
	require.NoError(t, d.DB.Take(&first).Error)

	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q2", "a2")...))
	var second models.Transcript
	require.NoError(t, d.DB.Take(&second).Error)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestAppendRejectsInvalidTurns(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	err := d.Append(ctx, "s1", "u1", models.Turn{Role: "system", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidTurn)

	err = d.Append(ctx, "s1", "u1", models.Turn{Role: models.RoleUser, Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidTurn)

	err = d.Append(ctx, "", "u1", exchange("q", "a")...)
	assert.ErrorIs(t, err, ErrInvalidTurn)

	turns, err := d.Read(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestReadMissingSessionIsEmpty(t *testing.T) {
	d, _ := newTestDAO(t)

	turns, err := d.Read(context.Background(), "nope", "u1")
	require.NoError(t, err)
	require.NotNil(t, turns)
	assert.Len(t, turns, 0)
}

func TestDeleteIsIdempotent(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	require.NoError(t, d.Delete(ctx, "missing", "u1"))

	require.NoError(t, d.Append(ctx, "s1", "u1", exchange("q", "a")...))
	require.NoError(t, d.Delete(ctx, "s1", "u1"))
	require.NoError(t, d.Delete(ctx, "s1", "u1"))

	turns, err := d.Read(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	var orphans int64
	require.NoError(t, d.DB.Model(&models.Turn{}).Count(&orphans).Error)
	assert.Zero(t, orphans)
}

func TestUsersAreIsolated(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	require.NoError(t, d.Append(ctx, "shared", "alice", exchange("alice q", "alice a")...))

	// another user reading the same session id sees nothing
	turns, err := d.Read(ctx, "shared", "mallory")
	require.NoError(t, err)
	assert.Empty(t, turns)

	list, err := d.List(ctx, "mallory", 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	// and cannot delete it
	require.NoError(t, d.Delete(ctx, "shared", "mallory"))
	turns, err = d.Read(ctx, "shared", "alice")
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	// reusing the id creates a separate transcript
	require.NoError(t, d.Append(ctx, "shared", "mallory", exchange("m q", "m a")...))
	turns, err = d.Read(ctx, "shared", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"user:alice q", "assistant:alice a"}, contents(turns))
}

func TestListNewestFirstAndCapped(t *testing.T) {
	d, _ := newTestDAO(t)
	ctx := context.Background()

	for i := 0; i < MaxListedSessions+5; i++ {
		require.NoError(t, d.Append(ctx, fmt.Sprintf("s%02d", i), "u1", exchange("q", "a")...))
	}
	require.NoError(t, d.Append(ctx, "other", "u2", exchange("q", "a")...))

	list, err := d.List(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, list, MaxListedSessions)
	assert.Equal(t, fmt.Sprintf("s%02d", MaxListedSessions+4), list[0].SessionID)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].CreatedAt.After(list[i].CreatedAt), "not newest first at %d", i)
	}
	assert.Equal(t, []string{"user:q", "assistant:a"}, contents(list[0].Turns))

	limited, err := d.List(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

// On SQLite the single connection serializes the transactions, so this covers the
// ON CONFLICT upsert path rather than a real race. TestConcurrentAppendsPostgres races them.
func TestConcurrentAppendsCreateOneTranscript(t *testing.T) {
	d, _ := newTestDAO(t)
	assertConcurrentAppends(t, d, "busy")
}

// Set PARLEY_TEST_DATABASE_URL to a scratch Postgres database to run it.
func TestConcurrentAppendsPostgres(t *testing.T) {
	dsn := os.Getenv("PARLEY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PARLEY_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	d := NewTranscriptDAO(db.DB)
	sessionID := "race-" + uuid.NewString()
	t.Cleanup(func() { d.Delete(context.Background(), sessionID, "u1") })
	assertConcurrentAppends(t, d, sessionID)
}

func assertConcurrentAppends(t *testing.T, d *TranscriptDAO, sessionID string) {
	t.Helper()
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs <- d.Append(ctx, sessionID, "u1", exchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))...)
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var headers int64
	require.NoError(t, d.DB.Model(&models.Transcript{}).Where("session_id = ?", sessionID).Count(&headers).Error)
	assert.Equal(t, int64(1), headers)

	turns, err := d.Read(ctx, sessionID, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 2*workers)
	// each pair stays adjacent: user then its own assistant reply
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, models.RoleUser, turns[i].Role)
		assert.Equal(t, models.RoleAssistant, turns[i+1].Role)
		assert.Equal(t, "a"+turns[i].Content[1:], turns[i+1].Content)
	}
}

func TestListExpiredAndDeleteByID(t *testing.T) {
	d, clock := newTestDAO(t)
	ctx := context.Background()

	require.NoError(t, d.Append(ctx, "old", "u1", exchange("q", "a")...))
	cutoff := clock.Now()
	require.NoError(t, d.Append(ctx, "new", "u1", exchange("q", "a")...))

	expired, err := d.ListExpired(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].SessionID)
	assert.Equal(t, "u1", expired[0].UserID)
	assert.Len(t, expired[0].Turns, 2)

	require.NoError(t, d.DeleteByID(ctx, expired[0].ID))

	turns, err := d.Read(ctx, "old", "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)
	turns, err = d.Read(ctx, "new", "u1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}
