package refreshstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveAndFind(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(func() time.Time { return now })

	rec := Record{JTI: "j1", Username: "admin", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.Save(context.Background(), rec))

	found, err := s.FindByJti(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "admin", found.Username)
	assert.False(t, found.Revoked)
}

func TestMemoryStore_FindByJti_NotFound(t *testing.T) {
	s := NewMemoryStore(time.Now)
	_, err := s.FindByJti(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_RevokeFamily_AllMembersObserveRevoked(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Record{JTI: "j1", Username: "admin", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.Save(ctx, Record{JTI: "j2", Username: "admin", FamilyID: "f1", PreviousJti: "j1", ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, s.RevokeFamily(ctx, "f1"))

	rec1, err := s.FindByJti(ctx, "j1")
	require.NoError(t, err)
	assert.True(t, rec1.Revoked)

	rec2, err := s.FindByJti(ctx, "j2")
	require.NoError(t, err)
	assert.True(t, rec2.Revoked)
}

func TestMemoryStore_ConsumeOnce_FirstWinsOnly(t *testing.T) {
	s := NewMemoryStore(time.Now)
	ctx := context.Background()

	first, err := s.ConsumeOnce(ctx, "j1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.ConsumeOnce(ctx, "j1", time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestMemoryStore_ConsumeOnce_ConcurrentCallersExactlyOneWins(t *testing.T) {
	s := NewMemoryStore(time.Now)
	ctx := context.Background()

	const n = 50
	results := make(chan bool, n)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			first, err := s.ConsumeOnce(ctx, "shared-jti", time.Minute)
			require.NoError(t, err)
			results <- first
		}()
	}
	go func() {
		winners := 0
		for i := 0; i < n; i++ {
			if <-results {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
		close(done)
	}()
	<-done
}

func TestMemoryStore_DeleteAllForUser(t *testing.T) {
	now := time.Now()
	s := NewMemoryStore(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Record{JTI: "j1", Username: "admin", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.DeleteAllForUser(ctx, "admin"))

	jtis, err := s.FindAllForUser(ctx, "admin")
	require.NoError(t, err)
	assert.Empty(t, jtis)
}
