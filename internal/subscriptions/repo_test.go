package subscriptions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/db/models"
	"github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/enums"
)

func setupRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.Subscription{}))
	return conn
}

func seedRepoSub(t *testing.T, repo Repository, status enums.SubscriptionStatus, autoRenew bool, endIn time.Duration) *models.Subscription {
	t.Helper()

	now := time.Now().UTC()
	sub := &models.Subscription{
		UserID:            uuid.New(),
		PlanID:            uuid.New(),
		Status:            status,
		SearchesUsed:      10,
		SearchesRemaining: 990,
		StartDate:         now.AddDate(0, 0, -15),
		EndDate:           now.Add(endIn),
		AutoRenew:         autoRenew,
	}
	require.NoError(t, repo.Create(context.Background(), sub))
	return sub
}

func TestRepositoryFindActiveByUser(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	active := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 10*24*time.Hour)

	expired := seedRepoSub(t, repo, enums.SubscriptionStatusExpired, false, -time.Hour)
	expired.UserID = active.UserID
	require.NoError(t, repo.Update(ctx, expired))

	// Active status but a closed window: not live.
	lapsed := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, -time.Hour)

	found, err := repo.FindActiveByUser(ctx, active.UserID, now)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, active.ID, found.ID)

	gone, err := repo.FindActiveByUser(ctx, lapsed.UserID, now)
	require.NoError(t, err)
	assert.Nil(t, gone)

	missing, err := repo.FindActiveByUser(ctx, uuid.New(), now)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryRejectsSecondActiveRowPerUser(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()

	first := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 10*24*time.Hour)

	dup := &models.Subscription{
		UserID:            first.UserID,
		PlanID:            uuid.New(),
		Status:            enums.SubscriptionStatusActive,
		SearchesRemaining: 500,
		StartDate:         time.Now().UTC(),
		EndDate:           time.Now().UTC().Add(30 * 24 * time.Hour),
	}
	err := repo.Create(ctx, dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "idx_subscriptions_one_active"))

	// Pending rows are outside the constraint; two of those may coexist.
	pending := &models.Subscription{
		UserID:            first.UserID,
		PlanID:            uuid.New(),
		Status:            enums.SubscriptionStatusPending,
		SearchesRemaining: 500,
		StartDate:         time.Now().UTC(),
		EndDate:           time.Now().UTC().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, pending))
}

func TestRepositoryFindActiveByUserForUpdate(t *testing.T) {
	conn := setupRepoTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	active := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 10*24*time.Hour)

	err := conn.Transaction(func(tx *gorm.DB) error {
		found, err := repo.WithTx(tx).FindActiveByUserForUpdate(ctx, active.UserID, now)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, active.ID, found.ID)

		missing, err := repo.WithTx(tx).FindActiveByUserForUpdate(ctx, uuid.New(), now)
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestRepositoryConsumeUnitStopsAtZero(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()

	sub := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 24*time.Hour)
	sub.SearchesUsed = 999
	sub.SearchesRemaining = 1
	require.NoError(t, repo.Update(ctx, sub))

	ok, err := repo.ConsumeUnit(ctx, sub.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeUnit(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, ok, "exhausted quota must not go negative")

	reloaded, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000, reloaded.SearchesUsed)
	assert.Equal(t, 0, reloaded.SearchesRemaining)
}

func TestRepositoryConsumeUnitIgnoresInactiveRows(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()

	sub := seedRepoSub(t, repo, enums.SubscriptionStatusCancelled, false, 24*time.Hour)

	ok, err := repo.ConsumeUnit(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryExpireDue(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()

	overdue := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, -time.Hour)
	current := seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 24*time.Hour)

	count, err := repo.ExpireDue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	reloaded, err := repo.FindByID(ctx, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusExpired, reloaded.Status)

	untouched, err := repo.FindByID(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, untouched.Status)
}

func TestRepositoryListDueForRenewal(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	due := seedRepoSub(t, repo, enums.SubscriptionStatusActive, true, 6*time.Hour)
	seedRepoSub(t, repo, enums.SubscriptionStatusActive, true, 72*time.Hour)
	seedRepoSub(t, repo, enums.SubscriptionStatusActive, false, 6*time.Hour)
	seedRepoSub(t, repo, enums.SubscriptionStatusActive, true, -time.Hour)

	rows, err := repo.ListDueForRenewal(ctx, now, 24*time.Hour, 50)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, due.ID, rows[0].ID)
}

func TestRepositoryRenewGuardsExpectedEnd(t *testing.T) {
	repo := NewRepository(setupRepoTestDB(t))
	ctx := context.Background()

	sub := seedRepoSub(t, repo, enums.SubscriptionStatusActive, true, 6*time.Hour)
	newEnd := sub.EndDate.AddDate(0, 0, 30)

	ok, err := repo.Renew(ctx, sub.ID, sub.EndDate, newEnd, 1000)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded, err := repo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reloaded.SearchesUsed)
	assert.Equal(t, 1000, reloaded.SearchesRemaining)

	// The row moved on; a repeat with the stale end date must not apply.
	ok, err = repo.Renew(ctx, sub.ID, sub.EndDate, newEnd.AddDate(0, 0, 30), 1000)
	require.NoError(t, err)
	assert.False(t, ok)
}
