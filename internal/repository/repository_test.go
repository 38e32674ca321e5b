package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/rockhound-be/internal/database"
	"github.com/isdelr/rockhound-be/internal/models"
	"github.com/isdelr/rockhound-be/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) *Store {
		return NewSQLiteStore(testutil.OpenInMemoryDB(t))
	})
}

// Runs only when MONGO_TEST_URI points at a disposable MongoDB instance.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	runStoreContract(t, func(t *testing.T) *Store {
		ctx := context.Background()
		client, err := database.ConnectMongo(ctx, uri)
		require.NoError(t, err)
		db := client.Database("rockhound_test_" + uuid.NewString()[:8])
		t.Cleanup(func() {
			_ = db.Drop(context.Background())
			_ = client.Disconnect(context.Background())
		})
		require.NoError(t, database.EnsureMongoIndexes(ctx, db))
		return NewMongoStore(db)
	})
}

func runStoreContract(t *testing.T, open func(t *testing.T) *Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("rocks", func(t *testing.T) { testRocks(t, open(t)) })
	t.Run("aggregates", func(t *testing.T) { testAggregates(t, open(t)) })
}

func newUser(name string) models.User {
	return models.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
}

func newRock(userID, name string, score int, at time.Time) models.Rock {
	return models.Rock{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Type:        "mineral",
		Rarity:      "Common",
		RarityScore: score,
		Composition: []string{"SiO2"},
		Hardness:    7,
		Confidence:  0.9,
		Origin:      models.OriginScan,
		XPAwarded:   10 + score,
		CreatedAt:   at.UTC().Truncate(time.Millisecond),
	}
}

func testUsers(t *testing.T, store *Store) {
	ctx := context.Background()
	users := store.Users

	alice, err := users.Create(ctx, newUser("alice"))
	require.NoError(t, err)

	got, err := users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, got.Email)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.True(t, alice.CreatedAt.Equal(got.CreatedAt))

	_, err = users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	_, err = users.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	_, err = users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	dup := newUser("alice")
	_, err = users.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	updated, err := users.AddXP(ctx, alice.ID, 75)
	require.NoError(t, err)
	assert.Equal(t, 75, updated.XP)

	updated, err = users.AddXP(ctx, alice.ID, -500)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.XP)

	_, err = users.AddXP(ctx, "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)

	admin := newUser("root")
	admin.Role = models.RoleAdmin
	_, err = users.Create(ctx, admin)
	require.NoError(t, err)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = users.CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func testRocks(t *testing.T, store *Store) {
	ctx := context.Background()
	owner, err := store.Users.Create(ctx, newUser("owner"))
	require.NoError(t, err)

	now := time.Now()
	older, err := store.Rocks.Create(ctx, newRock(owner.ID, "Quartz", 30, now.Add(-time.Hour)))
	require.NoError(t, err)
	newer, err := store.Rocks.Create(ctx, newRock(owner.ID, "Obsidian", 50, now))
	require.NoError(t, err)

	got, err := store.Rocks.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, "Quartz", got.Name)
	assert.Equal(t, []string{"SiO2"}, got.Composition)
	assert.Equal(t, owner.ID, got.UserID)

	list, err := store.Rocks.ListByUser(ctx, owner.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")

	page, err := store.Rocks.ListByUser(ctx, owner.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, older.ID, page[0].ID)

	empty, err := store.Rocks.ListByUser(ctx, "someone-else", 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	require.NoError(t, store.Rocks.Delete(ctx, older.ID))
	assert.ErrorIs(t, store.Rocks.Delete(ctx, older.ID), ErrNotFound)
	_, err = store.Rocks.GetByID(ctx, older.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func testAggregates(t *testing.T, store *Store) {
	ctx := context.Background()
	u, err := store.Users.Create(ctx, newUser("agg"))
	require.NoError(t, err)

	today := time.Now().UTC()
	yesterday := today.Add(-24 * time.Hour)

	quartz := newRock(u.ID, "Quartz", 20, yesterday)
	quartz2 := newRock(u.ID, "Quartz", 25, today)
	quartz2.Type = "igneous"
	fused := newRock(u.ID, "Starstone", 90, today)
	fused.Origin = models.OriginLab
	fused.Type = "synthetic"
	fused.Rarity = "Epic"
	for _, r := range []models.Rock{quartz, quartz2, fused} {
		_, err := store.Rocks.Create(ctx, r)
		require.NoError(t, err)
	}

	summary, err := store.Rocks.Summary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionSummary{Count: 3, DistinctTypes: 3, MaxRarityScore: 90, LabFusions: 1}, summary)

	emptySummary, err := store.Rocks.Summary(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, emptySummary)

	n, err := store.Rocks.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	daily, err := store.Rocks.DailyCounts(ctx, yesterday.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{
		{Date: DayKey(yesterday), Count: 1},
		{Date: DayKey(today), Count: 2},
	}, daily)

	recent, err := store.Rocks.DailyCounts(ctx, today.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []models.DailyCount{{Date: DayKey(today), Count: 2}}, recent)

	rarity, err := store.Rocks.RarityDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.LabelCount{{Label: "Common", Count: 2}, {Label: "Epic", Count: 1}}, rarity)

	top, err := store.Rocks.TopNames(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.LabelCount{{Label: "Quartz", Count: 2}}, top)
}
