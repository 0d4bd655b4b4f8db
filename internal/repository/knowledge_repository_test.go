package repository_test

import (
	"context"
	"mangrat-go/internal/category"
	"mangrat-go/internal/model"
	"mangrat-go/internal/repository"
	"mangrat-go/internal/testutil"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeRepository_GeneralUpsertAndFind(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	_, found, err := repo.Find(ctx, category.General, "2+2")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.Upsert(ctx, category.General, "2+2", "4"))
	require.NoError(t, repo.Upsert(ctx, category.General, "2+2", "four"))

	answer, found, err := repo.Find(ctx, category.General, "2+2")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "four", answer)

	var count int64
	require.NoError(t, db.Table("knowledge").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestKnowledgeRepository_TopicUpsertRefreshesTimestamp(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, category.Geography, "capital of France", "Paris"))
	var first model.TopicEntry
	require.NoError(t, db.Table("geographie").Where("key_name = ?", "capital of France").Take(&first).Error)

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.Upsert(ctx, category.Geography, "capital of France", "Paris"))
	var second model.TopicEntry
	require.NoError(t, db.Table("geographie").Where("key_name = ?", "capital of France").Take(&second).Error)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Paris", second.Content)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))

	var count int64
	require.NoError(t, db.Table("geographie").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestKnowledgeRepository_PartitionsAreIsolated(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, category.Animals, "lion", "roi de la savane"))

	_, found, err := repo.Find(ctx, category.General, "lion")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = repo.Find(ctx, category.History, "lion")
	require.NoError(t, err)
	assert.False(t, found)

	answer, found, err := repo.Find(ctx, category.Animals, "lion")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "roi de la savane", answer)
}

func TestKnowledgeRepository_FindIsExact(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, category.General, "Hello", "world"))

	for _, q := range []string{"hello", "Hello ", " Hello", "HELLO"} {
		_, found, err := repo.Find(ctx, category.General, q)
		require.NoError(t, err)
		assert.False(t, found, "question %q", q)
	}
}

func TestKnowledgeRepository_TrailingSpaceIsADistinctKey(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	for _, p := range []category.Partition{category.General, category.History} {
		require.NoError(t, repo.Upsert(ctx, p, "q", "sans espace"))
		require.NoError(t, repo.Upsert(ctx, p, "q ", "avec espace"))

		answer, found, err := repo.Find(ctx, p, "q")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "sans espace", answer, p.Name)

		answer, found, err = repo.Find(ctx, p, "q ")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "avec espace", answer, p.Name)

		entries, err := repo.List(ctx, p)
		require.NoError(t, err)
		assert.Len(t, entries, 2, p.Name)
	}
}

func TestKnowledgeRepository_MaxLengthQuestion(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	q := strings.Repeat("é", model.MaxQuestionLength)
	require.NoError(t, repo.Upsert(ctx, category.Geography, q, "long"))
	answer, found, err := repo.Find(ctx, category.Geography, q)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "long", answer)
}

func TestKnowledgeRepository_List(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewKnowledgeRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, category.History, "1789", "Révolution française"))
	require.NoError(t, repo.Upsert(ctx, category.History, "1492", "Colomb"))
	require.NoError(t, repo.Upsert(ctx, category.General, "ping", "pong"))

	entries, err := repo.List(ctx, category.History)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1789", entries[0].Question)
	assert.Equal(t, "Révolution française", entries[0].Answer)
	assert.NotNil(t, entries[0].UpdatedAt)

	entries, err = repo.List(ctx, category.General)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UpdatedAt)

	entries, err = repo.List(ctx, category.Sports)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
