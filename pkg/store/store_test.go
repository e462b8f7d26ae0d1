package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/record-editor/pkg/records"
)

func sample() records.Collection {
	return records.Collection{
		{ID: 1, Fields: map[string]string{"role": "Eng"}},
		{ID: 2, Fields: map[string]string{"role": "Lead", "team": "core"}},
		{ID: 5, Fields: map[string]string{}},
	}
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.sqlite3"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": openTestSQLite(t),
	}
}

func TestLoadUnknownSelector(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(context.Background(), "nobody")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.History(context.Background(), "nobody")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			saved, err := s.Save(ctx, "A", sample())
			require.NoError(t, err)
			assert.True(t, saved.Equal(sample()), "saved %v", saved)

			loaded, err := s.Load(ctx, "A")
			require.NoError(t, err)
			assert.True(t, loaded.Equal(sample()), "loaded %v", loaded)

			// shrink and save again
			_, err = s.Save(ctx, "A", sample()[:1])
			require.NoError(t, err)
			loaded, err = s.Load(ctx, "A")
			require.NoError(t, err)
			assert.True(t, loaded.Equal(sample()[:1]), "loaded %v", loaded)

			_, err = s.Save(ctx, "B", records.Collection{})
			require.NoError(t, err)
			loaded, err = s.Load(ctx, "B")
			require.NoError(t, err)
			assert.Empty(t, loaded)

			revs, err := s.History(ctx, "A")
			require.NoError(t, err)
			require.Len(t, revs, 2)
			assert.Equal(t, 3, revs[0].Records)
			assert.Equal(t, 1, revs[1].Records)
			assert.Equal(t, "save 1 records", revs[1].Message)
		})
	}
}

func TestSaveRejectsDuplicateIds(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Save(context.Background(), "A", records.Collection{{ID: 1}, {ID: 1}})
			assert.Error(t, err)
			_, err = s.Load(context.Background(), "A")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestLoadedCollectionDoesNotAliasStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Save(ctx, "A", sample())
			require.NoError(t, err)
			loaded, err := s.Load(ctx, "A")
			require.NoError(t, err)
			loaded[0].Fields["role"] = "changed"

			again, err := s.Load(ctx, "A")
			require.NoError(t, err)
			assert.Equal(t, "Eng", again[0].Fields["role"])
		})
	}
}

func TestMemoryStoreFailSave(t *testing.T) {
	m := NewMemoryStore()
	m.Seed("A", sample())
	m.FailSave = errors.New("disk full")

	_, err := m.Save(context.Background(), "A", records.Collection{})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "A", ioErr.Selector)
	assert.ErrorIs(t, err, m.FailSave)

	loaded, err := m.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, loaded.Equal(sample()))
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.sqlite3")
	s, err := OpenSQLite(path, "first")
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "A", sample())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, "second")
	require.NoError(t, err)
	defer s.Close()
	loaded, err := s.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, loaded.Equal(sample()))

	_, err = s.Save(context.Background(), "A", sample()[1:])
	require.NoError(t, err)
	revs, err := s.History(context.Background(), "A")
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.NotEqual(t, revs[0].Actor, revs[1].Actor)
}

func TestSQLitePruneKeepsLatest(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.Save(ctx, "A", sample()[:i+1])
		require.NoError(t, err)
	}
	n, err := s.Prune(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	s.cache.Delete("A")
	loaded, err := s.Load(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
}

func TestSQLiteSaveFailsOnClosedDatabase(t *testing.T) {
	s := openTestSQLite(t)
	_, err := s.Save(context.Background(), "A", sample())
	require.NoError(t, err)
	require.NoError(t, s.database.Close())

	_, err = s.Save(context.Background(), "A", records.Collection{})
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)

	// the cached document still holds the last committed state
	loaded, err := s.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, loaded.Equal(sample()))
}

func TestDocCodec(t *testing.T) {
	doc := automerge.New()
	empty, err := ReadRecords(doc)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, WriteRecords(doc, sample()))
	_, err = doc.Commit("one", automerge.CommitOptions{AllowEmpty: true})
	require.NoError(t, err)

	back, err := ReadRecords(doc)
	require.NoError(t, err)
	assert.True(t, back.Equal(sample()))

	revs, err := Revisions(doc)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "one", revs[0].Message)
	assert.Equal(t, 3, revs[0].Records)
}
