package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automated-mda/backend/internal/config"
	"github.com/automated-mda/backend/internal/models"
)

func testBundle(id string, created time.Time) *models.ResultsBundle {
	b := models.DemoResults()
	b.ID = id
	b.JobID = "job-" + id
	b.CreatedAt = created
	b.Markdown = "# Management Discussion and Analysis\n"
	return b
}

func resultStores(t *testing.T) map[string]ResultStore {
	t.Helper()
	duck, err := NewDuckResultStore(filepath.Join(t.TempDir(), "db", "results.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { duck.Close() })

	return map[string]ResultStore{
		"memory": NewMemoryResultStore(),
		"duckdb": duck,
	}
}

func TestResultStores_SaveGet(t *testing.T) {
	for name, store := range resultStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			created := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)
			want := testBundle("r1", created)

			require.NoError(t, store.Save(ctx, want))

			got, err := store.Get(ctx, "r1")
			require.NoError(t, err)
			assert.Equal(t, want.Company, got.Company)
			assert.Equal(t, want.Period, got.Period)
			assert.Equal(t, want.KPIs, got.KPIs)
			assert.Equal(t, want.MDASections, got.MDASections)
			assert.Equal(t, want.Markdown, got.Markdown)
			assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

			_, err = store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrResultNotFound)
		})
	}
}

func TestResultStores_ReplaceAndList(t *testing.T) {
	for name, store := range resultStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			require.NoError(t, store.Save(ctx, testBundle("old", base)))
			require.NoError(t, store.Save(ctx, testBundle("new", base.Add(time.Hour))))

			updated := testBundle("old", base)
			updated.Company = "Renamed Co"
			require.NoError(t, store.Save(ctx, updated))

			got, err := store.Get(ctx, "old")
			require.NoError(t, err)
			assert.Equal(t, "Renamed Co", got.Company)

			list, err := store.List(ctx, 10)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "job-new", list[0].JobID)
			assert.Equal(t, "2024-01-01T01:00:00Z", list[0].CreatedAt)
			assert.Equal(t, "Renamed Co", list[1].Company)

			list, err = store.List(ctx, 1)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestDuckResultStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.duckdb")
	ctx := context.Background()

	store, err := NewDuckResultStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testBundle("keep", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := NewDuckResultStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", got.Company)
}

func TestEncodeDecodeBundle(t *testing.T) {
	data, err := EncodeBundle(models.DemoResults())
	require.NoError(t, err)

	got, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, models.DemoResultsID, got.ID)
	assert.Len(t, got.MDASections, 4)

	_, err = DecodeBundle([]byte{0xc1})
	assert.Error(t, err)
}

func TestArchive(t *testing.T) {
	assert.Equal(t, "reports/abc.md", ReportKey("abc"))

	_, err := NewArchive(context.Background(), config.ArchiveConfig{Enabled: false, Endpoint: "localhost:9000"})
	assert.ErrorIs(t, err, ErrArchiveDisabled)

	_, err = NewArchive(context.Background(), config.ArchiveConfig{Enabled: true})
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}
