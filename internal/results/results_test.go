package results

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pl-listing/lister/internal/batch"
	"github.com/pl-listing/lister/internal/category"
	"github.com/pl-listing/lister/internal/models"
)

func snapshot(t *testing.T) batch.Snapshot {
	t.Helper()
	tracker := batch.NewTracker("run-42", 3)

	partial := models.Success(models.Attributes{
		Title: models.Unknown, Brand: "BEAMS", Color: models.Unknown, Size: models.Unknown,
		ProductType: "ニット帽", Material: models.Unknown, ModelNumber: models.Unknown,
	})
	partial.Partial = true

	entries := []batch.Entry{
		{
			ProductID: "9999999999999",
			Outcome: models.Success(models.Attributes{
				Title: "BEAMS ストライプ シャツ", Brand: models.Unknown, Color: "ブルー", Size: "M",
				ProductType: "シャツ", Material: "綿", ModelNumber: models.Unknown,
				KeyFeatures: []string{"長袖", "ストライプ"},
			}),
			Previews: []string{"9999999999999_1.jpg", "9999999999999_2.jpg"},
		},
		{
			ProductID: "1212260021698",
			Outcome:   models.Failure("classification timed out after 2m0s"),
		},
		{
			ProductID: "1503050030649",
			Outcome:   partial,
			Previews:  []string{"1503050030649_1.jpg"},
		},
	}
	for _, e := range entries {
		require.NoError(t, tracker.Record(e))
	}
	tracker.Finish()
	return tracker.Snapshot()
}

func TestProjectRows(t *testing.T) {
	table := NewProjector(category.Default(), "").Project(snapshot(t))

	assert.Equal(t, "run-42", table.RunID)
	assert.Equal(t, "athena_default", table.Marketplace)
	require.Len(t, table.Rows, 3)

	ids := []string{table.Rows[0].ProductID, table.Rows[1].ProductID, table.Rows[2].ProductID}
	assert.Equal(t, []string{"9999999999999", "1212260021698", "1503050030649"}, ids, "rows follow completion order")

	success := table.Rows[0]
	assert.Equal(t, StatusSuccess, success.Status)
	assert.Equal(t, "トップス", success.Category)
	assert.Equal(t, "BEAMS ストライプ シャツ", success.ListingTitle)
	assert.Equal(t, 15, success.TitleLength)
	assert.False(t, success.AutoApproved)
	assert.Equal(t, []string{"brand unknown"}, success.ReviewReasons)
	assert.Equal(t, 2, success.ImageCount)
	assert.Equal(t, []string{"長袖", "ストライプ"}, success.KeyFeatures)
	assert.Empty(t, success.Error)

	failure := table.Rows[1]
	assert.Equal(t, StatusFailure, failure.Status)
	assert.Equal(t, "classification timed out after 2m0s", failure.Error)
	for _, v := range []string{failure.Title, failure.Brand, failure.Color, failure.Size, failure.ProductType, failure.Material, failure.ModelNumber, failure.Category} {
		assert.Equal(t, ErrorSentinel, v)
	}
	assert.False(t, failure.AutoApproved)
	assert.Equal(t, 0, failure.ImageCount)

	partial := table.Rows[2]
	assert.Equal(t, StatusPartial, partial.Status)
	assert.Equal(t, "帽子", partial.Category)
	assert.Equal(t, []string{"size unknown"}, partial.ReviewReasons)
	assert.Equal(t, "", partial.ListingTitle)

	succeeded, failed, approved := table.Counts()
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, approved)
}

func TestProjectIsIdempotent(t *testing.T) {
	snap := snapshot(t)
	p := NewProjector(category.Default(), "rakuten")

	first := p.Project(snap)
	second := p.Project(snap)
	assert.Equal(t, first, second)

	a, err := yaml.Marshal(first)
	require.NoError(t, err)
	b, err := yaml.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestProjectWithoutCategorizer(t *testing.T) {
	table := NewProjector(nil, "yahoo").Project(snapshot(t))
	assert.Empty(t, table.Rows[0].Category)
	assert.Equal(t, "yahoo", table.Marketplace)
}

func TestProjectEmptySnapshot(t *testing.T) {
	table := NewProjector(nil, "").Project(batch.NewTracker("r", 0).Snapshot())
	assert.NotNil(t, table.Rows)
	assert.Empty(t, table.Rows)
}

func TestRowReviewRecomputed(t *testing.T) {
	d, ok := Row{ProductID: "p", Status: StatusSuccess, Brand: "不明", Size: "M"}.Review()
	require.True(t, ok)
	assert.False(t, d.AutoApproved)
	assert.Equal(t, []string{"brand unknown"}, d.Reasons)

	_, ok = Row{ProductID: "p", Status: StatusFailure, Brand: ErrorSentinel, Size: ErrorSentinel}.Review()
	assert.False(t, ok)
}

func TestSaveAndLoadYAML(t *testing.T) {
	table := NewProjector(category.Default(), "").Project(snapshot(t))
	path := filepath.Join(t.TempDir(), "out", "results.yaml")

	require.NoError(t, SaveYAML(path, table, "openai", "gpt-4o"))

	export, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, "run-42", export.Config.RunID)
	assert.Equal(t, "gpt-4o", export.Config.Model)
	assert.Equal(t, table.Rows, export.Table().Rows)

	d, ok := export.Rows[0].Review()
	require.True(t, ok)
	assert.Equal(t, table.Rows[0].ReviewReasons, d.Reasons)
}

func TestLoadYAMLMissing(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWriteParquet(t *testing.T) {
	table := NewProjector(category.Default(), "").Project(snapshot(t))
	path := filepath.Join(t.TempDir(), "results.parquet")

	require.NoError(t, WriteParquet(path, table))

	rows, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, len(table.Rows))
	for i := range rows {
		assert.Equal(t, table.Rows[i].ProductID, rows[i].ProductID)
		assert.Equal(t, table.Rows[i].Status, rows[i].Status)
		assert.Equal(t, table.Rows[i].Brand, rows[i].Brand)
		assert.Equal(t, table.Rows[i].AutoApproved, rows[i].AutoApproved)
		assert.ElementsMatch(t, table.Rows[i].ReviewReasons, rows[i].ReviewReasons)
		assert.ElementsMatch(t, table.Rows[i].KeyFeatures, rows[i].KeyFeatures)
	}
}
