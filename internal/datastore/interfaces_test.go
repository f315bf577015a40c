package datastore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/errors"
)

// createDatabase initializes a temporary database for testing purposes.
// It ensures the database connection is opened and handles potential errors.
func createDatabase(t *testing.T, settings *conf.Settings) Interface {
	t.Helper()
	tempDir := t.TempDir()
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = tempDir + "/test.db"

	dataStore := New(settings)

	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})

	return dataStore
}

// seedDataset stores a dataset with n items and returns it together with its items.
func seedDataset(t *testing.T, ds Interface, n int) (Dataset, []Item) {
	t.Helper()
	ctx := context.Background()

	dataset := Dataset{Name: "nli-pairs", Classes: "entailment;neutral;contradiction"}
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			Text1: fmt.Sprintf("premise %d", i),
			Text2: fmt.Sprintf("hypothesis %d", i),
		}
	}
	require.NoError(t, ds.SaveDataset(ctx, &dataset, items))

	stored, err := ds.GetDatasetItems(ctx, dataset.ID)
	require.NoError(t, err)
	require.Len(t, stored, n)
	return dataset, stored
}

// seedAnnotators stores n annotators and returns their IDs.
func seedAnnotators(t *testing.T, ds Interface, n int) []uint {
	t.Helper()
	ctx := context.Background()

	ids := make([]uint, n)
	for i := range ids {
		a := Annotator{
			PublicID: fmt.Sprintf("public-%d", i),
			Name:     fmt.Sprintf("Annotator %d", i),
			Email:    fmt.Sprintf("annotator%d@example.com", i),
			Role:     "annotator",
		}
		require.NoError(t, ds.SaveAnnotator(ctx, &a))
		ids[i] = a.ID
	}
	return ids
}

func TestSaveDataset_ItemsKeepStoredOrder(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	_, items := seedDataset(t, ds, 7)

	for i, item := range items {
		assert.Equal(t, i, item.Position)
		assert.Equal(t, fmt.Sprintf("premise %d", i), item.Text1)
	}
}

func TestGetDataset_NotFound(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})

	_, err := ds.GetDataset(context.Background(), 12345)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestReplaceDatasetAssignments_ResetsCompletionKeepsLedger(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 2)
	annotators := seedAnnotators(t, ds, 2)

	// First round: one annotator holds everything and submits for item 0.
	first := []ItemAssignment{
		{ItemID: items[0].ID, AnnotatorID: annotators[0]},
		{ItemID: items[1].ID, AnnotatorID: annotators[0]},
	}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators[:1], first))
	require.NoError(t, ds.SubmitAnnotation(ctx, items[0].ID, annotators[0], "entailment"))

	// Second round: both annotators, fresh distribution.
	second := []ItemAssignment{
		{ItemID: items[0].ID, AnnotatorID: annotators[0]},
		{ItemID: items[1].ID, AnnotatorID: annotators[1]},
	}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, second))

	assignments, err := ds.GetDatasetAssignments(ctx, dataset.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	for _, a := range assignments {
		assert.False(t, a.Completed, "completion flags must reset on redistribution")
	}

	// Prior ledger entries survive redistribution.
	ledger, err := ds.GetItemAnnotations(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, "entailment", ledger[0].Value)
	assert.Equal(t, annotators[0], ledger[0].AnnotatorID)
}

func TestRemoveDatasetAnnotator(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 3)
	annotators := seedAnnotators(t, ds, 2)

	plan := []ItemAssignment{
		{ItemID: items[0].ID, AnnotatorID: annotators[0]},
		{ItemID: items[1].ID, AnnotatorID: annotators[0]},
		{ItemID: items[2].ID, AnnotatorID: annotators[1]},
	}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, plan))

	require.NoError(t, ds.RemoveDatasetAnnotator(ctx, dataset.ID, annotators[0]))

	// Annotator 0's rows are gone, annotator 1 untouched, no redistribution.
	remaining, err := ds.GetDatasetAssignments(ctx, dataset.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, annotators[1], remaining[0].AnnotatorID)
	assert.Equal(t, items[2].ID, remaining[0].ItemID)

	// Removing again fails: the roster entry no longer exists.
	err = ds.RemoveDatasetAnnotator(ctx, dataset.ID, annotators[0])
	require.Error(t, err)
	assert.True(t, errors.IsNotAssigned(err))
}

func TestAddItemAssignment_RequiresRosterEntry(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 1)
	annotators := seedAnnotators(t, ds, 1)

	// Not on the dataset roster yet.
	err := ds.AddItemAssignment(ctx, items[0].ID, annotators[0])
	require.Error(t, err)
	assert.True(t, errors.IsNotAssigned(err))

	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, nil))
	require.NoError(t, ds.AddItemAssignment(ctx, items[0].ID, annotators[0]))

	// Adding again is a no-op.
	require.NoError(t, ds.AddItemAssignment(ctx, items[0].ID, annotators[0]))
	assignments, err := ds.GetItemAssignments(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.False(t, assignments[0].Completed)
}

func TestSubmitAnnotation(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 1)
	annotators := seedAnnotators(t, ds, 2)

	plan := []ItemAssignment{{ItemID: items[0].ID, AnnotatorID: annotators[0]}}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators[:1], plan))

	// Unassigned annotator cannot submit, state unchanged.
	err := ds.SubmitAnnotation(ctx, items[0].ID, annotators[1], "neutral")
	require.Error(t, err)
	assert.True(t, errors.IsNotAssigned(err))
	ledger, err := ds.GetItemAnnotations(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, ledger)

	require.NoError(t, ds.SubmitAnnotation(ctx, items[0].ID, annotators[0], "entailment"))
	assignments, err := ds.GetItemAssignments(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.True(t, assignments[0].Completed)

	// Repeated submission keeps the flag and appends to the ledger.
	require.NoError(t, ds.SubmitAnnotation(ctx, items[0].ID, annotators[0], "neutral"))
	ledger, err = ds.GetItemAnnotations(ctx, items[0].ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, "entailment", ledger[0].Value)
	assert.Equal(t, "neutral", ledger[1].Value)
}

func TestCountAssignedAndCompleted(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 4)
	annotators := seedAnnotators(t, ds, 1)

	plan := make([]ItemAssignment, len(items))
	for i, item := range items {
		plan[i] = ItemAssignment{ItemID: item.ID, AnnotatorID: annotators[0]}
	}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, plan))
	require.NoError(t, ds.SubmitAnnotation(ctx, items[0].ID, annotators[0], "neutral"))
	require.NoError(t, ds.SubmitAnnotation(ctx, items[1].ID, annotators[0], "neutral"))

	assigned, err := ds.CountAssignedItems(ctx, dataset.ID, annotators[0])
	require.NoError(t, err)
	assert.Equal(t, int64(4), assigned)

	completed, err := ds.CountCompletedItems(ctx, dataset.ID, annotators[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), completed)

	// Zero dataset ID counts globally.
	global, err := ds.CountAssignedItems(ctx, 0, annotators[0])
	require.NoError(t, err)
	assert.Equal(t, int64(4), global)
}

func TestGetItemsWithFewerAnnotators(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 3)
	annotators := seedAnnotators(t, ds, 2)

	plan := []ItemAssignment{
		{ItemID: items[0].ID, AnnotatorID: annotators[0]},
		{ItemID: items[0].ID, AnnotatorID: annotators[1]},
		{ItemID: items[1].ID, AnnotatorID: annotators[0]},
	}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, plan))

	sparse, err := ds.GetItemsWithFewerAnnotators(ctx, 2)
	require.NoError(t, err)
	require.Len(t, sparse, 2)
	assert.Equal(t, items[1].ID, sparse[0].ID)
	assert.Equal(t, items[2].ID, sparse[1].ID)

	_, err = ds.GetItemsWithFewerAnnotators(ctx, 0)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDeleteDataset_Cascades(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	dataset, items := seedDataset(t, ds, 2)
	annotators := seedAnnotators(t, ds, 1)

	plan := []ItemAssignment{{ItemID: items[0].ID, AnnotatorID: annotators[0]}}
	require.NoError(t, ds.ReplaceDatasetAssignments(ctx, dataset.ID, annotators, plan))
	require.NoError(t, ds.SubmitAnnotation(ctx, items[0].ID, annotators[0], "neutral"))

	require.NoError(t, ds.DeleteDataset(ctx, dataset.ID))

	_, err := ds.GetDataset(ctx, dataset.ID)
	assert.True(t, errors.IsNotFound(err))

	leftoverItems, err := ds.GetDatasetItems(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Empty(t, leftoverItems)

	links, err := ds.GetDatasetAnnotators(ctx, dataset.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	// The annotator record itself survives dataset deletion.
	_, err = ds.GetAnnotator(ctx, annotators[0])
	assert.NoError(t, err)
}

func TestAnnotatorDirectory(t *testing.T) {
	ds := createDatabase(t, &conf.Settings{})
	ctx := context.Background()
	ids := seedAnnotators(t, ds, 3)

	all, err := ds.GetAllAnnotators(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byEmail, err := ds.GetAnnotatorByEmail(ctx, "annotator1@example.com")
	require.NoError(t, err)
	assert.Equal(t, ids[1], byEmail.ID)

	require.NoError(t, ds.SoftDeleteAnnotator(ctx, ids[1]))
	all, err = ds.GetAllAnnotators(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Already deleted reports not found.
	err = ds.SoftDeleteAnnotator(ctx, ids[1])
	assert.True(t, errors.IsNotFound(err))

	// Duplicate email insert conflicts.
	dup := Annotator{PublicID: "other", Name: "Dup", Email: "annotator0@example.com"}
	err = ds.SaveAnnotator(ctx, &dup)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}
