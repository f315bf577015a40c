// Package annotation records submissions and derives completion state for
// items and datasets.
package annotation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/errors"
	"github.com/tagwise/tagwise/internal/logging"
	"github.com/tagwise/tagwise/internal/observability"
)

// LedgerEntry is one submitted annotation value with exact attribution.
type LedgerEntry struct {
	AnnotatorID uint      `json:"annotatorId"`
	Value       string    `json:"value"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// ItemState is the full annotation state of one item.
type ItemState struct {
	ID           uint          `json:"id"`
	DatasetID    uint          `json:"datasetId"`
	Text1        string        `json:"text1"`
	Text2        string        `json:"text2"`
	AnnotatorIDs []uint        `json:"annotatorIds"`
	Completion   map[uint]bool `json:"completion"`
	Annotations  []LedgerEntry `json:"annotations"`
	Complete     bool          `json:"complete"`
}

// AnnotatorTask is one entry in an annotator's work queue.
type AnnotatorTask struct {
	ItemID      uint   `json:"itemId"`
	DatasetID   uint   `json:"datasetId"`
	DatasetName string `json:"datasetName"`
	Text1       string `json:"text1"`
	Text2       string `json:"text2"`
	Completed   bool   `json:"completed"`
}

// Service implements submission recording and completion queries.
type Service struct {
	ds      datastore.Interface
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates an annotation service. metrics may be nil.
func NewService(ds datastore.Interface, metrics *observability.Metrics) *Service {
	return &Service{
		ds:      ds,
		logger:  logging.ForService("annotation"),
		metrics: metrics,
	}
}

// Submit records an annotation value for an item by an annotator. The
// annotator must be assigned to the item; the value must be one of the
// dataset's declared classes. The completion flag becomes true and stays
// true on repeated submission, while every submission appends another
// ledger entry. Exactly-once submission is a caller concern.
func (s *Service) Submit(ctx context.Context, itemID, annotatorID uint, value string) (ItemState, error) {
	item, err := s.ds.GetItem(ctx, itemID)
	if err != nil {
		return ItemState{}, s.failSubmit(err)
	}
	if _, err := s.ds.GetAnnotator(ctx, annotatorID); err != nil {
		return ItemState{}, s.failSubmit(err)
	}

	if value == "" {
		return ItemState{}, s.failSubmit(errors.New(errors.NewStd("annotation value must not be empty")).
			Category(errors.CategoryValidation).
			Context("item_id", itemID).
			Build())
	}

	dataset, err := s.ds.GetDataset(ctx, item.DatasetID)
	if err != nil {
		return ItemState{}, s.failSubmit(err)
	}
	if !dataset.HasClass(value) {
		return ItemState{}, s.failSubmit(errors.Newf("annotation value %q is not a class of dataset %d", value, dataset.ID).
			Category(errors.CategoryValidation).
			DatasetContext(dataset.ID).
			Context("value", value).
			Build())
	}

	if err := s.ds.SubmitAnnotation(ctx, itemID, annotatorID, value); err != nil {
		return ItemState{}, s.failSubmit(err)
	}

	if s.logger != nil {
		s.logger.Info("annotation submitted",
			"item_id", itemID,
			"annotator_id", annotatorID,
			"dataset_id", dataset.ID)
	}
	if s.metrics != nil {
		s.metrics.Annotation.RecordSubmission("success")
	}

	return s.ItemState(ctx, itemID)
}

func (s *Service) failSubmit(err error) error {
	if s.metrics != nil {
		s.metrics.Annotation.RecordSubmission("error")
		var enhanced *errors.EnhancedError
		if errors.As(err, &enhanced) {
			s.metrics.Annotation.RecordError(enhanced.GetCategory())
		}
	}
	return err
}

// ItemState returns the full annotation state of one item.
func (s *Service) ItemState(ctx context.Context, itemID uint) (ItemState, error) {
	item, err := s.ds.GetItem(ctx, itemID)
	if err != nil {
		return ItemState{}, err
	}
	assignments, err := s.ds.GetItemAssignments(ctx, itemID)
	if err != nil {
		return ItemState{}, err
	}
	annotations, err := s.ds.GetItemAnnotations(ctx, itemID)
	if err != nil {
		return ItemState{}, err
	}

	state := ItemState{
		ID:           item.ID,
		DatasetID:    item.DatasetID,
		Text1:        item.Text1,
		Text2:        item.Text2,
		AnnotatorIDs: make([]uint, 0, len(assignments)),
		Completion:   make(map[uint]bool, len(assignments)),
		Annotations:  make([]LedgerEntry, 0, len(annotations)),
		Complete:     IsComplete(assignments),
	}
	for _, a := range assignments {
		state.AnnotatorIDs = append(state.AnnotatorIDs, a.AnnotatorID)
		state.Completion[a.AnnotatorID] = a.Completed
	}
	for _, entry := range annotations {
		state.Annotations = append(state.Annotations, LedgerEntry{
			AnnotatorID: entry.AnnotatorID,
			Value:       entry.Value,
			SubmittedAt: entry.CreatedAt,
		})
	}
	return state, nil
}

// DatasetItemStates returns the state of every item in a dataset, in
// stored order.
func (s *Service) DatasetItemStates(ctx context.Context, datasetID uint) ([]ItemState, error) {
	if _, err := s.ds.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}
	items, err := s.ds.GetDatasetItems(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	states := make([]ItemState, 0, len(items))
	for _, item := range items {
		state, err := s.ItemState(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		states = append(states, state)
	}
	return states, nil
}

// LedgerFor returns an item's ledger entries in submission order.
func (s *Service) LedgerFor(ctx context.Context, itemID uint) ([]LedgerEntry, error) {
	if _, err := s.ds.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	annotations, err := s.ds.GetItemAnnotations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	entries := make([]LedgerEntry, 0, len(annotations))
	for _, a := range annotations {
		entries = append(entries, LedgerEntry{
			AnnotatorID: a.AnnotatorID,
			Value:       a.Value,
			SubmittedAt: a.CreatedAt,
		})
	}
	return entries, nil
}

// TasksFor returns an annotator's work queue across all datasets.
func (s *Service) TasksFor(ctx context.Context, annotatorID uint) ([]AnnotatorTask, error) {
	if _, err := s.ds.GetAnnotator(ctx, annotatorID); err != nil {
		return nil, err
	}

	assignments, err := s.ds.GetAnnotatorAssignments(ctx, annotatorID)
	if err != nil {
		return nil, err
	}

	datasetNames := make(map[uint]string)
	tasks := make([]AnnotatorTask, 0, len(assignments))
	for _, a := range assignments {
		item, err := s.ds.GetItem(ctx, a.ItemID)
		if err != nil {
			return nil, err
		}
		name, ok := datasetNames[item.DatasetID]
		if !ok {
			dataset, err := s.ds.GetDataset(ctx, item.DatasetID)
			if err != nil {
				return nil, err
			}
			name = dataset.Name
			datasetNames[item.DatasetID] = name
		}
		tasks = append(tasks, AnnotatorTask{
			ItemID:      item.ID,
			DatasetID:   item.DatasetID,
			DatasetName: name,
			Text1:       item.Text1,
			Text2:       item.Text2,
			Completed:   a.Completed,
		})
	}
	return tasks, nil
}

// DatasetCompletion computes the dataset's completion percentage:
// 100 x complete items / total items, 0 for an empty dataset.
func (s *Service) DatasetCompletion(ctx context.Context, datasetID uint) (float64, error) {
	total, err := s.ds.CountDatasetItems(ctx, datasetID)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, nil
	}

	assignments, err := s.ds.GetDatasetAssignments(ctx, datasetID)
	if err != nil {
		return 0, err
	}

	complete := CountCompleteItems(assignments)
	percent := float64(complete) / float64(total) * 100

	if s.metrics != nil {
		s.metrics.Annotation.SetDatasetCompletion(datasetID, percent)
	}
	return percent, nil
}

// IsComplete reports whether an item with the given assignment rows is
// complete: at least one assigned annotator and every flag true. An item
// with no assigned annotators is never complete.
func IsComplete(assignments []datastore.ItemAssignment) bool {
	if len(assignments) == 0 {
		return false
	}
	for _, a := range assignments {
		if !a.Completed {
			return false
		}
	}
	return true
}

// CountCompleteItems counts complete items from a dataset's assignment rows.
func CountCompleteItems(assignments []datastore.ItemAssignment) int {
	byItem := make(map[uint][]datastore.ItemAssignment)
	for _, a := range assignments {
		byItem[a.ItemID] = append(byItem[a.ItemID], a)
	}
	complete := 0
	for _, itemAssignments := range byItem {
		if IsComplete(itemAssignments) {
			complete++
		}
	}
	return complete
}
