package assignment

import (
	"context"
	"log/slog"
	"time"

	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/errors"
	"github.com/tagwise/tagwise/internal/logging"
	"github.com/tagwise/tagwise/internal/observability"
)

// Service implements the assignment operations: bulk assignment with
// redistribution, unassignment, and direct single-item assignment.
type Service struct {
	ds      datastore.Interface
	locker  *datasetLocker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewService creates an assignment service. metrics may be nil.
func NewService(ds datastore.Interface, metrics *observability.Metrics) *Service {
	return &Service{
		ds:      ds,
		locker:  newDatasetLocker(),
		logger:  logging.ForService("assignment"),
		metrics: metrics,
	}
}

// Assign attaches the given annotators to the dataset and redistributes all
// of the dataset's items across the full resulting roster with the balanced
// round-robin plan. Re-assigning an already-assigned annotator is a no-op
// for the roster entry. Completion flags reset for the new distribution;
// the annotation ledger is untouched.
func (s *Service) Assign(ctx context.Context, datasetID uint, annotatorIDs []uint) error {
	start := time.Now()

	if len(annotatorIDs) == 0 {
		return s.fail("assign", errors.New(errors.NewStd("annotator list must not be empty")).
			Category(errors.CategoryValidation).
			DatasetContext(datasetID).
			Build())
	}
	if hasDuplicates(annotatorIDs) {
		return s.fail("assign", errors.New(errors.NewStd("annotator list contains duplicate ids")).
			Category(errors.CategoryValidation).
			DatasetContext(datasetID).
			Build())
	}

	unlock := s.locker.Lock(datasetID)
	defer unlock()

	if _, err := s.ds.GetDataset(ctx, datasetID); err != nil {
		return s.fail("assign", err)
	}
	for _, annotatorID := range annotatorIDs {
		annotator, err := s.ds.GetAnnotator(ctx, annotatorID)
		if err != nil {
			return s.fail("assign", err)
		}
		if annotator.Deleted {
			return s.fail("assign", errors.NotFoundError("annotator", annotatorID))
		}
	}

	// The full resulting roster in creation order: existing assignees first,
	// then the new ones in the order given.
	links, err := s.ds.GetDatasetAnnotators(ctx, datasetID)
	if err != nil {
		return s.fail("assign", err)
	}
	roster := make([]uint, 0, len(links)+len(annotatorIDs))
	seen := make(map[uint]bool, len(links)+len(annotatorIDs))
	for _, link := range links {
		roster = append(roster, link.AnnotatorID)
		seen[link.AnnotatorID] = true
	}
	for _, annotatorID := range annotatorIDs {
		if !seen[annotatorID] {
			roster = append(roster, annotatorID)
			seen[annotatorID] = true
		}
	}

	items, err := s.ds.GetDatasetItems(ctx, datasetID)
	if err != nil {
		return s.fail("assign", err)
	}
	itemIDs := make([]uint, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
	}

	plan := BuildPlan(itemIDs, roster)
	assignments := make([]datastore.ItemAssignment, len(plan))
	for i, entry := range plan {
		assignments[i] = datastore.ItemAssignment{
			ItemID:      entry.ItemID,
			AnnotatorID: entry.AnnotatorID,
		}
	}

	if err := s.ds.ReplaceDatasetAssignments(ctx, datasetID, roster, assignments); err != nil {
		return s.fail("assign", err)
	}

	if s.logger != nil {
		s.logger.Info("redistributed dataset items",
			"dataset_id", datasetID,
			"items", len(itemIDs),
			"annotators", len(roster),
			"duration_ms", time.Since(start).Milliseconds())
	}
	s.record("assign", "success", start)
	return nil
}

// Unassign removes an annotator from a dataset's roster and strips them from
// every item they held there. Remaining items are not redistributed: growth
// triggers a full rebalance, shrinkage does not.
func (s *Service) Unassign(ctx context.Context, datasetID, annotatorID uint) error {
	start := time.Now()

	unlock := s.locker.Lock(datasetID)
	defer unlock()

	if _, err := s.ds.GetDataset(ctx, datasetID); err != nil {
		return s.fail("unassign", err)
	}
	if _, err := s.ds.GetAnnotator(ctx, annotatorID); err != nil {
		return s.fail("unassign", err)
	}

	if err := s.ds.RemoveDatasetAnnotator(ctx, datasetID, annotatorID); err != nil {
		return s.fail("unassign", err)
	}

	if s.logger != nil {
		s.logger.Info("unassigned annotator from dataset",
			"dataset_id", datasetID,
			"annotator_id", annotatorID)
	}
	s.record("unassign", "success", start)
	return nil
}

// AddAnnotatorToItem assigns one annotator to one item outside bulk
// redistribution, with a fresh false completion flag. The annotator must
// already be on the item's dataset roster; re-adding is a no-op.
func (s *Service) AddAnnotatorToItem(ctx context.Context, itemID, annotatorID uint) error {
	start := time.Now()

	if _, err := s.ds.GetAnnotator(ctx, annotatorID); err != nil {
		return s.fail("add_item_annotator", err)
	}

	if err := s.ds.AddItemAssignment(ctx, itemID, annotatorID); err != nil {
		return s.fail("add_item_annotator", err)
	}

	s.record("add_item_annotator", "success", start)
	return nil
}

func (s *Service) fail(operation string, err error) error {
	if s.metrics != nil {
		s.metrics.Annotation.RecordAssignOperation(operation, "error")
		var enhanced *errors.EnhancedError
		if errors.As(err, &enhanced) {
			s.metrics.Annotation.RecordError(enhanced.GetCategory())
		}
	}
	return err
}

func (s *Service) record(operation, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.Annotation.RecordAssignOperation(operation, status)
		s.metrics.Annotation.RecordOperationDuration(operation, time.Since(start).Seconds())
	}
}

func hasDuplicates(ids []uint) bool {
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return true
		}
		seen[id] = true
	}
	return false
}
