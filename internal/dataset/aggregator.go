// Package dataset provides read-model aggregation and TSV import for
// annotation datasets.
package dataset

import (
	"context"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tagwise/tagwise/internal/annotation"
	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/logging"
	"github.com/tagwise/tagwise/internal/observability"
)

const summariesCacheKey = "dataset-summaries"

// Summary is the list-view projection of one dataset.
type Summary struct {
	ID                uint      `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Classes           []string  `json:"classes"`
	ItemCount         int64     `json:"itemCount"`
	AnnotatorCount    int       `json:"annotatorCount"`
	CompletionPercent float64   `json:"completionPercent"`
	CreatedAt         time.Time `json:"createdAt"`
}

// SamplePair is one preview row from a dataset.
type SamplePair struct {
	Text1 string `json:"text1"`
	Text2 string `json:"text2"`
}

// AnnotatorProgress is one roster member's progress inside a dataset.
type AnnotatorProgress struct {
	AnnotatorID uint   `json:"annotatorId"`
	Name        string `json:"name"`
	Assigned    int64  `json:"assigned"`
	Completed   int64  `json:"completed"`
}

// Details extends Summary with sample items and per-annotator progress.
type Details struct {
	Summary
	SampleItems []SamplePair        `json:"sampleItems"`
	Progress    []AnnotatorProgress `json:"progress"`
}

// Workload reports an annotator's assigned and completed item counts,
// either within one dataset or globally when DatasetID is zero.
type Workload struct {
	AnnotatorID uint  `json:"annotatorId"`
	DatasetID   uint  `json:"datasetId,omitempty"`
	Assigned    int64 `json:"assigned"`
	Completed   int64 `json:"completed"`
	Remaining   int64 `json:"remaining"`
}

// Aggregator builds dataset read models on top of the datastore. List
// results are cached briefly since they touch every dataset.
type Aggregator struct {
	ds          datastore.Interface
	logger      *slog.Logger
	cache       *gocache.Cache
	sampleItems int
	metrics     *observability.Metrics
}

// NewAggregator creates a dataset aggregator. metrics may be nil.
func NewAggregator(settings *conf.Settings, ds datastore.Interface, metrics *observability.Metrics) *Aggregator {
	ttl := time.Duration(settings.Annotation.SummaryCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	sampleItems := settings.Annotation.SampleItems
	if sampleItems < 0 {
		sampleItems = 0
	}

	logger := logging.ForService("dataset")
	if logger == nil {
		logger = slog.Default().With("service", "dataset")
	}

	return &Aggregator{
		ds:          ds,
		logger:      logger,
		cache:       gocache.New(ttl, 2*ttl),
		sampleItems: sampleItems,
		metrics:     metrics,
	}
}

// List returns a summary of every dataset.
func (a *Aggregator) List(ctx context.Context) ([]Summary, error) {
	if cached, found := a.cache.Get(summariesCacheKey); found {
		if summaries, ok := cached.([]Summary); ok {
			return summaries, nil
		}
	}

	datasets, err := a.ds.GetAllDatasets(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(datasets))
	for i := range datasets {
		summary, err := a.summarize(ctx, &datasets[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	a.cache.SetDefault(summariesCacheKey, summaries)
	return summaries, nil
}

// Details returns the full read model of one dataset: its summary, the
// first sample items in import order, and per-annotator progress.
func (a *Aggregator) Details(ctx context.Context, datasetID uint) (Details, error) {
	dataset, err := a.ds.GetDataset(ctx, datasetID)
	if err != nil {
		return Details{}, err
	}
	summary, err := a.summarize(ctx, &dataset)
	if err != nil {
		return Details{}, err
	}

	items, err := a.ds.GetDatasetItems(ctx, datasetID)
	if err != nil {
		return Details{}, err
	}
	samples := make([]SamplePair, 0, a.sampleItems)
	for i := 0; i < len(items) && i < a.sampleItems; i++ {
		samples = append(samples, SamplePair{Text1: items[i].Text1, Text2: items[i].Text2})
	}

	roster, err := a.ds.GetDatasetAnnotators(ctx, datasetID)
	if err != nil {
		return Details{}, err
	}
	progress := make([]AnnotatorProgress, 0, len(roster))
	for _, link := range roster {
		annotator, err := a.ds.GetAnnotator(ctx, link.AnnotatorID)
		if err != nil {
			return Details{}, err
		}
		assigned, err := a.ds.CountAssignedItems(ctx, datasetID, link.AnnotatorID)
		if err != nil {
			return Details{}, err
		}
		completed, err := a.ds.CountCompletedItems(ctx, datasetID, link.AnnotatorID)
		if err != nil {
			return Details{}, err
		}
		progress = append(progress, AnnotatorProgress{
			AnnotatorID: link.AnnotatorID,
			Name:        annotator.Name,
			Assigned:    assigned,
			Completed:   completed,
		})
	}

	return Details{Summary: summary, SampleItems: samples, Progress: progress}, nil
}

// Workload returns an annotator's counts for one dataset, or globally
// when datasetID is zero.
func (a *Aggregator) Workload(ctx context.Context, annotatorID, datasetID uint) (Workload, error) {
	if _, err := a.ds.GetAnnotator(ctx, annotatorID); err != nil {
		return Workload{}, err
	}
	if datasetID != 0 {
		if _, err := a.ds.GetDataset(ctx, datasetID); err != nil {
			return Workload{}, err
		}
	}

	assigned, err := a.ds.CountAssignedItems(ctx, datasetID, annotatorID)
	if err != nil {
		return Workload{}, err
	}
	completed, err := a.ds.CountCompletedItems(ctx, datasetID, annotatorID)
	if err != nil {
		return Workload{}, err
	}

	return Workload{
		AnnotatorID: annotatorID,
		DatasetID:   datasetID,
		Assigned:    assigned,
		Completed:   completed,
		Remaining:   assigned - completed,
	}, nil
}

// UnassignedAnnotators returns every active annotator not on the
// dataset's roster.
func (a *Aggregator) UnassignedAnnotators(ctx context.Context, datasetID uint) ([]datastore.Annotator, error) {
	if _, err := a.ds.GetDataset(ctx, datasetID); err != nil {
		return nil, err
	}

	roster, err := a.ds.GetDatasetAnnotators(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[uint]bool, len(roster))
	for _, link := range roster {
		assigned[link.AnnotatorID] = true
	}

	annotators, err := a.ds.GetAllAnnotators(ctx)
	if err != nil {
		return nil, err
	}
	unassigned := make([]datastore.Annotator, 0, len(annotators))
	for _, annotator := range annotators {
		if !assigned[annotator.ID] {
			unassigned = append(unassigned, annotator)
		}
	}
	return unassigned, nil
}

// IncompleteItems returns items that have fewer than threshold assigned
// annotators, across all datasets.
func (a *Aggregator) IncompleteItems(ctx context.Context, threshold int) ([]datastore.Item, error) {
	return a.ds.GetItemsWithFewerAnnotators(ctx, threshold)
}

// Delete removes a dataset with its items, assignments and ledger.
func (a *Aggregator) Delete(ctx context.Context, datasetID uint) error {
	if err := a.ds.DeleteDataset(ctx, datasetID); err != nil {
		return err
	}
	a.InvalidateCache()
	if a.metrics != nil {
		a.metrics.Annotation.ForgetDataset(datasetID)
	}
	a.logger.Info("dataset deleted", "dataset_id", datasetID)
	return nil
}

// InvalidateCache drops cached summaries so the next List recomputes.
func (a *Aggregator) InvalidateCache() {
	a.cache.Delete(summariesCacheKey)
}

func (a *Aggregator) summarize(ctx context.Context, dataset *datastore.Dataset) (Summary, error) {
	itemCount, err := a.ds.CountDatasetItems(ctx, dataset.ID)
	if err != nil {
		return Summary{}, err
	}
	roster, err := a.ds.GetDatasetAnnotators(ctx, dataset.ID)
	if err != nil {
		return Summary{}, err
	}

	percent := 0.0
	if itemCount > 0 {
		assignments, err := a.ds.GetDatasetAssignments(ctx, dataset.ID)
		if err != nil {
			return Summary{}, err
		}
		percent = float64(annotation.CountCompleteItems(assignments)) / float64(itemCount) * 100
	}
	if a.metrics != nil {
		a.metrics.Annotation.SetDatasetCompletion(dataset.ID, percent)
	}

	return Summary{
		ID:                dataset.ID,
		Name:              dataset.Name,
		Description:       dataset.Description,
		Classes:           dataset.ClassLabels(),
		ItemCount:         itemCount,
		AnnotatorCount:    len(roster),
		CompletionPercent: percent,
		CreatedAt:         dataset.CreatedAt,
	}, nil
}
