// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/errors"
)

// Interface abstracts the underlying database implementation and defines the
// operations the annotation subsystem needs from persistent storage.
type Interface interface {
	Open() error
	Close() error

	// datasets
	SaveDataset(ctx context.Context, dataset *Dataset, items []Item) error
	GetDataset(ctx context.Context, id uint) (Dataset, error)
	GetAllDatasets(ctx context.Context) ([]Dataset, error)
	DeleteDataset(ctx context.Context, id uint) error
	CountDatasets(ctx context.Context) (int64, error)

	// items
	GetItem(ctx context.Context, id uint) (Item, error)
	GetDatasetItems(ctx context.Context, datasetID uint) ([]Item, error)
	CountDatasetItems(ctx context.Context, datasetID uint) (int64, error)
	GetItemsWithFewerAnnotators(ctx context.Context, threshold int) ([]Item, error)

	// per-item assignment and completion state
	GetItemAssignments(ctx context.Context, itemID uint) ([]ItemAssignment, error)
	GetDatasetAssignments(ctx context.Context, datasetID uint) ([]ItemAssignment, error)
	GetAnnotatorAssignments(ctx context.Context, annotatorID uint) ([]ItemAssignment, error)
	AddItemAssignment(ctx context.Context, itemID, annotatorID uint) error
	ReplaceDatasetAssignments(ctx context.Context, datasetID uint, roster []uint, assignments []ItemAssignment) error
	RemoveDatasetAnnotator(ctx context.Context, datasetID, annotatorID uint) error
	CountAssignedItems(ctx context.Context, datasetID, annotatorID uint) (int64, error)
	CountCompletedItems(ctx context.Context, datasetID, annotatorID uint) (int64, error)

	// dataset-level annotator roster
	GetDatasetAnnotators(ctx context.Context, datasetID uint) ([]DatasetAnnotator, error)
	IsDatasetAnnotator(ctx context.Context, datasetID, annotatorID uint) (bool, error)

	// annotation ledger
	SubmitAnnotation(ctx context.Context, itemID, annotatorID uint, value string) error
	GetItemAnnotations(ctx context.Context, itemID uint) ([]Annotation, error)

	// annotator directory
	SaveAnnotator(ctx context.Context, annotator *Annotator) error
	GetAnnotator(ctx context.Context, id uint) (Annotator, error)
	GetAnnotatorByEmail(ctx context.Context, email string) (Annotator, error)
	GetAllAnnotators(ctx context.Context) ([]Annotator, error)
	SoftDeleteAnnotator(ctx context.Context, id uint) error
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// SaveDataset stores a dataset and its items as a single transaction.
// Item positions follow the slice order; annotator sets start empty.
func (ds *DataStore) SaveDataset(ctx context.Context, dataset *Dataset, items []Item) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(dataset).Error; err != nil {
			return dbError(err, "save_dataset", "dataset_name", dataset.Name)
		}

		for i := range items {
			items[i].DatasetID = dataset.ID
			items[i].Position = i
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(items, 200).Error; err != nil {
				return dbError(err, "save_dataset_items", "dataset_id", dataset.ID)
			}
		}
		return nil
	})
}

// GetDataset retrieves a dataset by its ID.
func (ds *DataStore) GetDataset(ctx context.Context, id uint) (Dataset, error) {
	var dataset Dataset
	if err := ds.DB.WithContext(ctx).First(&dataset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Dataset{}, notFoundError("dataset", id)
		}
		return Dataset{}, dbError(err, "get_dataset", "dataset_id", id)
	}
	return dataset, nil
}

// GetAllDatasets retrieves all datasets ordered by creation.
func (ds *DataStore) GetAllDatasets(ctx context.Context) ([]Dataset, error) {
	var datasets []Dataset
	if err := ds.DB.WithContext(ctx).Order("id ASC").Find(&datasets).Error; err != nil {
		return nil, dbError(err, "get_all_datasets")
	}
	return datasets, nil
}

// DeleteDataset removes a dataset together with its items, assignments,
// annotations and roster entries in one transaction.
func (ds *DataStore) DeleteDataset(ctx context.Context, id uint) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dataset Dataset
		if err := tx.First(&dataset, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("dataset", id)
			}
			return dbError(err, "delete_dataset", "dataset_id", id)
		}

		itemIDs := tx.Model(&Item{}).Select("id").Where("dataset_id = ?", id)
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&ItemAssignment{}).Error; err != nil {
			return dbError(err, "delete_dataset_assignments", "dataset_id", id)
		}
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&Annotation{}).Error; err != nil {
			return dbError(err, "delete_dataset_annotations", "dataset_id", id)
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&Item{}).Error; err != nil {
			return dbError(err, "delete_dataset_items", "dataset_id", id)
		}
		if err := tx.Where("dataset_id = ?", id).Delete(&DatasetAnnotator{}).Error; err != nil {
			return dbError(err, "delete_dataset_roster", "dataset_id", id)
		}
		if err := tx.Delete(&Dataset{}, id).Error; err != nil {
			return dbError(err, "delete_dataset", "dataset_id", id)
		}
		return nil
	})
}

// CountDatasets returns the number of datasets.
func (ds *DataStore) CountDatasets(ctx context.Context) (int64, error) {
	var count int64
	if err := ds.DB.WithContext(ctx).Model(&Dataset{}).Count(&count).Error; err != nil {
		return 0, dbError(err, "count_datasets")
	}
	return count, nil
}

// GetItem retrieves an item by its ID.
func (ds *DataStore) GetItem(ctx context.Context, id uint) (Item, error) {
	var item Item
	if err := ds.DB.WithContext(ctx).First(&item, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Item{}, notFoundError("item", id)
		}
		return Item{}, dbError(err, "get_item", "item_id", id)
	}
	return item, nil
}

// GetDatasetItems retrieves a dataset's items in stored order.
func (ds *DataStore) GetDatasetItems(ctx context.Context, datasetID uint) ([]Item, error) {
	var items []Item
	err := ds.DB.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, dbError(err, "get_dataset_items", "dataset_id", datasetID)
	}
	return items, nil
}

// CountDatasetItems returns the number of items in a dataset.
func (ds *DataStore) CountDatasetItems(ctx context.Context, datasetID uint) (int64, error) {
	var count int64
	err := ds.DB.WithContext(ctx).Model(&Item{}).
		Where("dataset_id = ?", datasetID).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "count_dataset_items", "dataset_id", datasetID)
	}
	return count, nil
}

// GetItemsWithFewerAnnotators returns items whose assigned-annotator count is
// below threshold, in stored order.
func (ds *DataStore) GetItemsWithFewerAnnotators(ctx context.Context, threshold int) ([]Item, error) {
	if threshold < 1 {
		return nil, validationError("threshold must be at least 1", "threshold", threshold)
	}

	var items []Item
	err := ds.DB.WithContext(ctx).
		Joins("LEFT JOIN item_assignments ON item_assignments.item_id = items.id").
		Group("items.id").
		Having("COUNT(item_assignments.id) < ?", threshold).
		Order("items.dataset_id ASC, items.position ASC").
		Find(&items).Error
	if err != nil {
		return nil, dbError(err, "items_with_fewer_annotators", "threshold", threshold)
	}
	return items, nil
}

// GetItemAssignments returns the assignment rows for one item.
func (ds *DataStore) GetItemAssignments(ctx context.Context, itemID uint) ([]ItemAssignment, error) {
	var assignments []ItemAssignment
	err := ds.DB.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, dbError(err, "get_item_assignments", "item_id", itemID)
	}
	return assignments, nil
}

// GetDatasetAssignments returns all assignment rows across a dataset's items.
func (ds *DataStore) GetDatasetAssignments(ctx context.Context, datasetID uint) ([]ItemAssignment, error) {
	var assignments []ItemAssignment
	err := ds.DB.WithContext(ctx).
		Joins("JOIN items ON items.id = item_assignments.item_id").
		Where("items.dataset_id = ?", datasetID).
		Order("item_assignments.id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, dbError(err, "get_dataset_assignments", "dataset_id", datasetID)
	}
	return assignments, nil
}

// GetAnnotatorAssignments returns every assignment row held by one annotator,
// across all datasets.
func (ds *DataStore) GetAnnotatorAssignments(ctx context.Context, annotatorID uint) ([]ItemAssignment, error) {
	var assignments []ItemAssignment
	err := ds.DB.WithContext(ctx).
		Where("annotator_id = ?", annotatorID).
		Order("id ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, dbError(err, "get_annotator_assignments", "annotator_id", annotatorID)
	}
	return assignments, nil
}

// AddItemAssignment adds one annotator to one item with a false completion
// flag. Adding an annotator that is already assigned is a no-op. The annotator
// must hold a roster entry for the item's dataset.
func (ds *DataStore) AddItemAssignment(ctx context.Context, itemID, annotatorID uint) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item Item
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("item", itemID)
			}
			return dbError(err, "add_item_assignment", "item_id", itemID)
		}

		var rosterCount int64
		err := tx.Model(&DatasetAnnotator{}).
			Where("dataset_id = ? AND annotator_id = ?", item.DatasetID, annotatorID).
			Count(&rosterCount).Error
		if err != nil {
			return dbError(err, "add_item_assignment_roster", "item_id", itemID)
		}
		if rosterCount == 0 {
			return notAssignedError("annotator not assigned to the item's dataset",
				"dataset_id", item.DatasetID, "annotator_id", annotatorID)
		}

		assignment := ItemAssignment{ItemID: itemID, AnnotatorID: annotatorID, Completed: false}
		err = tx.Where("item_id = ? AND annotator_id = ?", itemID, annotatorID).
			FirstOrCreate(&assignment).Error
		if err != nil {
			return dbError(err, "add_item_assignment", "item_id", itemID, "annotator_id", annotatorID)
		}
		return nil
	})
}

// ReplaceDatasetAssignments applies a redistribution plan atomically: the
// roster entries are upserted, all previous assignment rows for the dataset's
// items are removed, and the plan's rows are inserted with completion reset.
// The annotation ledger is never touched.
func (ds *DataStore) ReplaceDatasetAssignments(ctx context.Context, datasetID uint, roster []uint, assignments []ItemAssignment) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, annotatorID := range roster {
			link := DatasetAnnotator{DatasetID: datasetID, AnnotatorID: annotatorID}
			err := tx.Where("dataset_id = ? AND annotator_id = ?", datasetID, annotatorID).
				FirstOrCreate(&link).Error
			if err != nil {
				return dbError(err, "upsert_dataset_annotator", "dataset_id", datasetID, "annotator_id", annotatorID)
			}
		}

		itemIDs := tx.Model(&Item{}).Select("id").Where("dataset_id = ?", datasetID)
		if err := tx.Where("item_id IN (?)", itemIDs).Delete(&ItemAssignment{}).Error; err != nil {
			return dbError(err, "clear_dataset_assignments", "dataset_id", datasetID)
		}

		for i := range assignments {
			assignments[i].ID = 0
			assignments[i].Completed = false
		}
		if len(assignments) > 0 {
			if err := tx.CreateInBatches(assignments, 200).Error; err != nil {
				return dbError(err, "insert_dataset_assignments", "dataset_id", datasetID)
			}
		}
		return nil
	})
}

// RemoveDatasetAnnotator deletes the roster entry for (dataset, annotator) and
// strips that annotator from every item of the dataset. Remaining assignments
// are left untouched; no redistribution happens here.
func (ds *DataStore) RemoveDatasetAnnotator(ctx context.Context, datasetID, annotatorID uint) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("dataset_id = ? AND annotator_id = ?", datasetID, annotatorID).
			Delete(&DatasetAnnotator{})
		if result.Error != nil {
			return dbError(result.Error, "remove_dataset_annotator", "dataset_id", datasetID, "annotator_id", annotatorID)
		}
		if result.RowsAffected == 0 {
			return notAssignedError("annotator not assigned to dataset",
				"dataset_id", datasetID, "annotator_id", annotatorID)
		}

		itemIDs := tx.Model(&Item{}).Select("id").Where("dataset_id = ?", datasetID)
		err := tx.Where("annotator_id = ? AND item_id IN (?)", annotatorID, itemIDs).
			Delete(&ItemAssignment{}).Error
		if err != nil {
			return dbError(err, "remove_annotator_assignments", "dataset_id", datasetID, "annotator_id", annotatorID)
		}
		return nil
	})
}

// CountAssignedItems returns how many items an annotator is assigned to.
// A zero datasetID counts across all datasets.
func (ds *DataStore) CountAssignedItems(ctx context.Context, datasetID, annotatorID uint) (int64, error) {
	return ds.countAssignments(ctx, datasetID, annotatorID, false)
}

// CountCompletedItems returns how many of an annotator's assigned items carry
// a true completion flag. A zero datasetID counts across all datasets.
func (ds *DataStore) CountCompletedItems(ctx context.Context, datasetID, annotatorID uint) (int64, error) {
	return ds.countAssignments(ctx, datasetID, annotatorID, true)
}

func (ds *DataStore) countAssignments(ctx context.Context, datasetID, annotatorID uint, completedOnly bool) (int64, error) {
	query := ds.DB.WithContext(ctx).Model(&ItemAssignment{}).
		Where("item_assignments.annotator_id = ?", annotatorID)
	if datasetID != 0 {
		query = query.
			Joins("JOIN items ON items.id = item_assignments.item_id").
			Where("items.dataset_id = ?", datasetID)
	}
	if completedOnly {
		query = query.Where("item_assignments.completed = ?", true)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, dbError(err, "count_assignments", "dataset_id", datasetID, "annotator_id", annotatorID)
	}
	return count, nil
}

// GetDatasetAnnotators returns a dataset's roster entries in creation order.
// The order matters: redistribution hands out items in this order.
func (ds *DataStore) GetDatasetAnnotators(ctx context.Context, datasetID uint) ([]DatasetAnnotator, error) {
	var links []DatasetAnnotator
	err := ds.DB.WithContext(ctx).
		Where("dataset_id = ?", datasetID).
		Order("id ASC").
		Find(&links).Error
	if err != nil {
		return nil, dbError(err, "get_dataset_annotators", "dataset_id", datasetID)
	}
	return links, nil
}

// IsDatasetAnnotator reports whether the annotator holds a roster entry.
func (ds *DataStore) IsDatasetAnnotator(ctx context.Context, datasetID, annotatorID uint) (bool, error) {
	var count int64
	err := ds.DB.WithContext(ctx).Model(&DatasetAnnotator{}).
		Where("dataset_id = ? AND annotator_id = ?", datasetID, annotatorID).
		Count(&count).Error
	if err != nil {
		return false, dbError(err, "is_dataset_annotator", "dataset_id", datasetID, "annotator_id", annotatorID)
	}
	return count > 0, nil
}

// SubmitAnnotation records a submission atomically: the annotator must hold an
// assignment for the item, the value is appended to the ledger, and the
// completion flag is set. Repeated submissions keep the flag true and append
// further ledger entries.
func (ds *DataStore) SubmitAnnotation(ctx context.Context, itemID, annotatorID uint, value string) error {
	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assignment ItemAssignment
		err := tx.Where("item_id = ? AND annotator_id = ?", itemID, annotatorID).
			First(&assignment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notAssignedError("annotator not assigned to item",
					"item_id", itemID, "annotator_id", annotatorID)
			}
			return dbError(err, "submit_annotation", "item_id", itemID)
		}

		entry := Annotation{ItemID: itemID, AnnotatorID: annotatorID, Value: value}
		if err := tx.Create(&entry).Error; err != nil {
			return dbError(err, "append_annotation", "item_id", itemID, "annotator_id", annotatorID)
		}

		err = tx.Model(&ItemAssignment{}).
			Where("id = ?", assignment.ID).
			Update("completed", true).Error
		if err != nil {
			return dbError(err, "set_completion", "item_id", itemID, "annotator_id", annotatorID)
		}
		return nil
	})
}

// GetItemAnnotations returns an item's ledger entries in submission order.
func (ds *DataStore) GetItemAnnotations(ctx context.Context, itemID uint) ([]Annotation, error) {
	var annotations []Annotation
	err := ds.DB.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("id ASC").
		Find(&annotations).Error
	if err != nil {
		return nil, dbError(err, "get_item_annotations", "item_id", itemID)
	}
	return annotations, nil
}

// SaveAnnotator inserts or updates an annotator record.
func (ds *DataStore) SaveAnnotator(ctx context.Context, annotator *Annotator) error {
	if err := ds.DB.WithContext(ctx).Save(annotator).Error; err != nil {
		if isConstraintViolation(err) {
			return conflictError(err, "save_annotator", "email", annotator.Email)
		}
		return dbError(err, "save_annotator", "email", annotator.Email)
	}
	return nil
}

// GetAnnotator retrieves an annotator by ID. Soft-deleted annotators are
// still returned; callers that need the active roster use GetAllAnnotators.
func (ds *DataStore) GetAnnotator(ctx context.Context, id uint) (Annotator, error) {
	var annotator Annotator
	if err := ds.DB.WithContext(ctx).First(&annotator, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Annotator{}, notFoundError("annotator", id)
		}
		return Annotator{}, dbError(err, "get_annotator", "annotator_id", id)
	}
	return annotator, nil
}

// GetAnnotatorByEmail retrieves an annotator by email address.
func (ds *DataStore) GetAnnotatorByEmail(ctx context.Context, email string) (Annotator, error) {
	var annotator Annotator
	err := ds.DB.WithContext(ctx).Where("email = ?", email).First(&annotator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Annotator{}, errors.Newf("annotator with email %s not found", email).
				Category(errors.CategoryNotFound).
				Context("email", email).
				Build()
		}
		return Annotator{}, dbError(err, "get_annotator_by_email")
	}
	return annotator, nil
}

// GetAllAnnotators returns the global roster of non-deleted annotators.
func (ds *DataStore) GetAllAnnotators(ctx context.Context) ([]Annotator, error) {
	var annotators []Annotator
	err := ds.DB.WithContext(ctx).
		Where("deleted = ?", false).
		Order("id ASC").
		Find(&annotators).Error
	if err != nil {
		return nil, dbError(err, "get_all_annotators")
	}
	return annotators, nil
}

// SoftDeleteAnnotator marks an annotator as deleted without losing their
// submitted annotations or assignment history.
func (ds *DataStore) SoftDeleteAnnotator(ctx context.Context, id uint) error {
	result := ds.DB.WithContext(ctx).Model(&Annotator{}).
		Where("id = ? AND deleted = ?", id, false).
		Update("deleted", true)
	if result.Error != nil {
		return dbError(result.Error, "soft_delete_annotator", "annotator_id", id)
	}
	if result.RowsAffected == 0 {
		return notFoundError("annotator", id)
	}
	return nil
}

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Dataset{}, &Item{}, &ItemAssignment{}, &Annotation{}, &DatasetAnnotator{}, &Annotator{}); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
