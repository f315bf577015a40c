// model.go this code defines the data model for the application
package datastore

import (
	"strings"
	"time"
)

// Dataset represents a named collection of text-pair items with a fixed label set
type Dataset struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Classes     string `gorm:"not null"` // semicolon-separated class labels, fixed at creation
	SourceFile  string // original upload name, informational only
	CreatedAt   time.Time

	Items      []Item             `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
	Annotators []DatasetAnnotator `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

// ClassLabels splits the semicolon-separated class string into individual labels.
// Empty segments are dropped so "a;;b" and "a;b" are equivalent.
func (d *Dataset) ClassLabels() []string {
	if d.Classes == "" {
		return nil
	}
	parts := strings.Split(d.Classes, ";")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// HasClass reports whether label is one of the dataset's declared classes.
// A dataset with no declared classes accepts any label.
func (d *Dataset) HasClass(label string) bool {
	labels := d.ClassLabels()
	if len(labels) == 0 {
		return true
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// Item is one text-pair unit of annotation work within a dataset
type Item struct {
	ID        uint   `gorm:"primaryKey"`
	DatasetID uint   `gorm:"index:idx_items_dataset;uniqueIndex:idx_items_dataset_position;not null"`
	Position  int    `gorm:"uniqueIndex:idx_items_dataset_position;not null"` // stored order within the dataset
	Text1     string `gorm:"type:text"`
	Text2     string `gorm:"type:text"`

	Assignments []ItemAssignment `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	Annotations []Annotation     `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
}

// ItemAssignment records that an annotator is responsible for an item,
// together with that annotator's completion flag. The set of rows for an
// item is the item's assigned-annotator set, so the completion map keys
// always equal the assignment set.
type ItemAssignment struct {
	ID          uint `gorm:"primaryKey"`
	ItemID      uint `gorm:"index:idx_assignments_item;uniqueIndex:idx_assignments_item_annotator;not null"`
	AnnotatorID uint `gorm:"index:idx_assignments_annotator;uniqueIndex:idx_assignments_item_annotator;not null"`
	Completed   bool `gorm:"not null;default:false"`
}

// Annotation is one append-only ledger entry: the value an annotator
// submitted for an item. Entries are keyed by annotator identity so
// attribution is exact; repeated submissions append further entries.
type Annotation struct {
	ID          uint `gorm:"primaryKey"`
	ItemID      uint `gorm:"index:idx_annotations_item;not null"`
	AnnotatorID uint `gorm:"index:idx_annotations_annotator;not null"`
	Value       string
	CreatedAt   time.Time
}

// DatasetAnnotator records that an annotator may work on a dataset.
// Every annotator referenced by an item of the dataset must hold one of these.
type DatasetAnnotator struct {
	ID          uint `gorm:"primaryKey"`
	DatasetID   uint `gorm:"index:idx_dataset_annotators_dataset;uniqueIndex:idx_dataset_annotators_pair;not null"`
	AnnotatorID uint `gorm:"index:idx_dataset_annotators_annotator;uniqueIndex:idx_dataset_annotators_pair;not null"`
	CreatedAt   time.Time
}

// Annotator is a person eligible to submit annotations. Only identity
// matters to the assignment core; the rest supports the user directory.
type Annotator struct {
	ID           uint   `gorm:"primaryKey"`
	PublicID     string `gorm:"uniqueIndex;not null"` // opaque external identity token
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string
	Role         string `gorm:"type:varchar(20);not null;default:'annotator'"`
	Deleted      bool   `gorm:"not null;default:false"`
	CreatedAt    time.Time
}
