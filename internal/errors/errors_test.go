package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_Basic(t *testing.T) {
	err := Newf("dataset %d not found", 42).
		Component("datastore").
		Category(CategoryNotFound).
		Context("dataset_id", 42).
		Build()

	require.Error(t, err)
	assert.Equal(t, "dataset 42 not found", err.Error())
	assert.Equal(t, "datastore", err.GetComponent())
	assert.Equal(t, string(CategoryNotFound), err.GetCategory())
	assert.Equal(t, 42, err.GetContext()["dataset_id"])
	assert.False(t, err.GetTimestamp().IsZero())
}

func TestErrorBuilder_CategoryDetection(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ErrorCategory
	}{
		{"not found", "annotator 7 not found", CategoryNotFound},
		{"not assigned", "annotator not assigned to item", CategoryNotAssigned},
		{"validation", "invalid annotator list", CategoryValidation},
		{"conflict", "UNIQUE constraint failed", CategoryConflict},
		{"generic", "something else entirely", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(NewStd(tt.msg)).Build()
			assert.Equal(t, tt.want, err.Category)
		})
	}
}

func TestEnhancedError_Unwrap(t *testing.T) {
	base := NewStd("boom")
	wrapped := New(fmt.Errorf("saving: %w", base)).Category(CategoryDatabase).Build()

	assert.True(t, Is(wrapped, base))
	assert.Equal(t, "saving: boom", wrapped.Error())
}

func TestIsCategory_Helpers(t *testing.T) {
	notFound := NotFoundError("dataset", 3)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotAssigned(notFound))
	assert.Equal(t, "dataset", notFound.GetContext()["resource"])

	validation := ValidationError("annotator list must not be empty")
	assert.True(t, IsValidation(validation))

	// plain errors carry no category
	assert.False(t, IsConflict(NewStd("plain")))
}

func TestPriority_Validation(t *testing.T) {
	err := New(NewStd("x")).Priority("bogus").Build()
	assert.Equal(t, PriorityMedium, err.GetPriority())

	err = New(NewStd("x")).Priority(PriorityCritical).Build()
	assert.Equal(t, PriorityCritical, err.GetPriority())

	err = New(NewStd("x")).Build()
	assert.Empty(t, err.GetPriority())
}

func TestEnhancedError_IsMatchesCategory(t *testing.T) {
	a := New(NewStd("a")).Category(CategoryConflict).Build()
	b := New(NewStd("b")).Category(CategoryConflict).Build()
	c := New(NewStd("c")).Category(CategoryNotFound).Build()

	assert.True(t, Is(a, b))
	assert.False(t, Is(a, c))
}
