package dataset

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tagwise/tagwise/internal/datastore"
	"github.com/tagwise/tagwise/internal/errors"
)

// Rows inside a TSV file can carry long sentence pairs.
const maxLineBytes = 1 << 20

// ImportResult describes the outcome of a dataset import.
type ImportResult struct {
	Dataset     datastore.Dataset `json:"dataset"`
	ImportedRows int              `json:"importedRows"`
	SkippedRows  int              `json:"skippedRows"`
}

// ImportTSV creates a dataset from tab-separated input. Each row must
// carry at least two tab-separated columns; the first two become the
// item's text pair, fields are whitespace-trimmed, and rows with fewer
// than two columns are skipped. The input is split on literal tabs
// only, with no quoting or escaping.
func (a *Aggregator) ImportTSV(ctx context.Context, name, description string, classes []string, r io.Reader) (ImportResult, error) {
	return a.importRows(ctx, name, description, "", classes, r)
}

func (a *Aggregator) importRows(ctx context.Context, name, description, sourceFile string, classes []string, r io.Reader) (ImportResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ImportResult{}, errors.New(errors.NewStd("dataset name must not be empty")).
			Component("dataset").
			Category(errors.CategoryValidation).
			Build()
	}

	labels := make([]string, 0, len(classes))
	for _, class := range classes {
		if class = strings.TrimSpace(class); class != "" {
			labels = append(labels, class)
		}
	}

	start := time.Now()
	items, skipped, err := parseTSV(r)
	if err != nil {
		return ImportResult{}, err
	}

	dataset := datastore.Dataset{
		Name:        name,
		Description: description,
		Classes:     strings.Join(labels, ";"),
		SourceFile:  sourceFile,
	}
	if err := a.ds.SaveDataset(ctx, &dataset, items); err != nil {
		return ImportResult{}, err
	}

	a.InvalidateCache()
	if a.metrics != nil {
		a.metrics.Annotation.RecordImport(len(items))
		a.metrics.Annotation.RecordOperationDuration("import", time.Since(start).Seconds())
	}
	a.logger.Info("dataset imported",
		"dataset_id", dataset.ID,
		"name", name,
		"items", len(items),
		"skipped_rows", skipped)

	return ImportResult{Dataset: dataset, ImportedRows: len(items), SkippedRows: skipped}, nil
}

// ImportFile imports a TSV file from disk. The dataset records the source
// file's base name; an empty dataset name defaults to the file name
// without extension.
func (a *Aggregator) ImportFile(ctx context.Context, path, name, description string, classes []string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, errors.New(err).
			Component("dataset").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	base := filepath.Base(path)
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return a.importRows(ctx, name, description, base, classes, f)
}

// parseTSV reads rows and returns items in file order plus the number of
// skipped rows. Splitting is on the literal tab character; encoding/csv
// is deliberately not used since its quoting rules would change how
// fields containing quotes are read.
func parseTSV(r io.Reader) ([]datastore.Item, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var items []datastore.Item
	skipped := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			skipped++
			continue
		}
		items = append(items, datastore.Item{
			Text1: strings.TrimSpace(fields[0]),
			Text2: strings.TrimSpace(fields[1]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, errors.New(err).
			Component("dataset").
			Category(errors.CategoryImport).
			Build()
	}
	return items, skipped, nil
}
