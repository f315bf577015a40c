// Package datasetimport implements the TSV dataset import command.
package datasetimport

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/dataset"
	"github.com/tagwise/tagwise/internal/datastore"
)

// Command creates the import command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		name        string
		description string
		classes     []string
	)

	cmd := &cobra.Command{
		Use:   "import [file.tsv]",
		Short: "Import a TSV file as a new dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds := datastore.New(settings)
			if err := ds.Open(); err != nil {
				return err
			}
			defer ds.Close() //nolint:errcheck // read-mostly CLI exit path

			agg := dataset.NewAggregator(settings, ds, nil)
			result, err := agg.ImportFile(cmd.Context(), args[0], name, description, classes)
			if err != nil {
				return err
			}

			fmt.Printf("Imported dataset %q (id %d): %d items, %d rows skipped\n",
				result.Dataset.Name, result.Dataset.ID, result.ImportedRows, result.SkippedRows)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Dataset name (defaults to the file name)")
	cmd.Flags().StringVar(&description, "description", "", "Dataset description")
	cmd.Flags().StringSliceVar(&classes, "classes", nil, "Annotation class labels")

	return cmd
}
