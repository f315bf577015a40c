// Package annotators implements annotator directory commands.
package annotators

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tagwise/tagwise/internal/annotator"
	"github.com/tagwise/tagwise/internal/conf"
	"github.com/tagwise/tagwise/internal/datastore"
)

// Command creates the annotators command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotators",
		Short: "Manage the annotator directory",
	}
	cmd.AddCommand(addCommand(settings), listCommand(settings), removeCommand(settings))
	return cmd
}

func withService(settings *conf.Settings, run func(*annotator.Service) error) error {
	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		return err
	}
	defer ds.Close() //nolint:errcheck // read-mostly CLI exit path

	return run(annotator.NewService(ds))
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new annotator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(settings, func(svc *annotator.Service) error {
				profile, err := svc.Register(cmd.Context(), name, email, password, role)
				if err != nil {
					return err
				}
				fmt.Printf("Registered annotator %q (id %d)\n", profile.Name, profile.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Annotator name")
	cmd.Flags().StringVar(&email, "email", "", "Annotator email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().StringVar(&role, "role", annotator.RoleAnnotator, "Account role (annotator or admin)")
	cobra.CheckErr(cmd.MarkFlagRequired("name"))
	cobra.CheckErr(cmd.MarkFlagRequired("email"))
	cobra.CheckErr(cmd.MarkFlagRequired("password"))

	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active annotators",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(settings, func(svc *annotator.Service) error {
				profiles, err := svc.List(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
				for _, p := range profiles {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Email, p.Role)
				}
				return w.Flush()
			})
		},
	}
}

func removeCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Deactivate an annotator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid annotator id %q", args[0])
			}
			return withService(settings, func(svc *annotator.Service) error {
				if err := svc.Deactivate(cmd.Context(), uint(id)); err != nil {
					return err
				}
				fmt.Printf("Deactivated annotator %d\n", id)
				return nil
			})
		},
	}
}
