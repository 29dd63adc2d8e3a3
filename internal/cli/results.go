package cli

import (
	"encoding/json"
	"fmt"

	"classroom-quiz-service/internal/app"
	"github.com/spf13/cobra"
)

// NewResultsCmd groups result listing and deletion.
func NewResultsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "List or delete submitted results",
	}

	var classes []string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest results as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				results, err := catalog.ListResults(cmd.Context(), classes)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, r := range results {
					if err := enc.Encode(r); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	list.Flags().StringSliceVar(&classes, "class", nil, "only show results of these classes")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a result record; the contestant stays marked as attempted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				r, err := catalog.DeleteResult(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted result %s (%s, score %d)\n", r.ID, r.USN, r.Score)
				return nil
			})
		},
	})
	return cmd
}
