package cli

import (
	"encoding/json"
	"fmt"

	"classroom-quiz-service/internal/app"
	"github.com/spf13/cobra"
)

// NewContestantsCmd groups contestant maintenance subcommands.
func NewContestantsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contestants",
		Short: "Maintain contestants",
	}

	var (
		quizCode      string
		password      string
		hashPasswords bool
	)
	setCredentials := &cobra.Command{
		Use:   "set-credentials USN",
		Short: "Change a contestant's quiz password and optionally the quiz code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				if err := catalog.UpdateCredentials(cmd.Context(), args[0], quizCode, password); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "credentials updated for %s\n", app.NormalizeUSN(args[0]))
				return nil
			}, app.WithPasswordHashing(hashPasswords))
		},
	}
	setCredentials.Flags().StringVar(&quizCode, "quiz-code", "", "new quiz code (unchanged when empty)")
	setCredentials.Flags().StringVar(&password, "password", "", "new quiz password")
	setCredentials.Flags().BoolVar(&hashPasswords, "hash-passwords", false, "store the password as a bcrypt hash")
	_ = setCredentials.MarkFlagRequired("password")
	cmd.AddCommand(setCredentials)
	return cmd
}

// NewOverviewCmd prints dashboard totals as JSON.
func NewOverviewCmd(configPath *string) *cobra.Command {
	var classes []string
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print class, contestant, question and result totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				overview, err := catalog.Overview(cmd.Context(), classes)
				if err != nil {
					return err
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(overview)
			})
		},
	}
	cmd.Flags().StringSliceVar(&classes, "class", nil, "only count these classes")
	return cmd
}
