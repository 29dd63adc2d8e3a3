package cli

import (
	"fmt"
	"strconv"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/events"
	"github.com/spf13/cobra"
)

// NewClassesCmd groups class maintenance subcommands.
func NewClassesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Inspect and configure classes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List classes with their quiz time, seeding defaults if none exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				names, err := catalog.ValidClasses(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range names {
					seconds, err := catalog.QuizTime(cmd.Context(), name)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%ds\n", name, seconds)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-time NAME SECONDS",
		Short: "Set the quiz time budget of a class (60-3600 seconds)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("seconds must be an integer: %w", err)
			}
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				return catalog.SetQuizTime(cmd.Context(), args[0], seconds)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME",
		Short: "Add a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				return catalog.AddClass(cmd.Context(), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a class; its contestants, questions and results are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, *configPath, func(catalog *app.CatalogService) error {
				return catalog.DeleteClass(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}

// withCatalog opens the configured Postgres backend for a one-shot command.
func withCatalog(cmd *cobra.Command, configPath string, fn func(*app.CatalogService) error, opts ...app.CatalogOption) error {
	cfg, logger, err := loadRuntime(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	if err := requirePostgres(cfg); err != nil {
		return err
	}
	b, err := openBackend(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b.catalog(events.IndexNotifier{Index: b.index}, cfg, logger, opts...))
}
