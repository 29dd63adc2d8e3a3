package cli

import (
	"context"
	"fmt"
	"os"

	"classroom-quiz-service/internal/app"
	"classroom-quiz-service/internal/events"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document accepted by `seed` and `start --seed`.
type seedFile struct {
	Classes []struct {
		Name     string `yaml:"name"`
		QuizTime int    `yaml:"quizTime"`
	} `yaml:"classes"`
	Contestants []app.ContestantInput `yaml:"contestants"`
	Questions   []app.QuestionInput   `yaml:"questions"`
}

// NewSeedCmd imports classes, contestants and questions from a YAML file.
func NewSeedCmd(configPath *string) *cobra.Command {
	var (
		file          string
		hashPasswords bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import classes, contestants and questions from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadRuntime(*configPath)
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

			catalog := b.catalog(events.IndexNotifier{Index: b.index}, cfg, logger, app.WithPasswordHashing(hashPasswords))
			return applySeedFile(cmd.Context(), catalog, file, logger)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to seed YAML")
	cmd.Flags().BoolVar(&hashPasswords, "hash-passwords", false, "store quiz passwords as bcrypt hashes")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func applySeedFile(ctx context.Context, catalog *app.CatalogService, path string, logger *zap.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	return applySeed(ctx, catalog, seed, logger)
}

func applySeed(ctx context.Context, catalog *app.CatalogService, seed seedFile, logger *zap.Logger) error {
	for _, class := range seed.Classes {
		if err := catalog.AddClass(ctx, class.Name); err != nil {
			return fmt.Errorf("add class %q: %w", class.Name, err)
		}
		if class.QuizTime > 0 {
			if err := catalog.SetQuizTime(ctx, class.Name, class.QuizTime); err != nil {
				return fmt.Errorf("set quiz time for %q: %w", class.Name, err)
			}
		}
	}
	if len(seed.Contestants) > 0 {
		n, err := catalog.ImportContestants(ctx, seed.Contestants)
		if err != nil {
			return fmt.Errorf("import contestants: %w", err)
		}
		logger.Info("contestants imported", zap.Int("count", n))
	}
	for _, q := range seed.Questions {
		if _, err := catalog.AddQuestion(ctx, q); err != nil {
			return fmt.Errorf("add question %q: %w", q.QuestionText, err)
		}
	}
	logger.Info("seed applied",
		zap.Int("classes", len(seed.Classes)),
		zap.Int("questions", len(seed.Questions)))
	return nil
}
