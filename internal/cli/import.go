package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/logging"
)

// quizFile is the YAML layout accepted by the import command.
type quizFile struct {
	app.QuizDraft `yaml:",inline"`
	Questions     []app.QuestionDraft `yaml:"questions"`
}

// NewImportCmd loads a quiz from a YAML file into the configured catalog.
func NewImportCmd(configPath *string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import <quiz.yaml>",
		Short: "Import a quiz with its questions from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), *configPath, args[0], dryRun, cmd)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate the file without writing to the database")
	return cmd
}

func runImport(ctx context.Context, configPath, path string, dryRun bool, cmd *cobra.Command) error {
	file, err := readQuizFile(path)
	if err != nil {
		return err
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var catalog app.QuizCatalog = memory.NewQuizStore()
	if !dryRun {
		if cfg.Postgres.URL == "" {
			return fmt.Errorf("postgres url not configured; use --dry-run to validate only")
		}
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
		stores, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer stores.close()
		catalog = stores.catalog
	}

	quiz, err := app.NewQuizService(catalog, logger).ImportQuiz(ctx, file.QuizDraft, file.Questions)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	logger.Info("quiz imported",
		zap.String("quizId", quiz.ID),
		zap.Int("questions", len(quiz.Questions)),
		zap.Bool("dryRun", dryRun),
	)
	fmt.Fprintln(cmd.OutOrStdout(), quiz.ID)
	return nil
}

func readQuizFile(path string) (quizFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return quizFile{}, err
	}
	var file quizFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return quizFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return file, nil
}
