package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"eduassist/internal/models"
	"eduassist/internal/observability"
	"eduassist/internal/services"
	contextutils "eduassist/internal/utils"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFixture is the YAML layout for content seeding: subjects containing
// topics containing questions.
type seedFixture struct {
	Subjects []struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
		Topics      []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
			Questions   []struct {
				Difficulty    string                 `yaml:"difficulty"`
				Content       map[string]interface{} `yaml:"content"`
				CorrectAnswer int                    `yaml:"correct_answer"`
				Explanation   string                 `yaml:"explanation"`
			} `yaml:"questions"`
		} `yaml:"topics"`
	} `yaml:"subjects"`
}

// SeedCommands returns the content seeding commands
func SeedCommands(questionService *services.QuestionService, logger *observability.Logger, db *sql.DB) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed subjects, topics and questions from a YAML fixture",
		Long: `Seed subjects, topics and questions from a YAML fixture file.

Subjects and topics are upserted by name, so re-running the command with the
same fixture only adds questions.`,
		RunE: runSeed(questionService, logger, db, &file),
	}
	cmd.Flags().StringVar(&file, "file", "seed.yaml", "Path to the YAML fixture file")

	return cmd
}

// runSeed returns a function that loads the fixture and inserts its content
func runSeed(questionService *services.QuestionService, logger *observability.Logger, db *sql.DB, file *string) func(cmd *cobra.Command, args []string) error {
	return func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		raw, err := os.ReadFile(*file)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to read fixture %s", *file)
		}

		var fixture seedFixture
		if err := yaml.Unmarshal(raw, &fixture); err != nil {
			return contextutils.WrapErrorf(err, "failed to parse fixture %s", *file)
		}

		var questionCount int
		for _, subject := range fixture.Subjects {
			var subjectID int
			err := db.QueryRowContext(ctx, `
				INSERT INTO subjects (name, description)
				VALUES ($1, $2)
				ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
				RETURNING id`,
				subject.Name, subject.Description,
			).Scan(&subjectID)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to upsert subject %s", subject.Name)
			}

			for _, topic := range subject.Topics {
				var topicID int
				err := db.QueryRowContext(ctx, `
					INSERT INTO topics (subject_id, name, description)
					VALUES ($1, $2, $3)
					ON CONFLICT (subject_id, name) DO UPDATE SET description = EXCLUDED.description
					RETURNING id`,
					subjectID, topic.Name, topic.Description,
				).Scan(&topicID)
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to upsert topic %s", topic.Name)
				}

				for _, q := range topic.Questions {
					question := &models.Question{
						TopicID:       topicID,
						SubjectID:     subjectID,
						Difficulty:    models.DifficultyLevel(q.Difficulty),
						Content:       q.Content,
						CorrectAnswer: q.CorrectAnswer,
						Explanation:   q.Explanation,
					}
					if err := questionService.SaveQuestion(ctx, question); err != nil {
						return contextutils.WrapErrorf(err, "failed to save question in topic %s", topic.Name)
					}
					questionCount++
				}
			}
		}

		logger.Info(ctx, "Seed completed", map[string]interface{}{
			"file":      *file,
			"subjects":  len(fixture.Subjects),
			"questions": questionCount,
		})
		fmt.Printf("Seeded %d subjects and %d questions from %s\n", len(fixture.Subjects), questionCount, *file)
		return nil
	}
}
