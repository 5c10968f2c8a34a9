package content

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// Seeder writes the catalog of a content file into the database. It upserts, so
// running it on every start is safe and keeps cached Telegram file ids.
type Seeder struct {
	File *File
}

// Seed implements bootstrap.Seeder.
func (s Seeder) Seed(ctx context.Context, db *sqlx.DB) error {
	return storage.New(db).RunInTx(ctx, func(tx *storage.Store) error {
		return s.Apply(ctx, tx)
	})
}

// Apply writes the catalog through st.
func (s Seeder) Apply(ctx context.Context, st *storage.Store) error {
	for _, q := range s.File.Questions {
		mq := model.Question{ID: q.ID, Text: q.Text}
		if q.Explanation != "" {
			expl := q.Explanation
			mq.Explanation = &expl
		}
		for i, a := range q.Answers {
			mq.Answers = append(mq.Answers, model.Answer{Text: a.Text, IsCorrect: a.Correct, Position: i + 1})
		}
		if err := st.UpsertQuestion(ctx, mq); err != nil {
			return err
		}
		for i, path := range q.Pictures {
			qid := q.ID
			if err := st.UpsertMedia(ctx, model.Media{QuestionID: &qid, Pool: model.PoolQuestion, Path: path, Position: i + 1}); err != nil {
				return err
			}
		}
	}
	for i, path := range s.File.Badges.Paths() {
		if err := st.UpsertMedia(ctx, model.Media{Pool: model.PoolResult, Path: path, Position: i + 1}); err != nil {
			return err
		}
	}
	logger.SEED.Debug("catalog applied",
		slog.String("event", "seed.catalog"),
		slog.Int("questions", len(s.File.Questions)),
		slog.Int("badges", len(s.File.Badges.Paths())),
	)
	return nil
}
