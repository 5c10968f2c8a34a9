// Package storagetest opens migrated in-memory SQLite databases for tests.
package storagetest

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	coredatabase "github.com/m3rciful/neuroquiz/core/database"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/storage"
	"github.com/m3rciful/neuroquiz/migrations"
)

// Open returns a fresh migrated database that is closed with the test.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	ctx := context.Background()
	db, err := coredatabase.Connect(ctx, coredatabase.Config{
		Driver: coredatabase.DriverSQLite,
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, coredatabase.RunMigrations(ctx, db, coredatabase.DriverSQLite, migrations.FS))
	return db
}

// OpenStore is Open wrapped in a storage.Store.
func OpenStore(t testing.TB) *storage.Store {
	t.Helper()
	return storage.New(Open(t))
}

// Catalog is a small three question quiz. Answer positions start at 1 and the
// correct answer of question i is at position i.
func Catalog() []model.Question {
	expl := "Kadinsky рисует картинки."
	return []model.Question{
		{ID: 1, Text: "📌 Уберите лишнее:", Explanation: &expl, Answers: []model.Answer{
			{Text: "Kadinsky", IsCorrect: true, Position: 1},
			{Text: "ChatGPT", Position: 2},
			{Text: "GigaChat", Position: 3},
		}},
		{ID: 2, Text: "📌 Какая картинка создана в нейросети?", Answers: []model.Answer{
			{Text: "Правая", Position: 1},
			{Text: "Левая", IsCorrect: true, Position: 2},
		}},
		{ID: 5, Text: "📌 Когда была создана первая нейросеть?", Answers: []model.Answer{
			{Text: "1920 год", Position: 1},
			{Text: "1988 год", Position: 2},
			{Text: "1943 год", IsCorrect: true, Position: 3},
		}},
	}
}

// Seed writes questions and returns them as stored, answer ids filled in.
func Seed(t testing.TB, s *storage.Store, questions []model.Question) []model.Question {
	t.Helper()
	ctx := context.Background()
	out := make([]model.Question, 0, len(questions))
	for _, q := range questions {
		require.NoError(t, s.UpsertQuestion(ctx, q))
		got, err := s.Question(ctx, q.ID)
		require.NoError(t, err)
		out = append(out, got)
	}
	return out
}

// Correct returns the first correct answer id of q.
func Correct(q model.Question) int64 {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID
		}
	}
	return 0
}

// Wrong returns the first incorrect answer id of q.
func Wrong(q model.Question) int64 {
	for _, a := range q.Answers {
		if !a.IsCorrect {
			return a.ID
		}
	}
	return 0
}
