package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

// FirstQuestion returns the question with the lowest id, answers included.
func (s *Store) FirstQuestion(ctx context.Context) (model.Question, error) {
	var q model.Question
	if err := s.get(ctx, &q, `SELECT id, text, explanation FROM questions ORDER BY id LIMIT 1`); err != nil {
		return model.Question{}, err
	}
	return s.withAnswers(ctx, q)
}

// NextQuestion returns the question with the smallest id greater than after.
// ErrNotFound means the quiz is over.
func (s *Store) NextQuestion(ctx context.Context, after int64) (model.Question, error) {
	var q model.Question
	if err := s.get(ctx, &q, `
		SELECT id, text, explanation FROM questions WHERE id > ? ORDER BY id LIMIT 1`, after); err != nil {
		return model.Question{}, err
	}
	return s.withAnswers(ctx, q)
}

// Question loads a question with its answers.
func (s *Store) Question(ctx context.Context, id int64) (model.Question, error) {
	var q model.Question
	if err := s.get(ctx, &q, `SELECT id, text, explanation FROM questions WHERE id = ?`, id); err != nil {
		return model.Question{}, err
	}
	return s.withAnswers(ctx, q)
}

// QuestionNumber returns the 1-based position of the question in the quiz.
func (s *Store) QuestionNumber(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM questions WHERE id <= ?`, id)
	return n, err
}

// CountQuestions returns the number of questions in the catalog.
func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM questions`)
	return n, err
}

func (s *Store) withAnswers(ctx context.Context, q model.Question) (model.Question, error) {
	var answers []model.Answer
	if err := s.selectAll(ctx, &answers, `
		SELECT id, question_id, text, is_correct, position
		FROM answers WHERE question_id = ? ORDER BY position, id`, q.ID); err != nil {
		return model.Question{}, fmt.Errorf("storage: load answers of %d: %w", q.ID, err)
	}
	q.Answers = answers
	return q, nil
}

// UpsertQuestion writes a question and its answers, keyed by question id and answer position.
// Answer ids stay stable across reseeding so buttons already sent keep working.
func (s *Store) UpsertQuestion(ctx context.Context, q model.Question) error {
	if _, err := s.exec(ctx, `
		INSERT INTO questions (id, text, explanation) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET text = excluded.text, explanation = excluded.explanation`,
		q.ID, q.Text, q.Explanation,
	); err != nil {
		return fmt.Errorf("storage: upsert question %d: %w", q.ID, err)
	}
	for _, a := range q.Answers {
		if _, err := s.exec(ctx, `
			INSERT INTO answers (question_id, text, is_correct, position) VALUES (?, ?, ?, ?)
			ON CONFLICT (question_id, position) DO UPDATE SET text = excluded.text, is_correct = excluded.is_correct`,
			q.ID, a.Text, a.IsCorrect, a.Position,
		); err != nil {
			return fmt.Errorf("storage: upsert answer %d/%d: %w", q.ID, a.Position, err)
		}
	}
	return nil
}
