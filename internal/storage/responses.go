package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

// InsertResponse appends a response. It reports false without error when a
// response for the same (user, attempt, question) or the same generation
// request already exists.
func (s *Store) InsertResponse(ctx context.Context, r model.Response) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO responses (user_id, attempt, question_id, answer_id, is_correct, image_generated, generation_request_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		r.UserID, r.Attempt, r.QuestionID, r.AnswerID, r.IsCorrect, r.ImageGenerated, r.GenerationRequestID,
	)
	if err != nil {
		return false, fmt.Errorf("storage: insert response: %w", err)
	}
	return n == 1, nil
}

// HasResponse reports whether the user already answered questionID in attempt.
func (s *Store) HasResponse(ctx context.Context, userID int64, attempt int, questionID int64) (bool, error) {
	var n int
	if err := s.get(ctx, &n, `
		SELECT COUNT(*) FROM responses WHERE user_id = ? AND attempt = ? AND question_id = ?`,
		userID, attempt, questionID,
	); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Tally summarises the responses of one attempt.
type Tally struct {
	Correct int
	Image   bool
}

// TallyAttempt counts the correct quiz answers of an attempt and whether an image was generated.
func (s *Store) TallyAttempt(ctx context.Context, userID int64, attempt int) (Tally, error) {
	var row struct {
		Correct int `db:"correct"`
		Images  int `db:"images"`
	}
	if err := s.get(ctx, &row, `
		SELECT
			COALESCE(SUM(CASE WHEN is_correct AND NOT image_generated THEN 1 ELSE 0 END), 0) AS correct,
			COALESCE(SUM(CASE WHEN image_generated THEN 1 ELSE 0 END), 0) AS images
		FROM responses WHERE user_id = ? AND attempt = ?`,
		userID, attempt,
	); err != nil {
		return Tally{}, err
	}
	return Tally{Correct: row.Correct, Image: row.Images > 0}, nil
}

// Responses lists every response of a user in insertion order.
func (s *Store) Responses(ctx context.Context, userID int64) ([]model.Response, error) {
	var out []model.Response
	err := s.selectAll(ctx, &out, `
		SELECT id, user_id, attempt, question_id, answer_id, is_correct, image_generated,
			generation_request_id, created_at
		FROM responses WHERE user_id = ? ORDER BY id`, userID)
	return out, err
}

// DeleteGenerationResponse removes the image response recorded for requestID.
func (s *Store) DeleteGenerationResponse(ctx context.Context, requestID string) error {
	if _, err := s.exec(ctx, `DELETE FROM responses WHERE generation_request_id = ?`, requestID); err != nil {
		return fmt.Errorf("storage: delete generation response: %w", err)
	}
	return nil
}
