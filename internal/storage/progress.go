package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

const progressColumns = `user_id, state, current_question_id, attempt, pending_request_id,
	pending_generation_message_id, acquisition_source, created_at, updated_at`

// CreateProgress inserts the initial progress of a user. An existing record is
// left untouched, so the acquisition source stays the one seen first.
func (s *Store) CreateProgress(ctx context.Context, userID int64, source string) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO progress (user_id, state, attempt, acquisition_source)
		VALUES (?, ?, 1, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, model.StateStart, source,
	)
	if err != nil {
		return false, fmt.Errorf("storage: create progress: %w", err)
	}
	return n == 1, nil
}

// Progress loads the progress of a user.
func (s *Store) Progress(ctx context.Context, userID int64) (model.Progress, error) {
	var p model.Progress
	err := s.get(ctx, &p, `SELECT `+progressColumns+` FROM progress WHERE user_id = ?`, userID)
	return p, err
}

// BeginAttempt points the user at questionID in the in-progress state with the given attempt number.
func (s *Store) BeginAttempt(ctx context.Context, userID, questionID int64, attempt int) error {
	n, err := s.exec(ctx, `
		UPDATE progress
		SET state = ?, current_question_id = ?, attempt = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		model.StateQuizInProgress, questionID, attempt, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: begin attempt: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AdvanceQuestion moves the pointer from the question `from` to `next`. A nil next
// completes the quiz. The update only applies while the pointer still equals from,
// and the result reports whether it did.
func (s *Store) AdvanceQuestion(ctx context.Context, userID, from int64, next *int64) (bool, error) {
	var (
		n   int64
		err error
	)
	if next == nil {
		n, err = s.exec(ctx, `
			UPDATE progress
			SET state = ?, current_question_id = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND state = ? AND current_question_id = ?`,
			model.StateQuizCompleted, userID, model.StateQuizInProgress, from,
		)
	} else {
		n, err = s.exec(ctx, `
			UPDATE progress
			SET current_question_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE user_id = ? AND state = ? AND current_question_id = ?`,
			*next, userID, model.StateQuizInProgress, from,
		)
	}
	if err != nil {
		return false, fmt.Errorf("storage: advance question: %w", err)
	}
	return n == 1, nil
}

// SetPendingGeneration remembers the latest provider request and its processing notice.
func (s *Store) SetPendingGeneration(ctx context.Context, userID int64, requestID string, noticeID *int64) error {
	n, err := s.exec(ctx, `
		UPDATE progress
		SET pending_request_id = ?, pending_generation_message_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		requestID, noticeID, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: set pending generation: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RestoreGeneration undoes CompleteGeneration using the progress read before it.
// Pending fields are put back only while no newer request took their place.
func (s *Store) RestoreGeneration(ctx context.Context, prev model.Progress) error {
	_, err := s.exec(ctx, `
		UPDATE progress
		SET state = CASE WHEN state = ? THEN ? ELSE state END,
			pending_generation_message_id = CASE WHEN pending_request_id IS NULL THEN ? ELSE pending_generation_message_id END,
			pending_request_id = CASE WHEN pending_request_id IS NULL THEN ? ELSE pending_request_id END,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		model.StateImageGenerated, prev.State,
		prev.PendingGenerationMessageID, prev.PendingRequestID, prev.UserID,
	)
	if err != nil {
		return fmt.Errorf("storage: restore generation: %w", err)
	}
	return nil
}

// CompleteGeneration moves the user to image_generated and clears the pending
// fields when they still refer to requestID. A user who restarted the quiz in
// the meantime keeps the in-progress state.
func (s *Store) CompleteGeneration(ctx context.Context, userID int64, requestID string) error {
	_, err := s.exec(ctx, `
		UPDATE progress
		SET state = CASE WHEN state = ? THEN state ELSE ? END,
			pending_generation_message_id = CASE WHEN pending_request_id = ? THEN NULL ELSE pending_generation_message_id END,
			pending_request_id = CASE WHEN pending_request_id = ? THEN NULL ELSE pending_request_id END,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?`,
		model.StateQuizInProgress, model.StateImageGenerated, requestID, requestID, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: complete generation: %w", err)
	}
	return nil
}
