package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

// CreateGenerationRequest records a request accepted by the provider.
func (s *Store) CreateGenerationRequest(ctx context.Context, r model.GenerationRequest) error {
	if _, err := s.exec(ctx, `
		INSERT INTO generation_requests (request_id, user_id, chat_id, prompt, status, notice_message_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.UserID, r.ChatID, r.Prompt, model.GenerationPending, r.NoticeMessageID,
	); err != nil {
		return fmt.Errorf("storage: create generation request: %w", err)
	}
	return nil
}

// GenerationRequest loads a request by provider id.
func (s *Store) GenerationRequest(ctx context.Context, requestID string) (model.GenerationRequest, error) {
	var r model.GenerationRequest
	err := s.get(ctx, &r, `
		SELECT request_id, user_id, chat_id, prompt, status, notice_message_id, result_url, created_at, updated_at
		FROM generation_requests WHERE request_id = ?`, requestID)
	return r, err
}

// ClaimGenerationRequest moves a pending request to status. Only the first claim
// succeeds, later ones report false.
func (s *Store) ClaimGenerationRequest(ctx context.Context, requestID string, status model.GenerationStatus, resultURL string) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE generation_requests
		SET status = ?, result_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE request_id = ? AND status = ?`,
		status, resultURL, requestID, model.GenerationPending,
	)
	if err != nil {
		return false, fmt.Errorf("storage: claim generation request: %w", err)
	}
	return n == 1, nil
}

// ReleaseGenerationRequest moves a request claimed with status back to pending so
// the next provider callback can claim it again.
func (s *Store) ReleaseGenerationRequest(ctx context.Context, requestID string, status model.GenerationStatus) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE generation_requests
		SET status = ?, result_url = '', updated_at = CURRENT_TIMESTAMP
		WHERE request_id = ? AND status = ?`,
		model.GenerationPending, requestID, status,
	)
	if err != nil {
		return false, fmt.Errorf("storage: release generation request: %w", err)
	}
	return n == 1, nil
}
