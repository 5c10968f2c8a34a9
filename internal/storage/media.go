package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

const mediaColumns = `id, question_id, pool, path, telegram_file_id, position`

// QuestionMedia lists the pictures attached to a question in display order.
func (s *Store) QuestionMedia(ctx context.Context, questionID int64) ([]model.Media, error) {
	var out []model.Media
	err := s.selectAll(ctx, &out, `
		SELECT `+mediaColumns+` FROM media
		WHERE question_id = ? AND pool = ? ORDER BY position, id`,
		questionID, model.PoolQuestion,
	)
	return out, err
}

// MediaByPath loads a media row by its path.
func (s *Store) MediaByPath(ctx context.Context, path string) (model.Media, error) {
	var m model.Media
	err := s.get(ctx, &m, `SELECT `+mediaColumns+` FROM media WHERE path = ?`, path)
	return m, err
}

// UpsertMedia registers a file. A cached file id survives reseeding.
func (s *Store) UpsertMedia(ctx context.Context, m model.Media) error {
	if _, err := s.exec(ctx, `
		INSERT INTO media (question_id, pool, path, position) VALUES (?, ?, ?, ?)
		ON CONFLICT (path) DO UPDATE SET
			question_id = excluded.question_id, pool = excluded.pool, position = excluded.position`,
		m.QuestionID, m.Pool, m.Path, m.Position,
	); err != nil {
		return fmt.Errorf("storage: upsert media %s: %w", m.Path, err)
	}
	return nil
}

// SetMediaFileID stores the Telegram file id unless one is already stored.
// It reports whether this call won.
func (s *Store) SetMediaFileID(ctx context.Context, id int64, fileID string) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE media SET telegram_file_id = ? WHERE id = ? AND telegram_file_id IS NULL`,
		fileID, id,
	)
	if err != nil {
		return false, fmt.Errorf("storage: set media file id: %w", err)
	}
	return n == 1, nil
}
