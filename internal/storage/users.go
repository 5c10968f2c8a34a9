package storage

import (
	"context"
	"fmt"

	"github.com/m3rciful/neuroquiz/internal/model"
)

const userColumns = `id, telegram_id, username, first_name, is_subscribed, status,
	clicked_texter_link, clicked_holst_link, created_at, updated_at`

// Link identifies a tracked external link.
type Link string

const (
	LinkTexter Link = "texter"
	LinkHolst  Link = "holst"
)

func (l Link) column() (string, error) {
	switch l {
	case LinkTexter:
		return "clicked_texter_link", nil
	case LinkHolst:
		return "clicked_holst_link", nil
	}
	return "", fmt.Errorf("storage: unknown link %q", l)
}

// EnsureUser returns the user with u.TelegramID, creating it on first contact.
// A known user gets its profile refreshed and is marked active again.
func (s *Store) EnsureUser(ctx context.Context, u model.User) (model.User, bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO users (telegram_id, username, first_name, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO NOTHING`,
		u.TelegramID, u.Username, u.FirstName, model.UserActive,
	)
	if err != nil {
		return model.User{}, false, fmt.Errorf("storage: insert user: %w", err)
	}
	created := n == 1
	if !created {
		if _, err := s.exec(ctx, `
			UPDATE users
			SET username = ?, first_name = ?, status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE telegram_id = ?`,
			u.Username, u.FirstName, model.UserActive, u.TelegramID,
		); err != nil {
			return model.User{}, false, fmt.Errorf("storage: refresh user: %w", err)
		}
	}
	got, err := s.UserByTelegramID(ctx, u.TelegramID)
	if err != nil {
		return model.User{}, false, err
	}
	return got, created, nil
}

// UserByTelegramID loads a user by Telegram id.
func (s *Store) UserByTelegramID(ctx context.Context, telegramID int64) (model.User, error) {
	var u model.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE telegram_id = ?`, telegramID)
	return u, err
}

// UserByID loads a user by internal id.
func (s *Store) UserByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return u, err
}

// SetUserStatus updates the status of a user and reports whether a row changed.
func (s *Store) SetUserStatus(ctx context.Context, telegramID int64, status model.UserStatus) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE users SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE telegram_id = ? AND status <> ?`,
		status, telegramID, status,
	)
	if err != nil {
		return false, fmt.Errorf("storage: set user status: %w", err)
	}
	return n > 0, nil
}

// SetSubscribed stores the channel subscription flag.
func (s *Store) SetSubscribed(ctx context.Context, userID int64, subscribed bool) error {
	n, err := s.exec(ctx, `
		UPDATE users SET is_subscribed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		subscribed, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: set subscribed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkLinkClicked sets the click flag of link for the user with telegramID.
func (s *Store) MarkLinkClicked(ctx context.Context, telegramID int64, link Link) error {
	col, err := link.column()
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, `
		UPDATE users SET `+col+` = ?, updated_at = CURRENT_TIMESTAMP WHERE telegram_id = ?`,
		true, telegramID,
	)
	if err != nil {
		return fmt.Errorf("storage: mark link: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
