// Package model holds the persisted records shared by the quiz services.
package model

import (
	"fmt"
	"time"
)

// State is the position of a user in the quiz and funnel flow.
type State string

const (
	StateStart          State = "start"
	StateQuizInProgress State = "quiz_in_progress"
	StateQuizCompleted  State = "quiz_completed"
	StateImageGenerated State = "image_generated"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateStart, StateQuizInProgress, StateQuizCompleted, StateImageGenerated:
		return true
	}
	return false
}

// Completed reports whether the quiz part of the flow is over.
func (s State) Completed() bool {
	return s == StateQuizCompleted || s == StateImageGenerated
}

// UserStatus tells whether outbound messages can reach the user.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// User is a Telegram identity known to the bot.
type User struct {
	ID                int64      `db:"id"`
	TelegramID        int64      `db:"telegram_id"`
	Username          string     `db:"username"`
	FirstName         string     `db:"first_name"`
	IsSubscribed      bool       `db:"is_subscribed"`
	Status            UserStatus `db:"status"`
	ClickedTexterLink bool       `db:"clicked_texter_link"`
	ClickedHolstLink  bool       `db:"clicked_holst_link"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Progress is the single authoritative state record of a user.
type Progress struct {
	UserID                     int64     `db:"user_id"`
	State                      State     `db:"state"`
	CurrentQuestionID          *int64    `db:"current_question_id"`
	Attempt                    int       `db:"attempt"`
	PendingRequestID           *string   `db:"pending_request_id"`
	PendingGenerationMessageID *int64    `db:"pending_generation_message_id"`
	AcquisitionSource          string    `db:"acquisition_source"`
	CreatedAt                  time.Time `db:"created_at"`
	UpdatedAt                  time.Time `db:"updated_at"`
}

// Validate checks that the question pointer is set exactly in the in-progress state.
func (p Progress) Validate() error {
	if !p.State.Valid() {
		return fmt.Errorf("progress: unknown state %q", p.State)
	}
	inProgress := p.State == StateQuizInProgress
	if inProgress != (p.CurrentQuestionID != nil) {
		return fmt.Errorf("progress: state %s with question pointer set=%t", p.State, p.CurrentQuestionID != nil)
	}
	return nil
}

// IsCurrent reports whether questionID is the question the user has to answer now.
func (p Progress) IsCurrent(questionID int64) bool {
	return p.State == StateQuizInProgress && p.CurrentQuestionID != nil && *p.CurrentQuestionID == questionID
}

// Question is one quiz step. Ids define the order.
type Question struct {
	ID          int64   `db:"id"`
	Text        string  `db:"text"`
	Explanation *string `db:"explanation"`

	Answers []Answer `db:"-"`
}

// Answer returns the answer with id, if it belongs to the question.
func (q Question) Answer(id int64) (Answer, bool) {
	for _, a := range q.Answers {
		if a.ID == id {
			return a, true
		}
	}
	return Answer{}, false
}

// CorrectAnswers lists the answers flagged correct, in display order.
func (q Question) CorrectAnswers() []Answer {
	var out []Answer
	for _, a := range q.Answers {
		if a.IsCorrect {
			out = append(out, a)
		}
	}
	return out
}

// Answer is a choice offered for a question.
type Answer struct {
	ID         int64  `db:"id"`
	QuestionID int64  `db:"question_id"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
	Position   int    `db:"position"`
}

// MediaPool groups media by usage.
type MediaPool string

const (
	PoolQuestion MediaPool = "question"
	PoolResult   MediaPool = "result"
)

// Media is an image on disk together with the Telegram file id assigned after the first upload.
type Media struct {
	ID             int64     `db:"id"`
	QuestionID     *int64    `db:"question_id"`
	Pool           MediaPool `db:"pool"`
	Path           string    `db:"path"`
	TelegramFileID *string   `db:"telegram_file_id"`
	Position       int       `db:"position"`
}

// Cached reports whether a file id is known for the media.
func (m Media) Cached() bool {
	return m.TelegramFileID != nil && *m.TelegramFileID != ""
}

// Response is an append-only record of one answer or one generated image.
type Response struct {
	ID                  int64     `db:"id"`
	UserID              int64     `db:"user_id"`
	Attempt             int       `db:"attempt"`
	QuestionID          *int64    `db:"question_id"`
	AnswerID            *int64    `db:"answer_id"`
	IsCorrect           bool      `db:"is_correct"`
	ImageGenerated      bool      `db:"image_generated"`
	GenerationRequestID *string   `db:"generation_request_id"`
	CreatedAt           time.Time `db:"created_at"`
}

// GenerationStatus tracks a provider request.
type GenerationStatus string

const (
	GenerationPending GenerationStatus = "pending"
	GenerationSuccess GenerationStatus = "success"
	GenerationFailed  GenerationStatus = "failed"
)

// GenerationRequest correlates a provider request id with the user and chat that asked for it.
type GenerationRequest struct {
	RequestID       string           `db:"request_id"`
	UserID          int64            `db:"user_id"`
	ChatID          int64            `db:"chat_id"`
	Prompt          string           `db:"prompt"`
	Status          GenerationStatus `db:"status"`
	NoticeMessageID *int64           `db:"notice_message_id"`
	ResultURL       string           `db:"result_url"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}
