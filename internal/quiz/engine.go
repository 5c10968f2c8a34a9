// Package quiz drives a user through the question sequence.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/core/telegram/format"
	"github.com/m3rciful/neuroquiz/core/telegram/keyboard"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// ErrEmptyCatalog is returned when there is no question to start with.
var ErrEmptyCatalog = errors.New("quiz: catalog is empty")

var errLostRace = errors.New("quiz: pointer moved")

// Outcome is the result of an answer.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeCompleted Outcome = "completed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeStale     Outcome = "stale"
)

// Options tune the quiz rules.
type Options struct {
	// AdvanceOnIncorrect moves to the next question after a wrong answer too.
	AdvanceOnIncorrect bool
}

// MediaSender delivers question pictures.
type MediaSender interface {
	SendGroup(ctx context.Context, chatID int64, items []model.Media) error
}

// CompletionHandler is told when a user answered the last question.
type CompletionHandler interface {
	QuizCompleted(ctx context.Context, u model.User, chatID int64) error
}

// Engine owns the quiz part of the progress record.
type Engine struct {
	store     *storage.Store
	msg       messenger.Messenger
	media     MediaSender
	completed CompletionHandler
	texts     content.Texts
	opts      Options
}

// NewEngine wires an Engine.
func NewEngine(store *storage.Store, msg messenger.Messenger, media MediaSender, completed CompletionHandler, texts content.Texts, opts Options) *Engine {
	return &Engine{
		store:     store,
		msg:       msg,
		media:     media,
		completed: completed,
		texts:     texts,
		opts:      opts,
	}
}

// Begin starts the quiz at the first question. A user already in the middle of
// the quiz gets the current question again.
func (e *Engine) Begin(ctx context.Context, u model.User, chatID int64) error {
	p, err := e.progress(ctx, u.ID)
	if err != nil {
		return err
	}
	if p.State == model.StateQuizInProgress && p.CurrentQuestionID != nil {
		q, err := e.store.Question(ctx, *p.CurrentQuestionID)
		if err != nil {
			return fmt.Errorf("quiz: load current question: %w", err)
		}
		logger.Info(ctx, "quiz", "quiz.resume",
			slog.Int("attempt", p.Attempt),
			slog.Int64("question_id", q.ID),
		)
		return e.deliver(ctx, chatID, q)
	}
	return e.start(ctx, chatID, p, nextAttempt(p))
}

// Restart begins a new attempt from the first question. Earlier responses stay.
func (e *Engine) Restart(ctx context.Context, u model.User, chatID int64) error {
	p, err := e.progress(ctx, u.ID)
	if err != nil {
		return err
	}
	return e.start(ctx, chatID, p, nextAttempt(p))
}

func nextAttempt(p model.Progress) int {
	if p.Attempt < 1 {
		return 1
	}
	if p.State == model.StateStart {
		return p.Attempt
	}
	return p.Attempt + 1
}

func (e *Engine) progress(ctx context.Context, userID int64) (model.Progress, error) {
	p, err := e.store.Progress(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		if _, err := e.store.CreateProgress(ctx, userID, ""); err != nil {
			return model.Progress{}, err
		}
		p, err = e.store.Progress(ctx, userID)
	}
	if err != nil {
		return model.Progress{}, fmt.Errorf("quiz: load progress: %w", err)
	}
	return p, nil
}

func (e *Engine) start(ctx context.Context, chatID int64, p model.Progress, attempt int) error {
	q, err := e.store.FirstQuestion(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrEmptyCatalog
	}
	if err != nil {
		return fmt.Errorf("quiz: first question: %w", err)
	}
	if err := e.store.BeginAttempt(ctx, p.UserID, q.ID, attempt); err != nil {
		return err
	}
	logger.Info(ctx, "quiz", "quiz.begin",
		slog.String("state", string(model.StateQuizInProgress)),
		slog.Int("attempt", attempt),
		slog.Int64("question_id", q.ID),
	)
	return e.deliver(ctx, chatID, q)
}

// Answer records the choice of answerID for questionID and moves the quiz on.
// Presses on anything but the current question are stale and change nothing.
func (e *Engine) Answer(ctx context.Context, u model.User, chatID, questionID, answerID int64) (Outcome, error) {
	var (
		outcome Outcome
		correct bool
		attempt int
		q       model.Question
		next    *model.Question
	)
	err := e.store.RunInTx(ctx, func(tx *storage.Store) error {
		p, err := tx.Progress(ctx, u.ID)
		if errors.Is(err, storage.ErrNotFound) {
			outcome = OutcomeStale
			return nil
		}
		if err != nil {
			return err
		}
		attempt = p.Attempt
		if !p.IsCurrent(questionID) {
			outcome = OutcomeStale
			return nil
		}
		q, err = tx.Question(ctx, questionID)
		if err != nil {
			return err
		}
		ans, ok := q.Answer(answerID)
		if !ok {
			outcome = OutcomeStale
			return nil
		}
		correct = ans.IsCorrect
		inserted, err := tx.InsertResponse(ctx, model.Response{
			UserID:     u.ID,
			Attempt:    p.Attempt,
			QuestionID: &questionID,
			AnswerID:   &answerID,
			IsCorrect:  ans.IsCorrect,
		})
		if err != nil {
			return err
		}
		if !inserted {
			outcome = OutcomeDuplicate
			return nil
		}
		if !correct && !e.opts.AdvanceOnIncorrect {
			outcome = OutcomeIncorrect
			return nil
		}

		var nextID *int64
		nq, err := tx.NextQuestion(ctx, questionID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return err
		default:
			next, nextID = &nq, &nq.ID
		}
		moved, err := tx.AdvanceQuestion(ctx, u.ID, questionID, nextID)
		if err != nil {
			return err
		}
		if !moved {
			return errLostRace
		}
		switch {
		case next == nil:
			outcome = OutcomeCompleted
		case correct:
			outcome = OutcomeCorrect
		default:
			outcome = OutcomeIncorrect
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		outcome, err = OutcomeStale, nil
	}
	if err != nil {
		return "", fmt.Errorf("quiz: answer: %w", err)
	}

	logger.Info(ctx, "quiz", "quiz.answer",
		slog.String("outcome", string(outcome)),
		slog.Int("attempt", attempt),
		slog.Int64("question_id", questionID),
		slog.Int64("answer_id", answerID),
	)

	switch outcome {
	case OutcomeStale, OutcomeDuplicate:
		return outcome, nil
	}
	if _, err := e.msg.SendText(ctx, chatID, e.feedback(q, correct, outcome), nil); err != nil {
		return outcome, err
	}
	if next != nil {
		return outcome, e.deliver(ctx, chatID, *next)
	}
	if outcome == OutcomeCompleted && e.completed != nil {
		return outcome, e.completed.QuizCompleted(ctx, u, chatID)
	}
	return outcome, nil
}

// Notice is the callback toast shown for an outcome.
func (e *Engine) Notice(o Outcome) string {
	switch o {
	case OutcomeDuplicate:
		return e.texts.AlreadyAnswered
	case OutcomeStale:
		return e.texts.StaleQuestion
	}
	return ""
}

func (e *Engine) feedback(q model.Question, correct bool, outcome Outcome) string {
	if correct {
		explanation := ""
		if q.Explanation != nil {
			explanation = *q.Explanation
		}
		return format.Paragraphs(e.texts.Correct, explanation)
	}
	texts := make([]string, 0, 1)
	for _, a := range q.CorrectAnswers() {
		texts = append(texts, a.Text)
	}
	hint := ""
	if outcome == OutcomeIncorrect && !e.opts.AdvanceOnIncorrect {
		hint = e.texts.RestartHint
	}
	return format.Paragraphs(e.texts.Incorrect, fmt.Sprintf(e.texts.CorrectAnswerIs, strings.Join(texts, ", ")), hint)
}

func (e *Engine) deliver(ctx context.Context, chatID int64, q model.Question) error {
	n, err := e.store.QuestionNumber(ctx, q.ID)
	if err != nil {
		return err
	}
	header := "<b>" + fmt.Sprintf(e.texts.QuestionHeader, n) + "</b>"
	if _, err := e.msg.SendText(ctx, chatID, format.Paragraphs(header, q.Text), nil); err != nil {
		return err
	}

	items, err := e.store.QuestionMedia(ctx, q.ID)
	if err != nil {
		return err
	}
	if e.media != nil {
		if err := e.media.SendGroup(ctx, chatID, items); err != nil {
			return err
		}
	}

	buttons := make([]keyboard.InlineBtn, 0, len(q.Answers))
	for _, a := range q.Answers {
		buttons = append(buttons, keyboard.InlineBtn{Text: a.Text, Data: AnswerData(q.ID, a.ID)})
	}
	_, err = e.msg.SendText(ctx, chatID, "<i>"+e.texts.ChooseAnswer+"</i>", keyboard.Chunk(buttons, 2))
	return err
}

// Scorer computes the result of the current attempt.
type Scorer struct {
	store      *storage.Store
	imageBonus bool
}

// NewScorer returns a Scorer. imageBonus adds a point for a generated image.
func NewScorer(store *storage.Store, imageBonus bool) *Scorer {
	return &Scorer{store: store, imageBonus: imageBonus}
}

// Summary tallies the current attempt of userID.
func (s *Scorer) Summary(ctx context.Context, userID int64) (Summary, error) {
	p, err := s.store.Progress(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("quiz: summary progress: %w", err)
	}
	t, err := s.store.TallyAttempt(ctx, userID, p.Attempt)
	if err != nil {
		return Summary{}, fmt.Errorf("quiz: tally: %w", err)
	}
	total, err := s.store.CountQuestions(ctx)
	if err != nil {
		return Summary{}, err
	}
	score := Score(t.Correct, s.imageBonus && t.Image)
	return Summary{
		Attempt: p.Attempt,
		Correct: t.Correct,
		Total:   total,
		Image:   t.Image,
		Score:   score,
		Badge:   BadgeFor(score),
	}, nil
}
