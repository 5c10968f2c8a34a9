// Package generation drives image requests: it submits prompts to the
// provider, correlates asynchronous callbacks with users and delivers the
// result.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/m3rciful/neuroquiz/core/logger"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/generation/genapi"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/storage"
)

// ErrMissingRequestID rejects a callback without a request id.
var ErrMissingRequestID = errors.New("generation: callback without request_id")

// Result is the outcome of a provider callback.
type Result string

const (
	ResultProcessing    Result = "processing"
	ResultSuccess       Result = "success"
	ResultDuplicate     Result = "duplicate"
	ResultFailed        Result = "failed"
	ResultUnknown       Result = "unknown"
	ResultUndeliverable Result = "undeliverable"
)

// Provider starts a generation job and returns its request id.
type Provider interface {
	Submit(ctx context.Context, prompt, callbackURL string) (string, error)
}

// SummaryRenderer sends the final quiz results.
type SummaryRenderer interface {
	RenderQuizSummary(ctx context.Context, u model.User, chatID int64) error
}

// Blocker records users who can no longer be messaged.
type Blocker interface {
	MarkBlocked(ctx context.Context, telegramID int64) error
}

// Background runs best-effort work off the request path.
type Background interface {
	Enqueue(ctx context.Context, action string, run func(ctx context.Context) error) error
}

// Options configures the Orchestrator.
type Options struct {
	// PublicURL is the externally reachable base of the HTTP server.
	PublicURL string
	// CallbackSecret is appended to callback URLs as the token parameter.
	CallbackSecret string
	// Background deletes stale notices asynchronously. Nil runs them inline.
	Background Background
}

// Pending describes an accepted request.
type Pending struct {
	RequestID       string
	NoticeMessageID int
}

// Accepted reports whether the provider took the request.
func (p Pending) Accepted() bool { return p.RequestID != "" }

// Orchestrator owns the generation request lifecycle.
type Orchestrator struct {
	store    *storage.Store
	msg      messenger.Messenger
	provider Provider
	summary  SummaryRenderer
	users    Blocker
	texts    content.Texts
	opts     Options
}

// New wires an Orchestrator.
func New(store *storage.Store, msg messenger.Messenger, provider Provider, summary SummaryRenderer, users Blocker, texts content.Texts, opts Options) *Orchestrator {
	return &Orchestrator{
		store:    store,
		msg:      msg,
		provider: provider,
		summary:  summary,
		users:    users,
		texts:    texts,
		opts:     opts,
	}
}

// CallbackURL is where the provider posts results for chatID.
func (o *Orchestrator) CallbackURL(chatID int64) string {
	u := strings.TrimRight(o.opts.PublicURL, "/") + "/generation-callback/" + strconv.FormatInt(chatID, 10)
	if o.opts.CallbackSecret != "" {
		u += "?token=" + url.QueryEscape(o.opts.CallbackSecret)
	}
	return u
}

// Submit asks the provider for an image. A provider failure is reported to
// the chat and returns a Pending that is not Accepted with a nil error.
func (o *Orchestrator) Submit(ctx context.Context, u model.User, chatID int64, prompt string) (Pending, error) {
	prompt = strings.TrimSpace(prompt)
	prev, err := o.store.Progress(ctx, u.ID)
	if err != nil {
		return Pending{}, fmt.Errorf("generation: progress: %w", err)
	}

	notice, err := o.msg.SendText(ctx, chatID, o.texts.GenerationAccepted, nil)
	if err != nil {
		return Pending{}, err
	}

	requestID, err := o.provider.Submit(ctx, prompt, o.CallbackURL(chatID))
	if err != nil {
		logger.Warn(ctx, "generation", "generation.submit_failed",
			slog.Int64("user_id", u.TelegramID),
			logger.Err(err),
		)
		o.deleteNotice(ctx, chatID, notice.MessageID)
		if _, err := o.msg.SendText(ctx, chatID, o.texts.GenerationFailed, nil); err != nil {
			return Pending{}, err
		}
		return Pending{}, nil
	}

	noticeID := int64(notice.MessageID)
	err = o.store.RunInTx(ctx, func(tx *storage.Store) error {
		if err := tx.CreateGenerationRequest(ctx, model.GenerationRequest{
			RequestID:       requestID,
			UserID:          u.ID,
			ChatID:          chatID,
			Prompt:          prompt,
			NoticeMessageID: &noticeID,
		}); err != nil {
			return err
		}
		return tx.SetPendingGeneration(ctx, u.ID, requestID, &noticeID)
	})
	if err != nil {
		return Pending{}, err
	}

	if prev.PendingGenerationMessageID != nil {
		o.deleteNotice(ctx, chatID, int(*prev.PendingGenerationMessageID))
	}
	logger.Info(ctx, "generation", "generation.submitted",
		slog.Int64("user_id", u.TelegramID),
		slog.String("request_id", requestID),
	)
	return Pending{RequestID: requestID, NoticeMessageID: notice.MessageID}, nil
}

// OnCallback handles a provider callback addressed to chatID.
func (o *Orchestrator) OnCallback(ctx context.Context, chatID int64, cb genapi.Callback) (Result, error) {
	requestID := strings.TrimSpace(string(cb.RequestID))
	if requestID == "" {
		return "", ErrMissingRequestID
	}
	req, err := o.store.GenerationRequest(ctx, requestID)
	if errors.Is(err, storage.ErrNotFound) {
		return ResultUnknown, nil
	}
	if err != nil {
		return "", fmt.Errorf("generation: load request: %w", err)
	}
	if req.ChatID != chatID {
		return ResultUnknown, nil
	}

	status := strings.ToLower(strings.TrimSpace(cb.Status))
	imageURL := cb.Result.First()
	switch {
	case status == genapi.StatusProcessing:
		return ResultProcessing, nil
	case status == genapi.StatusSuccess && imageURL != "":
		return o.deliver(ctx, req, imageURL)
	default:
		return o.fail(ctx, req, status)
	}
}

func (o *Orchestrator) deliver(ctx context.Context, req model.GenerationRequest, imageURL string) (Result, error) {
	u, err := o.store.UserByID(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("generation: load user: %w", err)
	}

	duplicate := false
	var prev model.Progress
	err = o.store.RunInTx(ctx, func(tx *storage.Store) error {
		claimed, err := tx.ClaimGenerationRequest(ctx, req.RequestID, model.GenerationSuccess, imageURL)
		if err != nil {
			return err
		}
		if !claimed {
			duplicate = true
			return nil
		}
		prev, err = tx.Progress(ctx, u.ID)
		if err != nil {
			return err
		}
		attempt := prev.Attempt
		// a restart after submitting moved the user to a new attempt
		if prev.State == model.StateQuizInProgress && attempt > 1 {
			attempt--
		}
		rid := req.RequestID
		if _, err := tx.InsertResponse(ctx, model.Response{
			UserID:              u.ID,
			Attempt:             attempt,
			IsCorrect:           true,
			ImageGenerated:      true,
			GenerationRequestID: &rid,
		}); err != nil {
			return err
		}
		return tx.CompleteGeneration(ctx, u.ID, req.RequestID)
	})
	switch {
	case err != nil:
		return "", fmt.Errorf("generation: deliver %s: %w", req.RequestID, err)
	case duplicate:
		return ResultDuplicate, nil
	}

	// the photo goes out only once the delivery is committed
	if _, sendErr := o.msg.SendPhoto(ctx, req.ChatID, messenger.Photo{URL: imageURL}, nil); sendErr != nil {
		if err := o.release(ctx, req.RequestID, prev); err != nil {
			logger.Error(ctx, "generation", "generation.release_failed",
				slog.String("request_id", req.RequestID),
				logger.Err(err),
			)
			return "", errors.Join(sendErr, err)
		}
		if !messenger.Unreachable(sendErr) {
			return "", fmt.Errorf("generation: deliver %s: %w", req.RequestID, sendErr)
		}
		if _, err := o.store.ClaimGenerationRequest(ctx, req.RequestID, model.GenerationFailed, imageURL); err != nil {
			return "", err
		}
		o.markBlocked(ctx, u.TelegramID)
		return ResultUndeliverable, nil
	}

	if req.NoticeMessageID != nil {
		o.deleteNotice(ctx, req.ChatID, int(*req.NoticeMessageID))
	}
	logger.Info(ctx, "generation", "generation.delivered",
		slog.Int64("user_id", u.TelegramID),
		slog.String("request_id", req.RequestID),
	)

	if err := o.summary.RenderQuizSummary(ctx, u, req.ChatID); err != nil {
		switch {
		case errors.Is(err, funnel.ErrNotFinished):
		case messenger.Unreachable(err):
			o.markBlocked(ctx, u.TelegramID)
		default:
			logger.Warn(ctx, "generation", "generation.summary_failed",
				slog.String("request_id", req.RequestID),
				logger.Err(err),
			)
		}
	}
	return ResultSuccess, nil
}

// release undoes a committed delivery whose image could not be sent: the
// request is pending again and the user's progress is as it was.
func (o *Orchestrator) release(ctx context.Context, requestID string, prev model.Progress) error {
	return o.store.RunInTx(ctx, func(tx *storage.Store) error {
		released, err := tx.ReleaseGenerationRequest(ctx, requestID, model.GenerationSuccess)
		if err != nil || !released {
			return err
		}
		if err := tx.DeleteGenerationResponse(ctx, requestID); err != nil {
			return err
		}
		return tx.RestoreGeneration(ctx, prev)
	})
}

func (o *Orchestrator) fail(ctx context.Context, req model.GenerationRequest, status string) (Result, error) {
	claimed, err := o.store.ClaimGenerationRequest(ctx, req.RequestID, model.GenerationFailed, "")
	if err != nil {
		return "", err
	}
	if !claimed {
		return ResultDuplicate, nil
	}
	logger.Warn(ctx, "generation", "generation.failed",
		slog.String("request_id", req.RequestID),
		slog.String("provider_status", status),
	)
	if _, err := o.msg.SendText(ctx, req.ChatID, o.texts.UnknownError, nil); err != nil {
		if !messenger.Unreachable(err) {
			return "", err
		}
		u, lerr := o.store.UserByID(ctx, req.UserID)
		if lerr == nil {
			o.markBlocked(ctx, u.TelegramID)
		}
	}
	return ResultFailed, nil
}

func (o *Orchestrator) markBlocked(ctx context.Context, telegramID int64) {
	if o.users == nil {
		return
	}
	if err := o.users.MarkBlocked(ctx, telegramID); err != nil {
		logger.Warn(ctx, "generation", "user.block_failed", slog.Int64("user_id", telegramID), logger.Err(err))
	}
}

func (o *Orchestrator) deleteNotice(ctx context.Context, chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	run := func(ctx context.Context) error {
		return o.msg.Delete(ctx, chatID, messageID)
	}
	if o.opts.Background != nil {
		if err := o.opts.Background.Enqueue(ctx, "delete_notice", run); err == nil {
			return
		}
	}
	if err := run(ctx); err != nil {
		logger.Debug(ctx, "generation", "notice.delete_failed",
			slog.Int("message_id", messageID),
			logger.Err(err),
		)
	}
}
