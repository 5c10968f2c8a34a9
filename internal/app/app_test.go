package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/neuroquiz/core/config"
	coredatabase "github.com/m3rciful/neuroquiz/core/database"
	coretelegram "github.com/m3rciful/neuroquiz/core/telegram"
	"github.com/m3rciful/neuroquiz/internal/app"
	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/messenger/messengertest"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/storage/storagetest"
)

const userID = 900

type provider struct {
	mu      sync.Mutex
	prompts []string
	urls    []string
}

func (p *provider) Submit(_ context.Context, prompt, callbackURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.urls = append(p.urls, callbackURL)
	return "req-1", nil
}

type members struct{}

func (members) IsMember(context.Context, int64) (bool, error) { return true, nil }

type harness struct {
	app      *app.App
	fake     *messengertest.Fake
	provider *provider
	handler  http.Handler
	updateID int
}

func testConfig(t *testing.T) *app.Config {
	t.Helper()
	cfg := &app.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.RunMode = coreconfig.RunModeWebhook
	cfg.Telegram.WebhookSecret = "hook"
	cfg.HTTP.PublicURL = "https://bot.example"
	cfg.Database = coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: ":memory:"}
	cfg.Generation.APIKey = "key"
	cfg.Generation.CallbackSecret = "s3"
	cfg.Funnel = app.FunnelConfig{
		ChannelURL: "https://t.me/neuroved",
		ChannelID:  "@neuroved",
		TexterURL:  "https://texter.example/",
		HolstURL:   "https://holst.example/",
	}
	cfg.Content.Path = "../../content/quiz.yaml"
	require.NoError(t, cfg.Normalize())
	return cfg
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := messengertest.New()
	p := &provider{}
	a, err := app.New(context.Background(), testConfig(t), app.Overrides{
		Offline:    true,
		Messenger:  fake,
		Provider:   p,
		Members:    members{},
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)
	assert.True(t, opts.DisableWebhookSetup)
	coretelegram.Install(opts.Bot, opts.Middlewares, opts.Routes)
	srv := a.HTTP()
	srv.Engine.POST(opts.Config.HTTP.WebhookPath, coretelegram.WebhookHandler(opts.Bot, opts.Config.Telegram.WebhookSecret))

	return &harness{app: a, fake: fake, provider: p, handler: srv.Engine}
}

func (h *harness) do(t *testing.T, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) deliver(t *testing.T, upd map[string]any) {
	t.Helper()
	rec := h.do(t, http.MethodPost, "/telegram/webhook", upd, map[string]string{coretelegram.HeaderSecretToken: "hook"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func (h *harness) nextID() int {
	h.updateID++
	return h.updateID
}

func from() map[string]any {
	return map[string]any{"id": userID, "is_bot": false, "first_name": "Аня", "username": "anya"}
}

func chat() map[string]any {
	return map[string]any{"id": userID, "type": "private"}
}

func (h *harness) message(text string) map[string]any {
	id := h.nextID()
	return map[string]any{
		"update_id": id,
		"message": map[string]any{
			"message_id": id, "date": time.Now().Unix(),
			"from": from(), "chat": chat(), "text": text,
		},
	}
}

func (h *harness) callback(data string) map[string]any {
	id := h.nextID()
	return map[string]any{
		"update_id": id,
		"callback_query": map[string]any{
			"id": "cb" + strconv.Itoa(id), "from": from(), "data": data,
			"chat_instance": "ci",
			"message":       map[string]any{"message_id": 1, "date": time.Now().Unix(), "chat": chat()},
		},
	}
}

func (h *harness) progress(t *testing.T) model.Progress {
	t.Helper()
	ctx := context.Background()
	u, err := h.app.Store().UserByTelegramID(ctx, userID)
	require.NoError(t, err)
	p, err := h.app.Store().Progress(ctx, u.ID)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	return p
}

func TestRegistryBindings(t *testing.T) {
	h := newHarness(t)
	reg := h.app.Registry()
	assert.Len(t, reg.ListCommands(true), 2)
	assert.Equal(t, []string{quiz.KeyQuestion, funnel.KeyShowResults, funnel.KeySubscribed}, reg.ListCallbacks())

	rec := h.do(t, http.MethodGet, "/healthcheck", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/telegram/webhook", h.message("/start"), map[string]string{coretelegram.HeaderSecretToken: "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, h.fake.Calls())
}

func TestQuizToImageScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	file, err := content.Load("../../content/quiz.yaml")
	require.NoError(t, err)
	texts := file.Texts
	store := h.app.Store()

	start := h.message("/start vk_ads")
	h.deliver(t, start)
	p := h.progress(t)
	assert.Equal(t, model.StateQuizInProgress, p.State)
	assert.Equal(t, "vk_ads", p.AcquisitionSource)
	assert.Equal(t, texts.Greeting, h.fake.Texts(userID)[0])

	// a redelivered update is dropped
	sent := len(h.fake.Calls())
	h.deliver(t, start)
	assert.Len(t, h.fake.Calls(), sent)

	h.deliver(t, h.message("нарисуй кота"))
	assert.Empty(t, h.provider.prompts)

	q, err := store.FirstQuestion(ctx)
	require.NoError(t, err)
	for {
		h.deliver(t, h.callback(quiz.AnswerData(q.ID, storagetest.Correct(q))))
		next, err := store.NextQuestion(ctx, q.ID)
		if err != nil {
			break
		}
		assert.Equal(t, next.ID, *h.progress(t).CurrentQuestionID)
		q = next
	}
	p = h.progress(t)
	require.Equal(t, model.StateQuizCompleted, p.State)
	assert.Nil(t, p.CurrentQuestionID)

	h.fake.Reset()
	h.deliver(t, h.message("нарисуй кота"))
	require.Equal(t, []string{"нарисуй кота"}, h.provider.prompts)
	assert.Equal(t, "https://bot.example/generation-callback/900?token=s3", h.provider.urls[0])
	assert.Equal(t, []string{texts.GenerationAccepted}, h.fake.Texts(userID))
	notice := h.fake.Calls(messengertest.OpText)[0].MessageID

	cb := `{"request_id":"req-1","status":"success","result":["https://img.example/cat.png"]}`
	rec := h.do(t, http.MethodPost, "/generation-callback/900", cb, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, http.MethodPost, "/generation-callback/900?token=s3", cb, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"success"}`, rec.Body.String())

	p = h.progress(t)
	assert.Equal(t, model.StateImageGenerated, p.State)
	assert.Nil(t, p.PendingRequestID)

	photos := h.fake.Calls(messengertest.OpPhoto)
	require.Len(t, photos, 2)
	assert.Equal(t, "https://img.example/cat.png", photos[0].Photo.URL)
	assert.Contains(t, photos[1].Photo.Path, "photo6")

	require.Eventually(t, func() bool {
		for _, c := range h.fake.Calls(messengertest.OpDelete) {
			if c.MessageID == notice {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	rec = h.do(t, http.MethodPost, "/generation-callback/900?token=s3", cb, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, rec.Body.String())
	assert.Len(t, h.fake.Calls(messengertest.OpPhoto), 2)

	u, err := store.UserByTelegramID(ctx, userID)
	require.NoError(t, err)
	responses, err := store.Responses(ctx, u.ID)
	require.NoError(t, err)
	images := 0
	for _, r := range responses {
		if r.ImageGenerated {
			images++
		}
	}
	assert.Equal(t, 1, images)

	h.deliver(t, h.callback(funnel.SubscribedData(userID)))
	u, err = store.UserByTelegramID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, u.IsSubscribed)

	rec = h.do(t, http.MethodGet, "/r/texter/900", nil, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://texter.example/", rec.Header().Get("Location"))
	u, err = store.UserByTelegramID(ctx, userID)
	require.NoError(t, err)
	assert.True(t, u.ClickedTexterLink)
}

func TestBootstrapFailsOnMissingContent(t *testing.T) {
	cfg := testConfig(t)
	cfg.Content.Path = "absent.yaml"
	_, err := app.New(context.Background(), cfg, app.Overrides{
		Offline:    true,
		LoggerInit: func(*coreconfig.Config) error { return nil },
	})
	assert.Error(t, err)
}
