package dispatch_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/dispatch"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/generation"
	"github.com/m3rciful/neuroquiz/internal/media"
	"github.com/m3rciful/neuroquiz/internal/messenger"
	"github.com/m3rciful/neuroquiz/internal/messenger/messengertest"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/stats"
	"github.com/m3rciful/neuroquiz/internal/storage"
	"github.com/m3rciful/neuroquiz/internal/storage/storagetest"
	"github.com/m3rciful/neuroquiz/internal/users"
)

const tgID = 900

var texts = content.DefaultTexts()

type provider struct {
	mu      sync.Mutex
	prompts []string
	n       int
}

func (p *provider) Submit(_ context.Context, prompt, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, prompt)
	p.n++
	return "req-" + strconv.Itoa(p.n), nil
}

type members struct{ member bool }

func (m *members) IsMember(context.Context, int64) (bool, error) { return m.member, nil }

type failingReporter struct{}

func (failingReporter) Report(context.Context) (string, error) { return "", errors.New("db down") }

type world struct {
	store    *storage.Store
	fake     *messengertest.Fake
	provider *provider
	members  *members
	orch     *generation.Orchestrator
	d        *dispatch.Dispatcher
	qs       []model.Question
}

func newWorld(t *testing.T) *world {
	t.Helper()
	st := storagetest.OpenStore(t)
	qs := storagetest.Seed(t, st, storagetest.Catalog())
	fake := messengertest.New()
	reg := users.NewRegistry(st)
	cache := media.New("media", st, fake)
	m := &members{}
	f := funnel.New(st, fake, cache, quiz.NewScorer(st, false), m, texts, funnel.Options{
		PublicURL:  "https://bot.example",
		ChannelURL: "https://t.me/neuroved",
		Badges:     content.Badges{Novice: "r/4.jpeg", Confident: "r/5.jpeg", AllSeeing: "r/6.jpeg"},
	})
	p := &provider{}
	orch := generation.New(st, fake, p, f, reg, texts, generation.Options{PublicURL: "https://bot.example"})
	return &world{
		store:    st,
		fake:     fake,
		provider: p,
		members:  m,
		orch:     orch,
		qs:       qs,
		d: dispatch.New(dispatch.Deps{
			Users:     reg,
			Engine:    quiz.NewEngine(st, fake, cache, f, texts, quiz.Options{}),
			Funnel:    f,
			Generator: orch,
			Reporter:  stats.NewReporter(st),
			Messenger: fake,
			Texts:     texts,
		}),
	}
}

func who() users.Identity {
	return users.Identity{TelegramID: tgID, Username: "anya", FirstName: "Аня"}
}

func (w *world) start(t *testing.T, payload string) {
	t.Helper()
	require.NoError(t, w.d.Start(context.Background(), dispatch.CommandEvent{User: who(), ChatID: tgID, Command: "/start", Payload: payload}))
}

func (w *world) press(t *testing.T, id, data string) error {
	t.Helper()
	return w.d.Answer(context.Background(), dispatch.CallbackEvent{ID: id, User: who(), ChatID: tgID, Data: data})
}

func (w *world) progress(t *testing.T) model.Progress {
	t.Helper()
	u, err := w.store.UserByTelegramID(context.Background(), tgID)
	require.NoError(t, err)
	p, err := w.store.Progress(context.Background(), u.ID)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	return p
}

func (w *world) acks() []string {
	var out []string
	for _, c := range w.fake.Calls(messengertest.OpCallback) {
		out = append(out, c.CallbackID+":"+c.Text)
	}
	return out
}

func TestStartCapturesSourceAndBegins(t *testing.T) {
	w := newWorld(t)
	w.start(t, "vk_ads")

	p := w.progress(t)
	assert.Equal(t, model.StateQuizInProgress, p.State)
	assert.Equal(t, "vk_ads", p.AcquisitionSource)
	assert.Equal(t, w.qs[0].ID, *p.CurrentQuestionID)
	assert.Equal(t, texts.Greeting, w.fake.Texts(tgID)[0])

	// a second /start keeps the first source and resumes
	w.start(t, "other")
	assert.Equal(t, "vk_ads", w.progress(t).AcquisitionSource)
	assert.Equal(t, w.qs[0].ID, *w.progress(t).CurrentQuestionID)
}

func TestCallbacksAreAcknowledgedOnce(t *testing.T) {
	w := newWorld(t)
	w.start(t, "")
	q := w.qs[0]

	require.NoError(t, w.press(t, "c1", quiz.AnswerData(q.ID, storagetest.Correct(q))))
	require.NoError(t, w.press(t, "c2", quiz.AnswerData(q.ID, storagetest.Correct(q))))
	require.NoError(t, w.press(t, "c3", "question_x_answer_1"))
	require.NoError(t, w.d.Unknown(context.Background(), dispatch.CallbackEvent{ID: "c4", User: who(), ChatID: tgID, Data: "bogus"}))

	assert.Equal(t, []string{"c1:", "c2:" + texts.StaleQuestion, "c3:", "c4:"}, w.acks())
	assert.Equal(t, w.qs[1].ID, *w.progress(t).CurrentQuestionID)
}

func TestTextRouting(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	text := func(s string) {
		t.Helper()
		require.NoError(t, w.d.Text(ctx, dispatch.TextEvent{User: who(), ChatID: tgID, Text: s}))
	}

	text("привет")
	assert.Equal(t, model.StateQuizInProgress, w.progress(t).State)

	w.fake.Reset()
	text("нарисуй кота")
	assert.Equal(t, []string{texts.FinishQuizFirst}, w.fake.Texts(tgID))
	assert.Empty(t, w.provider.prompts)

	for _, q := range w.qs {
		require.NoError(t, w.press(t, "c", quiz.AnswerData(q.ID, storagetest.Correct(q))))
	}
	require.Equal(t, model.StateQuizCompleted, w.progress(t).State)

	w.fake.Reset()
	text("  ")
	text("/unknown")
	assert.Empty(t, w.fake.Calls())

	text("нарисуй кота")
	assert.Equal(t, []string{"нарисуй кота"}, w.provider.prompts)
	assert.Equal(t, []string{texts.GenerationAccepted}, w.fake.Texts(tgID))
	assert.NotNil(t, w.progress(t).PendingRequestID)
}

func TestTextBeginsForRegisteredUser(t *testing.T) {
	w := newWorld(t)
	ctx := context.Background()
	_, p, created, err := users.NewRegistry(w.store).Register(ctx, who(), "")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, model.StateStart, p.State)

	require.NoError(t, w.d.Text(ctx, dispatch.TextEvent{User: who(), ChatID: tgID, Text: "привет"}))
	p = w.progress(t)
	assert.Equal(t, model.StateQuizInProgress, p.State)
	assert.Equal(t, w.qs[0].ID, *p.CurrentQuestionID)
	assert.Equal(t, texts.Greeting, w.fake.Texts(tgID)[0])
	assert.NotContains(t, w.fake.Texts(tgID), texts.FinishQuizFirst)
	assert.Empty(t, w.provider.prompts)
}

func TestShowResultsBeforeFinish(t *testing.T) {
	w := newWorld(t)
	w.start(t, "")
	w.fake.Reset()

	err := w.d.ShowResults(context.Background(), dispatch.CallbackEvent{ID: "c1", User: who(), ChatID: tgID, Data: funnel.KeyShowResults})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1:" + texts.NotFinished}, w.acks())
	assert.Empty(t, w.fake.Calls(messengertest.OpText, messengertest.OpPhoto))
}

func TestSubscribedCallback(t *testing.T) {
	w := newWorld(t)
	w.start(t, "")
	ctx := context.Background()
	w.fake.Reset()

	ev := dispatch.CallbackEvent{ID: "c1", User: who(), ChatID: tgID, Data: funnel.SubscribedData(1234)}
	require.NoError(t, w.d.Subscribed(ctx, ev))

	w.members.member = true
	ev.ID, ev.Data = "c2", funnel.SubscribedData(tgID)
	require.NoError(t, w.d.Subscribed(ctx, ev))

	ev.ID, ev.Data = "c3", "subscribed_abc"
	require.NoError(t, w.d.Subscribed(ctx, ev))

	assert.Equal(t, []string{"c1:" + texts.NotYourButton, "c2:" + texts.SubscribedThanks, "c3:"}, w.acks())
	u, err := w.store.UserByTelegramID(ctx, tgID)
	require.NoError(t, err)
	assert.True(t, u.IsSubscribed)
}

func TestUnreachableUserIsMarkedBlocked(t *testing.T) {
	w := newWorld(t)
	w.fake.FailAll(messenger.ReasonBlocked)

	w.start(t, "")
	u, err := w.store.UserByTelegramID(context.Background(), tgID)
	require.NoError(t, err)
	assert.Equal(t, model.UserBlocked, u.Status)

	// writing again reactivates the user
	w.fake.Fail(messengertest.OpText, nil)
	w.fake.Fail(messengertest.OpAlbum, nil)
	w.fake.Fail(messengertest.OpPhoto, nil)
	w.start(t, "")
	u, err = w.store.UserByTelegramID(context.Background(), tgID)
	require.NoError(t, err)
	assert.Equal(t, model.UserActive, u.Status)
}

func TestFailuresGetApology(t *testing.T) {
	w := newWorld(t)
	reg := users.NewRegistry(w.store)
	d := dispatch.New(dispatch.Deps{Users: reg, Reporter: failingReporter{}, Messenger: w.fake, Texts: texts})

	err := d.Stats(context.Background(), dispatch.CommandEvent{User: who(), ChatID: tgID, Command: "/stats"})
	require.Error(t, err)
	assert.Equal(t, []string{texts.GenericError}, w.fake.Texts(tgID))
}

func TestStatsReport(t *testing.T) {
	w := newWorld(t)
	w.start(t, "vk")
	w.fake.Reset()

	require.NoError(t, w.d.Stats(context.Background(), dispatch.CommandEvent{User: who(), ChatID: tgID, Command: "/stats"}))
	sent := w.fake.Texts(tgID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0], "<b>Источник: vk</b> (1)")
	assert.Contains(t, sent[0], "в процессе прохождения квиза: 1 (100%)")
}
