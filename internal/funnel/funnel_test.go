package funnel_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/funnel"
	"github.com/m3rciful/neuroquiz/internal/media"
	"github.com/m3rciful/neuroquiz/internal/messenger/messengertest"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/storage"
	"github.com/m3rciful/neuroquiz/internal/storage/storagetest"
)

const tgID = 900

type members struct {
	member bool
	err    error
	asked  []int64
}

func (m *members) IsMember(_ context.Context, userID int64) (bool, error) {
	m.asked = append(m.asked, userID)
	return m.member, m.err
}

type fixture struct {
	store   *storage.Store
	fake    *messengertest.Fake
	members *members
	funnel  *funnel.Funnel
	engine  *quiz.Engine
	user    model.User
	qs      []model.Question
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storagetest.OpenStore(t)
	qs := storagetest.Seed(t, st, storagetest.Catalog())
	ctx := context.Background()
	u, _, err := st.EnsureUser(ctx, model.User{TelegramID: tgID})
	require.NoError(t, err)
	_, err = st.CreateProgress(ctx, u.ID, "")
	require.NoError(t, err)

	fake := messengertest.New()
	m := &members{}
	cache := media.New("media", st, fake)
	f := funnel.New(st, fake, cache, quiz.NewScorer(st, false), m, content.DefaultTexts(), funnel.Options{
		PublicURL:  "https://bot.example/",
		ChannelURL: "https://t.me/neuroved",
		Badges: content.Badges{
			Novice:    "results/photo4.jpeg",
			Confident: "results/photo5.jpeg",
			AllSeeing: "results/photo6.jpeg",
		},
	})
	return &fixture{
		store:   st,
		fake:    fake,
		members: m,
		funnel:  f,
		engine:  quiz.NewEngine(st, fake, cache, f, content.DefaultTexts(), quiz.Options{}),
		user:    u,
		qs:      qs,
	}
}

func (fx *fixture) complete(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fx.engine.Begin(ctx, fx.user, tgID))
	for _, q := range fx.qs {
		_, err := fx.engine.Answer(ctx, fx.user, tgID, q.ID, storagetest.Correct(q))
		require.NoError(t, err)
	}
}

func TestQuizCompletedOffersResults(t *testing.T) {
	fx := newFixture(t)
	fx.complete(t)

	texts := fx.fake.Calls(messengertest.OpText)
	last := texts[len(texts)-1]
	assert.Contains(t, last.Text, "<b>Правильные ответы: 3 из 3</b>")
	require.Len(t, last.Keyboard, 1)
	assert.Equal(t, funnel.KeyShowResults, last.Keyboard[0][0].Data)
	assert.Equal(t, "📊 Показать результаты", last.Keyboard[0][0].Text)
}

func TestRenderQuizSummaryRequiresCompletion(t *testing.T) {
	fx := newFixture(t)
	err := fx.funnel.RenderQuizSummary(context.Background(), fx.user, tgID)
	require.ErrorIs(t, err, funnel.ErrNotFinished)
	assert.Empty(t, fx.fake.Calls())
}

func TestRenderQuizSummary(t *testing.T) {
	fx := newFixture(t)
	fx.complete(t)
	fx.fake.Reset()

	require.NoError(t, fx.funnel.RenderQuizSummary(context.Background(), fx.user, tgID))

	photos := fx.fake.Calls(messengertest.OpPhoto)
	require.Len(t, photos, 1)
	assert.Equal(t, "media/results/photo5.jpeg", photos[0].Photo.Path)
	assert.Equal(t, "<b>Твоё звание: 😏 Уверенный юзер.</b>", photos[0].Photo.Caption)

	texts := fx.fake.Calls(messengertest.OpText)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0].Text, "Правильные ответы: 3")
	assert.Contains(t, texts[0].Text, `<a href="https://bot.example/r/texter/900">НейроТекстера</a>`)
	assert.Equal(t, "https://bot.example/r/texter/900", texts[0].Keyboard[0][0].URL)

	prompt := texts[1]
	require.Len(t, prompt.Keyboard, 2)
	assert.Equal(t, "https://t.me/neuroved", prompt.Keyboard[0][0].URL)
	assert.Equal(t, "subscribed_900", prompt.Keyboard[1][0].Data)

	// the badge upload is cached for the next summary
	fx.fake.Reset()
	require.NoError(t, fx.funnel.RenderQuizSummary(context.Background(), fx.user, tgID))
	photos = fx.fake.Calls(messengertest.OpPhoto)
	require.Len(t, photos, 1)
	assert.Equal(t, "file:media/results/photo5.jpeg", photos[0].Photo.FileID)
}

func TestVerifySubscriptionMember(t *testing.T) {
	fx := newFixture(t)
	fx.members.member = true
	ctx := context.Background()

	out, err := fx.funnel.VerifySubscription(ctx, tgID, tgID, tgID)
	require.NoError(t, err)
	assert.Equal(t, funnel.OutcomeSubscribed, out)
	assert.Equal(t, []int64{tgID}, fx.members.asked)
	assert.Equal(t, "✅ Спасибо за подписку! Теперь ты полноправный участник нашего сообщества.", fx.funnel.Notice(out))

	u, err := fx.store.UserByTelegramID(ctx, tgID)
	require.NoError(t, err)
	assert.True(t, u.IsSubscribed)

	texts := fx.fake.Calls(messengertest.OpText)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0].Text, "НейроХолст")
	assert.Equal(t, "https://bot.example/r/holst/900", texts[0].Keyboard[0][0].URL)
}

func TestVerifySubscriptionNonMember(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	out, err := fx.funnel.VerifySubscription(ctx, tgID, tgID, tgID)
	require.NoError(t, err)
	assert.Equal(t, funnel.OutcomeNotSubscribed, out)

	u, err := fx.store.UserByTelegramID(ctx, tgID)
	require.NoError(t, err)
	assert.False(t, u.IsSubscribed)
	assert.Equal(t, []string{content.DefaultTexts().NotSubscribed}, fx.fake.Texts(tgID))
}

func TestVerifySubscriptionForeignButtonAndFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	out, err := fx.funnel.VerifySubscription(ctx, 1, tgID, 1)
	require.NoError(t, err)
	assert.Equal(t, funnel.OutcomeNotYours, out)
	assert.Empty(t, fx.members.asked)
	assert.Empty(t, fx.fake.Calls())

	fx.members.err = errors.New("telegram: chat not found (400)")
	out, err = fx.funnel.VerifySubscription(ctx, tgID, tgID, tgID)
	require.NoError(t, err)
	assert.Equal(t, funnel.OutcomeCheckFailed, out)
	assert.Equal(t, []string{content.DefaultTexts().GenericError}, fx.fake.Texts(tgID))

	_, err = fx.funnel.VerifySubscription(ctx, 5, 5, 5)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedirectURL(t *testing.T) {
	assert.Equal(t, "https://x.io/r/holst/7", funnel.RedirectURL("https://x.io/", storage.LinkHolst, 7))
	assert.Equal(t, fmt.Sprintf("/r/texter/%d", 7), funnel.RedirectURL("", storage.LinkTexter, 7))
	assert.Equal(t, "subscribed_42", funnel.SubscribedData(42))
}
