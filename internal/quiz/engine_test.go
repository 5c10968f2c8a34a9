package quiz_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/neuroquiz/internal/content"
	"github.com/m3rciful/neuroquiz/internal/media"
	"github.com/m3rciful/neuroquiz/internal/messenger/messengertest"
	"github.com/m3rciful/neuroquiz/internal/model"
	"github.com/m3rciful/neuroquiz/internal/quiz"
	"github.com/m3rciful/neuroquiz/internal/storage"
	"github.com/m3rciful/neuroquiz/internal/storage/storagetest"
)

const chatID = 900

type completions struct {
	mu    sync.Mutex
	users []int64
}

func (c *completions) QuizCompleted(_ context.Context, u model.User, _ int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, u.ID)
	return nil
}

type harness struct {
	store     *storage.Store
	fake      *messengertest.Fake
	engine    *quiz.Engine
	done      *completions
	questions []model.Question
	user      model.User
}

func newHarness(t *testing.T, opts quiz.Options) *harness {
	t.Helper()
	st := storagetest.OpenStore(t)
	qs := storagetest.Seed(t, st, storagetest.Catalog())
	fake := messengertest.New()
	done := &completions{}
	ctx := context.Background()
	u, _, err := st.EnsureUser(ctx, model.User{TelegramID: chatID})
	require.NoError(t, err)
	_, err = st.CreateProgress(ctx, u.ID, "")
	require.NoError(t, err)
	return &harness{
		store:     st,
		fake:      fake,
		engine:    quiz.NewEngine(st, fake, media.New("media", st, fake), done, content.DefaultTexts(), opts),
		done:      done,
		questions: qs,
		user:      u,
	}
}

func (h *harness) progress(t *testing.T) model.Progress {
	t.Helper()
	p, err := h.store.Progress(context.Background(), h.user.ID)
	require.NoError(t, err)
	require.NoError(t, p.Validate())
	return p
}

func (h *harness) answer(t *testing.T, q model.Question, answerID int64) quiz.Outcome {
	t.Helper()
	out, err := h.engine.Answer(context.Background(), h.user, chatID, q.ID, answerID)
	require.NoError(t, err)
	h.progress(t)
	return out
}

func TestBeginDeliversFirstQuestion(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	require.NoError(t, h.engine.Begin(context.Background(), h.user, chatID))

	p := h.progress(t)
	assert.Equal(t, model.StateQuizInProgress, p.State)
	require.NotNil(t, p.CurrentQuestionID)
	assert.Equal(t, int64(1), *p.CurrentQuestionID)
	assert.Equal(t, 1, p.Attempt)

	texts := h.fake.Calls(messengertest.OpText)
	require.Len(t, texts, 2)
	assert.Equal(t, "<b>ВОПРОС #1</b>\n\n📌 Уберите лишнее:", texts[0].Text)
	assert.Equal(t, "<i>Выберите вариант ответа:</i>", texts[1].Text)

	kb := texts[1].Keyboard
	require.Len(t, kb, 2)
	assert.Len(t, kb[0], 2)
	assert.Len(t, kb[1], 1)
	q1 := h.questions[0]
	assert.Equal(t, quiz.AnswerData(q1.ID, q1.Answers[0].ID), kb[0][0].Data)
	assert.Equal(t, "Kadinsky", kb[0][0].Text)
}

func TestCorrectAnswersAdvanceToCompletion(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))

	q1, q2, q5 := h.questions[0], h.questions[1], h.questions[2]
	assert.Equal(t, quiz.OutcomeCorrect, h.answer(t, q1, storagetest.Correct(q1)))
	assert.Equal(t, int64(2), *h.progress(t).CurrentQuestionID)
	assert.Contains(t, h.fake.Texts(chatID), "✅ Верно!\n\nKadinsky рисует картинки.")
	assert.Contains(t, h.fake.Texts(chatID), "<b>ВОПРОС #2</b>\n\n📌 Какая картинка создана в нейросети?")

	assert.Equal(t, quiz.OutcomeCorrect, h.answer(t, q2, storagetest.Correct(q2)))
	assert.Equal(t, int64(5), *h.progress(t).CurrentQuestionID)
	assert.Contains(t, h.fake.Texts(chatID), "<b>ВОПРОС #3</b>\n\n📌 Когда была создана первая нейросеть?")
	assert.Empty(t, h.done.users)

	assert.Equal(t, quiz.OutcomeCompleted, h.answer(t, q5, storagetest.Correct(q5)))
	p := h.progress(t)
	assert.Equal(t, model.StateQuizCompleted, p.State)
	assert.Nil(t, p.CurrentQuestionID)
	assert.Equal(t, []int64{h.user.ID}, h.done.users)

	sum, err := quiz.NewScorer(h.store, false).Summary(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Correct)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, quiz.TierConfident, sum.Badge.Tier)
}

func TestIncorrectAnswerDoesNotAdvance(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	q1 := h.questions[0]

	assert.Equal(t, quiz.OutcomeIncorrect, h.answer(t, q1, storagetest.Wrong(q1)))
	assert.Equal(t, int64(1), *h.progress(t).CurrentQuestionID)
	assert.Contains(t, h.fake.Texts(chatID),
		"❌ Неверно.\n\nПравильный ответ: Kadinsky\n\nЧтобы пройти квиз заново, отправь /quiz.")

	// a second press on the same question is rejected without a second row
	assert.Equal(t, quiz.OutcomeDuplicate, h.answer(t, q1, storagetest.Correct(q1)))
	rows, err := h.store.Responses(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.False(t, rows[0].IsCorrect)
	assert.Equal(t, "Вы уже ответили на этот вопрос.", h.engine.Notice(quiz.OutcomeDuplicate))
}

func TestAdvanceOnIncorrectOption(t *testing.T) {
	h := newHarness(t, quiz.Options{AdvanceOnIncorrect: true})
	require.NoError(t, h.engine.Begin(context.Background(), h.user, chatID))
	q1 := h.questions[0]

	assert.Equal(t, quiz.OutcomeIncorrect, h.answer(t, q1, storagetest.Wrong(q1)))
	assert.Equal(t, int64(2), *h.progress(t).CurrentQuestionID)
	assert.Contains(t, h.fake.Texts(chatID), "❌ Неверно.\n\nПравильный ответ: Kadinsky")
}

func TestStaleAnswersChangeNothing(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	q1, q2 := h.questions[0], h.questions[1]

	// not started yet
	assert.Equal(t, quiz.OutcomeStale, h.answer(t, q1, storagetest.Correct(q1)))

	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	h.fake.Reset()
	assert.Equal(t, quiz.OutcomeStale, h.answer(t, q2, storagetest.Correct(q2)), "not the current question")
	assert.Equal(t, quiz.OutcomeStale, h.answer(t, q1, storagetest.Correct(q2)), "answer of another question")

	rows, err := h.store.Responses(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, h.fake.Calls())
	assert.Equal(t, int64(1), *h.progress(t).CurrentQuestionID)
}

func TestConcurrentPressesAdvanceOnce(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	q1 := h.questions[0]

	outcomes := make([]quiz.Outcome, 4)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.engine.Answer(ctx, h.user, chatID, q1.ID, storagetest.Correct(q1))
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	correct := 0
	for _, o := range outcomes {
		if o == quiz.OutcomeCorrect {
			correct++
		} else {
			assert.Contains(t, []quiz.Outcome{quiz.OutcomeDuplicate, quiz.OutcomeStale}, o)
		}
	}
	assert.Equal(t, 1, correct)
	assert.Equal(t, int64(2), *h.progress(t).CurrentQuestionID)
	rows, err := h.store.Responses(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestBeginResumesAndRestartStartsNewAttempt(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	q1 := h.questions[0]
	h.answer(t, q1, storagetest.Correct(q1))

	h.fake.Reset()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	p := h.progress(t)
	assert.Equal(t, int64(2), *p.CurrentQuestionID)
	assert.Equal(t, 1, p.Attempt)
	assert.Equal(t, "<b>ВОПРОС #2</b>\n\n📌 Какая картинка создана в нейросети?", h.fake.Texts(chatID)[0])

	require.NoError(t, h.engine.Restart(ctx, h.user, chatID))
	p = h.progress(t)
	assert.Equal(t, int64(1), *p.CurrentQuestionID)
	assert.Equal(t, 2, p.Attempt)

	// the same question can be answered again in the new attempt
	assert.Equal(t, quiz.OutcomeCorrect, h.answer(t, q1, storagetest.Correct(q1)))
	rows, err := h.store.Responses(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestBeginWithEmptyCatalog(t *testing.T) {
	st := storagetest.OpenStore(t)
	fake := messengertest.New()
	ctx := context.Background()
	u, _, err := st.EnsureUser(ctx, model.User{TelegramID: 1})
	require.NoError(t, err)

	e := quiz.NewEngine(st, fake, nil, nil, content.DefaultTexts(), quiz.Options{})
	require.ErrorIs(t, e.Begin(ctx, u, 1), quiz.ErrEmptyCatalog)

	// progress is created on demand
	p, err := st.Progress(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateStart, p.State)
}

func TestScorerImageBonus(t *testing.T) {
	h := newHarness(t, quiz.Options{})
	ctx := context.Background()
	require.NoError(t, h.engine.Begin(ctx, h.user, chatID))
	for _, q := range h.questions {
		h.answer(t, q, storagetest.Correct(q))
	}
	rid := "req-1"
	ok, err := h.store.InsertResponse(ctx, model.Response{
		UserID: h.user.ID, Attempt: 1, IsCorrect: true, ImageGenerated: true, GenerationRequestID: &rid,
	})
	require.NoError(t, err)
	require.True(t, ok)

	plain, err := quiz.NewScorer(h.store, false).Summary(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, plain.Score)
	assert.True(t, plain.Image)

	bonus, err := quiz.NewScorer(h.store, true).Summary(ctx, h.user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, bonus.Score)
	assert.Equal(t, 3, bonus.Correct)
}
