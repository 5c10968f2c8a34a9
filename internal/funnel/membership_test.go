package funnel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type requests struct {
	mu   sync.Mutex
	seen []map[string]any
}

func (r *requests) all() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.seen...)
}

func newChecker(t *testing.T, reply string, delay time.Duration) (*TelebotChecker, *requests) {
	t.Helper()
	reqs := &requests{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		reqs.mu.Lock()
		reqs.seen = append(reqs.seen, body)
		reqs.mu.Unlock()
		time.Sleep(delay)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "2:channel", Offline: true})
	require.NoError(t, err)
	return NewTelebotChecker(bot, "@neuroved", 200*time.Millisecond), reqs
}

func memberReply(status string) string {
	return `{"ok":true,"result":{"status":"` + status + `","user":{"id":900,"is_bot":false,"first_name":"A"}}}`
}

func TestTelebotCheckerStatuses(t *testing.T) {
	for status, want := range map[string]bool{
		"member":        true,
		"administrator": true,
		"creator":       true,
		"left":          false,
		"kicked":        false,
	} {
		c, reqs := newChecker(t, memberReply(status), 0)
		got, err := c.IsMember(context.Background(), 900)
		require.NoError(t, err, status)
		assert.Equal(t, want, got, status)
		seen := reqs.all()
		require.Len(t, seen, 1)
		assert.Equal(t, "@neuroved", seen[0]["chat_id"])
		assert.Equal(t, "900", seen[0]["user_id"])
	}
}

func TestTelebotCheckerErrors(t *testing.T) {
	c, _ := newChecker(t, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`, 0)
	_, err := c.IsMember(context.Background(), 900)
	require.Error(t, err)

	slow, _ := newChecker(t, memberReply("member"), time.Second)
	_, err = slow.IsMember(context.Background(), 900)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
