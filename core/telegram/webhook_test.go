package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	tele "gopkg.in/telebot.v4"
)

type recordingProcessor struct{ updates []tele.Update }

func (r *recordingProcessor) ProcessUpdate(u tele.Update) { r.updates = append(r.updates, u) }

func TestWebhookHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	proc := &recordingProcessor{}
	r := gin.New()
	r.POST("/telegram/webhook", WebhookHandler(proc, "s3cret"))

	body := `{"update_id":77,"message":{"message_id":1,"text":"/start","chat":{"id":5,"type":"private"}}}`

	cases := []struct {
		name   string
		secret string
		body   string
		want   int
	}{
		{"missing secret", "", body, http.StatusForbidden},
		{"wrong secret", "nope", body, http.StatusForbidden},
		{"bad json", "s3cret", "{", http.StatusBadRequest},
		{"ok", "s3cret", body, http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		if tc.secret != "" {
			req.Header.Set(HeaderSecretToken, tc.secret)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}

	if len(proc.updates) != 1 || proc.updates[0].ID != 77 {
		t.Fatalf("processed updates = %+v", proc.updates)
	}
	if proc.updates[0].Message == nil || proc.updates[0].Message.Text != "/start" {
		t.Fatalf("message not decoded: %+v", proc.updates[0].Message)
	}
}
