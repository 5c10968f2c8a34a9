package genapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/neuroquiz/internal/generation/genapi"
)

func TestSubmitSendsJob(t *testing.T) {
	var (
		path, auth string
		body       map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"request_id": 123456}`))
	}))
	defer srv.Close()

	c := genapi.New(genapi.Config{BaseURL: srv.URL + "/api/v1/", APIKey: "k", TranslateInput: true}, srv.Client())
	id, err := c.Submit(context.Background(), "кот в космосе", "https://bot.example/generation-callback/900")
	require.NoError(t, err)

	assert.Equal(t, "123456", id)
	assert.Equal(t, "/api/v1/networks/sdxl", path)
	assert.Equal(t, "Bearer k", auth)
	assert.Equal(t, "кот в космосе", body["prompt"])
	assert.Equal(t, "https://bot.example/generation-callback/900", body["callback_url"])
	assert.Equal(t, float64(1), body["num_outputs"])
	assert.Equal(t, float64(1024), body["width"])
	assert.Equal(t, float64(1024), body["height"])
	assert.Equal(t, true, body["translate_input"])
}

func TestSubmitErrors(t *testing.T) {
	cases := map[string]struct {
		status int
		reply  string
		check  func(t *testing.T, err error)
	}{
		"http error": {
			status: http.StatusUnauthorized,
			reply:  `{"message":"bad key"}`,
			check: func(t *testing.T, err error) {
				var apiErr *genapi.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
				assert.Equal(t, "genapi_401", apiErr.Code())
			},
		},
		"no id": {
			status: http.StatusOK,
			reply:  `{"status":"ok"}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, genapi.ErrEmptyRequestID)
			},
		},
		"garbage": {
			status: http.StatusOK,
			reply:  `<html>`,
			check: func(t *testing.T, err error) {
				require.Error(t, err)
			},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.reply))
			}))
			defer srv.Close()
			c := genapi.New(genapi.Config{BaseURL: srv.URL}, srv.Client())
			id, err := c.Submit(context.Background(), "p", "cb")
			assert.Empty(t, id)
			tc.check(t, err)
		})
	}
}

func TestCallbackDecoding(t *testing.T) {
	var cb genapi.Callback
	require.NoError(t, json.Unmarshal([]byte(`{"request_id":"abc","status":"success","result":["", "https://img/1.png"]}`), &cb))
	assert.Equal(t, genapi.RequestID("abc"), cb.RequestID)
	assert.Equal(t, "https://img/1.png", cb.Result.First())

	cb = genapi.Callback{}
	require.NoError(t, json.Unmarshal([]byte(`{"request_id":42,"status":"success","result":"https://img/2.png"}`), &cb))
	assert.Equal(t, genapi.RequestID("42"), cb.RequestID)
	assert.Equal(t, "https://img/2.png", cb.Result.First())

	cb = genapi.Callback{}
	require.NoError(t, json.Unmarshal([]byte(`{"request_id":null,"status":"failed","result":null}`), &cb))
	assert.Empty(t, cb.RequestID)
	assert.Empty(t, cb.Result.First())

	require.Error(t, json.Unmarshal([]byte(`{"request_id":{}}`), &cb))
}
