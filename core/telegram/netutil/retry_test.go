package netutil

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"canceled", context.Canceled, false},
		{"timeout", timeoutErr{}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"url timeout", &url.Error{Op: "Post", URL: "https://example.org", Err: timeoutErr{}}, true},
		{"url wrapped plain", &url.Error{Op: "Post", URL: "https://example.org", Err: errors.New("eof")}, false},
		{"dns temporary", &net.DNSError{IsTemporary: true}, true},
	}
	for _, tc := range cases {
		if got := ShouldRetry(tc.err); got != tc.want {
			t.Fatalf("%s: ShouldRetry = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBackoffAndSleep(t *testing.T) {
	if got := Backoff(time.Second, 3); got != 3*time.Second {
		t.Fatalf("Backoff = %v", got)
	}
	if got := Backoff(time.Second, 0); got != 0 {
		t.Fatalf("Backoff(0) = %v", got)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep on canceled ctx = %v", err)
	}
}
