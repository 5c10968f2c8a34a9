// Package messengertest provides a recording Messenger for tests.
package messengertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/neuroquiz/internal/messenger"
)

// Ops recorded by Fake.
const (
	OpText     = "send_text"
	OpPhoto    = "send_photo"
	OpAlbum    = "send_album"
	OpDelete   = "delete"
	OpCallback = "answer_callback"
)

// Call is one recorded outbound call.
type Call struct {
	Op         string
	ChatID     int64
	Text       string
	Photo      messenger.Photo
	Keyboard   messenger.Keyboard
	FileIDs    []string
	MessageID  int
	CallbackID string
}

// Fake records calls and assigns increasing message ids. Uploads by path
// return the file id "file:<path>".
type Fake struct {
	mu     sync.Mutex
	nextID int
	calls  []Call
	fail   map[string]error
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{nextID: 100, fail: map[string]error{}}
}

// Fail makes every later call of op return err. A nil err clears it.
func (f *Fake) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// FailAll makes every op return an *messenger.Error with reason.
func (f *Fake) FailAll(reason messenger.Reason) {
	for _, op := range []string{OpText, OpPhoto, OpAlbum, OpDelete, OpCallback} {
		f.Fail(op, &messenger.Error{Op: op, Reason: reason, Err: fmt.Errorf("fake %s", reason)})
	}
}

// Calls returns recorded calls, optionally filtered by op.
func (f *Fake) Calls(ops ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ops) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		for _, op := range ops {
			if c.Op == op {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Texts returns the texts and captions sent to chatID in order.
func (f *Fake) Texts(chatID int64) []string {
	var out []string
	for _, c := range f.Calls(OpText, OpPhoto) {
		if c.ChatID != chatID {
			continue
		}
		if c.Op == OpText {
			out = append(out, c.Text)
		} else {
			out = append(out, c.Photo.Caption)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) record(c Call) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[c.Op]; err != nil {
		return 0, err
	}
	if c.Op == OpText || c.Op == OpPhoto {
		f.nextID++
		c.MessageID = f.nextID
	}
	f.calls = append(f.calls, c)
	return c.MessageID, nil
}

// SendText implements messenger.Messenger.
func (f *Fake) SendText(_ context.Context, chatID int64, text string, kb messenger.Keyboard) (messenger.Sent, error) {
	id, err := f.record(Call{Op: OpText, ChatID: chatID, Text: text, Keyboard: kb})
	if err != nil {
		return messenger.Sent{}, err
	}
	return messenger.Sent{MessageID: id}, nil
}

// SendPhoto implements messenger.Messenger.
func (f *Fake) SendPhoto(_ context.Context, chatID int64, p messenger.Photo, kb messenger.Keyboard) (messenger.Sent, error) {
	id, err := f.record(Call{Op: OpPhoto, ChatID: chatID, Photo: p, Keyboard: kb})
	if err != nil {
		return messenger.Sent{}, err
	}
	sent := messenger.Sent{MessageID: id, FileID: p.FileID}
	if p.FileID == "" && p.Path != "" {
		sent.FileID = "file:" + p.Path
	}
	return sent, nil
}

// SendAlbum implements messenger.Messenger.
func (f *Fake) SendAlbum(_ context.Context, chatID int64, fileIDs []string) error {
	_, err := f.record(Call{Op: OpAlbum, ChatID: chatID, FileIDs: append([]string(nil), fileIDs...)})
	return err
}

// Delete implements messenger.Messenger.
func (f *Fake) Delete(_ context.Context, chatID int64, messageID int) error {
	_, err := f.record(Call{Op: OpDelete, ChatID: chatID, MessageID: messageID})
	return err
}

// AnswerCallback implements messenger.Messenger.
func (f *Fake) AnswerCallback(_ context.Context, callbackID, text string) error {
	_, err := f.record(Call{Op: OpCallback, CallbackID: callbackID, Text: text})
	return err
}

var _ messenger.Messenger = (*Fake)(nil)
