// Package callbacks builds and parses inline button callback data of the form
// key_part1_part2. Telegram caps callback data at 64 bytes.
package callbacks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	// Sep separates the key and the parts.
	Sep = "_"
	// MaxDataLen is the Bot API limit for callback_data.
	MaxDataLen = 64
)

// ErrTooLong is returned by Join when the encoded data exceeds MaxDataLen.
var ErrTooLong = errors.New("callbacks: data exceeds 64 bytes")

// Join encodes key and parts with Sep.
func Join(key string, parts ...any) (string, error) {
	var b strings.Builder
	b.WriteString(key)
	for _, p := range parts {
		b.WriteString(Sep)
		fmt.Fprint(&b, p)
	}
	if b.Len() > MaxDataLen {
		return "", ErrTooLong
	}
	return b.String(), nil
}

// MustJoin is Join for data known to fit, such as a short key with numeric ids.
func MustJoin(key string, parts ...any) string {
	s, err := Join(key, parts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Split returns every Sep separated token of data.
func Split(data string) []string {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil
	}
	return strings.Split(data, Sep)
}

// Int64 parses tokens[i] as a base 10 integer.
func Int64(tokens []string, i int) (int64, error) {
	if i < 0 || i >= len(tokens) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(tokens[i], 10, 64)
}

// Data returns the raw callback data. Telebot strips the "\f<unique>|" envelope
// into Unique and Data; plain data arrives unchanged.
func Data(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		if cb.Data == "" {
			return cb.Unique
		}
		return cb.Unique + "|" + cb.Data
	}
	return strings.TrimSpace(strings.TrimPrefix(cb.Data, "\f"))
}
