package funnel

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

// MembershipChecker reports whether a user has joined the promoted channel.
type MembershipChecker interface {
	IsMember(ctx context.Context, userID int64) (bool, error)
}

// channelRef addresses a chat by @username or numeric id.
type channelRef string

func (c channelRef) Recipient() string { return string(c) }

// TelebotChecker asks getChatMember through a bot that administers the channel.
type TelebotChecker struct {
	bot     *tele.Bot
	channel tele.Recipient
	timeout time.Duration
}

// NewTelebotChecker checks membership of channel ("@name" or numeric id) with bot.
func NewTelebotChecker(bot *tele.Bot, channel string, timeout time.Duration) *TelebotChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TelebotChecker{bot: bot, channel: channelRef(channel), timeout: timeout}
}

// IsMember implements MembershipChecker. Members, administrators and the
// creator count as subscribed.
func (c *TelebotChecker) IsMember(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		member *tele.ChatMember
		err    error
	}
	done := make(chan result, 1)
	go func() {
		m, err := c.bot.ChatMemberOf(c.channel, tele.ChatID(userID))
		done <- result{member: m, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, fmt.Errorf("funnel: membership check: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return false, fmt.Errorf("funnel: membership check: %w", r.err)
		}
		switch r.member.Role {
		case tele.Member, tele.Administrator, tele.Creator:
			return true, nil
		}
		return false, nil
	}
}
