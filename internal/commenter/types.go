// Package commenter is the auto-comment engine: for every new post in a
// watched channel it finds the linked discussion thread, delivers one comment
// with bounded, error-aware retries, and reports the outcome to the operator.
package commenter

import (
	"context"
	"fmt"
	"time"

	"github.com/thipowin/ThipoSelf/internal/peerid"
)

// PostEvent is one new post seen in a channel.
type PostEvent struct {
	ID         string // correlation id, assigned on entry when empty
	ChannelID  int64  // marked channel id, as stored in the watch list
	MessageID  int
	PostedAt   time.Time // server date of the post
	ReceivedAt time.Time // local receipt time, shown to the operator
}

// Ref is the source post reference handed to the backend.
func (e PostEvent) Ref() PostRef {
	return PostRef{ChannelID: e.ChannelID, MessageID: e.MessageID}
}

// Key identifies the post for duplicate-update detection.
func (e PostEvent) Key() string {
	return fmt.Sprintf("%d:%d", e.ChannelID, e.MessageID)
}

// PostRef points at a channel post.
type PostRef struct {
	ChannelID int64
	MessageID int
}

// Link is the t.me link to the post.
func (p PostRef) Link() string {
	return peerid.MessageLink(p.ChannelID, p.MessageID)
}

// Thread is the discussion supergroup linked to a channel.
type Thread struct {
	ChatID int64 // bare id
}

// CommentLink is the t.me link to a message inside the thread.
func (t Thread) CommentLink(messageID int) string {
	return peerid.MessageLink(t.ChatID, messageID)
}

// ChannelDirectory fetches channel metadata from the backend.
type ChannelDirectory interface {
	// LinkedThread returns the discussion thread for channelID; ok is false when
	// the channel has no linked discussion group.
	LinkedThread(ctx context.Context, channelID int64) (thread Thread, ok bool, err error)
}

// CommentSender posts text into thread as a comment on post.
// Failures should wrap ErrWriteForbidden or be a *RateLimitError where that applies.
type CommentSender interface {
	SendComment(ctx context.Context, thread Thread, post PostRef, text string) (commentID int, err error)
}

// ChannelNamer resolves a display name for a channel.
type ChannelNamer interface {
	ChannelName(ctx context.Context, channelID int64) (string, error)
}

// WatchList is the set of channels whose posts are acted on.
type WatchList interface {
	Contains(channelID int64) bool
}

// WordSource hands out a snapshot of the comment words.
type WordSource interface {
	Snapshot() []string
}

// Gate is the engine activation flag.
type Gate interface {
	Active() bool
}

// ClaimGuard admits each key once. first is false when the key was already claimed.
type ClaimGuard interface {
	Claim(ctx context.Context, key string) (first bool, err error)
}
