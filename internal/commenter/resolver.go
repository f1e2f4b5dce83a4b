package commenter

import (
	"context"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// Resolution is the result of looking up a channel's discussion thread:
// either Resolved(thread) or Unresolved(cause). A nil cause means the channel
// simply has no linked group; a non-nil cause is the backend failure.
type Resolution struct {
	thread Thread
	linked bool
	cause  error
}

// Resolved wraps a found thread.
func Resolved(t Thread) Resolution { return Resolution{thread: t, linked: true} }

// Unresolved records why no thread is available.
func Unresolved(cause error) Resolution { return Resolution{cause: cause} }

// Thread returns the thread and whether one was found.
func (r Resolution) Thread() (Thread, bool) { return r.thread, r.linked }

// Cause is the backend error behind an Unresolved result, if any.
func (r Resolution) Cause() error { return r.cause }

// Resolver finds the discussion thread for a channel, exactly once per event.
type Resolver struct {
	dir    ChannelDirectory
	logger logging.Logger
}

// NewResolver creates a resolver over the backend directory.
func NewResolver(dir ChannelDirectory, logger logging.Logger) *Resolver {
	return &Resolver{dir: dir, logger: logger}
}

// Resolve never fails: backend errors degrade to Unresolved and are only logged.
func (r *Resolver) Resolve(ctx context.Context, channelID int64) Resolution {
	thread, ok, err := r.dir.LinkedThread(ctx, channelID)
	switch {
	case err != nil:
		r.logger.WithError(err).WithField("channel_id", channelID).Warn("Discussion thread lookup failed")
		return Unresolved(err)
	case !ok:
		return Unresolved(nil)
	default:
		return Resolved(thread)
	}
}
