package telegram

import (
	"fmt"
	"time"

	"github.com/gotd/td/tgerr"

	"github.com/thipowin/ThipoSelf/internal/commenter"
)

var writeForbidden = []string{
	"CHAT_WRITE_FORBIDDEN",
	"CHAT_GUEST_SEND_FORBIDDEN",
	"CHAT_SEND_PLAIN_FORBIDDEN",
	"CHAT_RESTRICTED",
	"USER_BANNED_IN_CHANNEL",
	"CHANNEL_PUBLIC_GROUP_NA",
}

// classify maps RPC errors onto the engine's failure classes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if d, ok := tgerr.AsFloodWait(err); ok {
		return &commenter.RateLimitError{Wait: d, Err: err}
	}
	if rpcErr, ok := tgerr.As(err); ok && rpcErr.Type == "SLOWMODE_WAIT" {
		return &commenter.RateLimitError{Wait: time.Duration(rpcErr.Argument) * time.Second, Err: err}
	}
	if tgerr.Is(err, writeForbidden...) {
		return fmt.Errorf("%w (%w)", commenter.ErrWriteForbidden, err)
	}
	return err
}
