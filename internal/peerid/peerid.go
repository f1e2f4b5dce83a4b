// Package peerid converts between bare MTProto channel ids and the "marked"
// form (-100 prefix) that Telegram clients display and operators paste.
package peerid

import (
	"fmt"
	"strconv"
	"strings"
)

const channelOffset int64 = 1_000_000_000_000

// MarkChannel returns the marked form of a bare channel id.
func MarkChannel(bare int64) int64 {
	return -(channelOffset + bare)
}

// BareChannel strips the channel mark. Ids that are not marked are returned unchanged.
func BareChannel(id int64) int64 {
	if IsMarkedChannel(id) {
		return -id - channelOffset
	}
	return id
}

// IsMarkedChannel reports whether id carries the channel mark.
func IsMarkedChannel(id int64) bool {
	return id < -channelOffset
}

// ParseChannel accepts "-1001234567890" or "1234567890" and returns the marked form.
func ParseChannel(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("channel id must be numeric: %q", s)
	}
	switch {
	case id > 0:
		return MarkChannel(id), nil
	case IsMarkedChannel(id):
		return id, nil
	default:
		return 0, fmt.Errorf("not a channel id: %d", id)
	}
}

// MessageLink builds the private t.me link for a message in a channel or supergroup.
func MessageLink(channelID int64, messageID int) string {
	return fmt.Sprintf("https://t.me/c/%d/%d", BareChannel(channelID), messageID)
}
