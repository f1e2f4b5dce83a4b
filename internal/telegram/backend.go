package telegram

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/thipowin/ThipoSelf/internal/commenter"
	"github.com/thipowin/ThipoSelf/internal/peerid"
	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// API is the subset of *tg.Client the backend calls.
type API interface {
	ChannelsGetFullChannel(ctx context.Context, channel tg.InputChannelClass) (*tg.MessagesChatFull, error)
	MessagesGetDiscussionMessage(ctx context.Context, request *tg.MessagesGetDiscussionMessageRequest) (*tg.MessagesDiscussionMessage, error)
	MessagesSendMessage(ctx context.Context, request *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error)
	MessagesEditMessage(ctx context.Context, request *tg.MessagesEditMessageRequest) (tg.UpdatesClass, error)
	MessagesGetAllChats(ctx context.Context, exceptIDs []int64) (tg.MessagesChatsClass, error)
	UpdatesGetState(ctx context.Context) (*tg.UpdatesState, error)
}

// ErrUnknownChannel means the channel's access hash has not been seen yet.
var ErrUnknownChannel = errors.New("channel not in peer cache")

// Backend implements the engine's channel directory, comment sender and
// namer on top of MTProto calls.
type Backend struct {
	api    API
	peers  *PeerCache
	logger logging.Logger
}

func NewBackend(api API, peers *PeerCache, logger logging.Logger) *Backend {
	return &Backend{api: api, peers: peers, logger: logger}
}

// Peers exposes the cache fed by the update router.
func (b *Backend) Peers() *PeerCache { return b.peers }

func (b *Backend) channel(id int64) (*tg.Channel, error) {
	ch, ok := b.peers.Channel(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChannel, id)
	}
	return ch, nil
}

// Warm loads every chat the account belongs to into the peer cache.
func (b *Backend) Warm(ctx context.Context) error {
	res, err := b.api.MessagesGetAllChats(ctx, nil)
	if err != nil {
		return fmt.Errorf("get all chats: %w", err)
	}
	switch chats := res.(type) {
	case *tg.MessagesChats:
		b.peers.LearnChats(chats.Chats)
	case *tg.MessagesChatsSlice:
		b.peers.LearnChats(chats.Chats)
	}
	b.logger.WithField("channels", b.peers.Len()).Info("Peer cache warmed")
	return nil
}

// ChannelName returns the cached title of a channel.
func (b *Backend) ChannelName(_ context.Context, channelID int64) (string, error) {
	ch, err := b.channel(channelID)
	if err != nil {
		return "", err
	}
	return ch.Title, nil
}

// LinkedThread reads the channel's full info for its linked discussion group.
func (b *Backend) LinkedThread(ctx context.Context, channelID int64) (commenter.Thread, bool, error) {
	ch, err := b.channel(channelID)
	if err != nil {
		return commenter.Thread{}, false, err
	}
	full, err := b.api.ChannelsGetFullChannel(ctx, ch.AsInput())
	if err != nil {
		return commenter.Thread{}, false, fmt.Errorf("get full channel %d: %w", channelID, err)
	}
	b.peers.LearnChats(full.Chats)

	info, ok := full.FullChat.(*tg.ChannelFull)
	if !ok {
		return commenter.Thread{}, false, nil
	}
	linked, ok := info.GetLinkedChatID()
	if !ok || linked == 0 {
		return commenter.Thread{}, false, nil
	}
	return commenter.Thread{ChatID: linked}, true, nil
}

// SendComment posts text under post in the discussion thread. Errors are
// mapped onto commenter.ErrWriteForbidden and *commenter.RateLimitError.
func (b *Backend) SendComment(ctx context.Context, thread commenter.Thread, post commenter.PostRef, text string) (int, error) {
	ch, err := b.channel(post.ChannelID)
	if err != nil {
		return 0, err
	}
	disc, err := b.api.MessagesGetDiscussionMessage(ctx, &tg.MessagesGetDiscussionMessageRequest{
		Peer:  ch.AsInputPeer(),
		MsgID: post.MessageID,
	})
	if err != nil {
		return 0, classify(err)
	}
	b.peers.LearnChats(disc.Chats)

	root, ok := threadRoot(disc.Messages, thread.ChatID)
	if !ok {
		return 0, fmt.Errorf("discussion copy of post %d not found in %d", post.MessageID, thread.ChatID)
	}
	group, err := b.channel(thread.ChatID)
	if err != nil {
		return 0, err
	}

	randomID := rand.Int64()
	res, err := b.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     group.AsInputPeer(),
		Message:  text,
		RandomID: randomID,
		ReplyTo:  &tg.InputReplyToMessage{ReplyToMsgID: root},
	})
	if err != nil {
		return 0, classify(err)
	}
	id, ok := sentMessageID(res, randomID)
	if !ok {
		b.logger.WithField("thread_id", thread.ChatID).Warn("Send succeeded without a message id in the response")
	}
	return id, nil
}

// threadRoot picks the discussion group's copy of the post: the oldest
// message in the result that lives in chatID.
func threadRoot(messages []tg.MessageClass, chatID int64) (int, bool) {
	root := 0
	for _, m := range messages {
		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		peer, ok := msg.PeerID.(*tg.PeerChannel)
		if !ok || peer.ChannelID != peerid.BareChannel(chatID) {
			continue
		}
		if root == 0 || msg.ID < root {
			root = msg.ID
		}
	}
	return root, root != 0
}

func sentMessageID(res tg.UpdatesClass, randomID int64) (int, bool) {
	var updates []tg.UpdateClass
	switch u := res.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID, true
	case *tg.Updates:
		updates = u.Updates
	case *tg.UpdatesCombined:
		updates = u.Updates
	default:
		return 0, false
	}

	for _, upd := range updates {
		if m, ok := upd.(*tg.UpdateMessageID); ok && m.RandomID == randomID {
			return m.ID, true
		}
	}
	for _, upd := range updates {
		switch m := upd.(type) {
		case *tg.UpdateNewChannelMessage:
			return m.Message.GetID(), true
		case *tg.UpdateNewMessage:
			return m.Message.GetID(), true
		}
	}
	return 0, false
}

// SendToSelf posts text to the account's Saved Messages.
func (b *Backend) SendToSelf(ctx context.Context, text string) error {
	_, err := b.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     &tg.InputPeerSelf{},
		Message:  text,
		RandomID: rand.Int64(),
	})
	if err != nil {
		return fmt.Errorf("send to saved messages: %w", classify(err))
	}
	return nil
}

// Edit replaces the text of one of the account's own messages.
func (b *Backend) Edit(ctx context.Context, peer tg.InputPeerClass, id int, text string) error {
	_, err := b.api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:    peer,
		ID:      id,
		Message: text,
	})
	if err != nil && !tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return fmt.Errorf("edit message %d: %w", id, err)
	}
	return nil
}

// Ping is a lightweight round trip used by the ping command and health checks.
func (b *Backend) Ping(ctx context.Context) error {
	if _, err := b.api.UpdatesGetState(ctx); err != nil {
		return fmt.Errorf("updates.getState: %w", err)
	}
	return nil
}

// SelfSink delivers reports to Saved Messages.
type SelfSink struct {
	backend *Backend
}

func NewSelfSink(b *Backend) *SelfSink { return &SelfSink{backend: b} }

func (s *SelfSink) Deliver(ctx context.Context, r commenter.Report) error {
	return s.backend.SendToSelf(ctx, r.Text)
}
