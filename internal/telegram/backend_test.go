package telegram

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thipowin/ThipoSelf/internal/commenter"
	"github.com/thipowin/ThipoSelf/pkg/logging"
)

const (
	channelBare = int64(1234567890)
	groupBare   = int64(555)
)

func quietLogger() logging.Logger {
	l := logging.NewLogger()
	l.SetOutput(io.Discard)
	return l
}

type apiStub struct {
	full      *tg.MessagesChatFull
	fullErr   error
	disc      *tg.MessagesDiscussionMessage
	discErr   error
	sendErr   error
	sent      []*tg.MessagesSendMessageRequest
	edited    []*tg.MessagesEditMessageRequest
	chats     tg.MessagesChatsClass
	stateErr  error
	sendReply func(req *tg.MessagesSendMessageRequest) tg.UpdatesClass
}

func (a *apiStub) ChannelsGetFullChannel(context.Context, tg.InputChannelClass) (*tg.MessagesChatFull, error) {
	return a.full, a.fullErr
}

func (a *apiStub) MessagesGetDiscussionMessage(context.Context, *tg.MessagesGetDiscussionMessageRequest) (*tg.MessagesDiscussionMessage, error) {
	return a.disc, a.discErr
}

func (a *apiStub) MessagesSendMessage(_ context.Context, req *tg.MessagesSendMessageRequest) (tg.UpdatesClass, error) {
	a.sent = append(a.sent, req)
	if a.sendErr != nil {
		return nil, a.sendErr
	}
	if a.sendReply != nil {
		return a.sendReply(req), nil
	}
	return &tg.UpdateShortSentMessage{ID: 99}, nil
}

func (a *apiStub) MessagesEditMessage(_ context.Context, req *tg.MessagesEditMessageRequest) (tg.UpdatesClass, error) {
	a.edited = append(a.edited, req)
	return &tg.Updates{}, nil
}

func (a *apiStub) MessagesGetAllChats(context.Context, []int64) (tg.MessagesChatsClass, error) {
	return a.chats, nil
}

func (a *apiStub) UpdatesGetState(context.Context) (*tg.UpdatesState, error) {
	return &tg.UpdatesState{}, a.stateErr
}

func knownPeers() *PeerCache {
	p := NewPeerCache()
	p.LearnChats([]tg.ChatClass{
		&tg.Channel{ID: channelBare, AccessHash: 11, Title: "News", Broadcast: true},
		&tg.Channel{ID: groupBare, AccessHash: 22, Title: "News Chat", Megagroup: true},
	})
	return p
}

func discussion() *tg.MessagesDiscussionMessage {
	return &tg.MessagesDiscussionMessage{
		Messages: []tg.MessageClass{
			&tg.Message{ID: 310, PeerID: &tg.PeerChannel{ChannelID: groupBare}},
			&tg.Message{ID: 42, PeerID: &tg.PeerChannel{ChannelID: channelBare}},
		},
	}
}

var post = commenter.PostRef{ChannelID: -1001234567890, MessageID: 42}

func TestLinkedThread(t *testing.T) {
	api := &apiStub{full: &tg.MessagesChatFull{FullChat: &tg.ChannelFull{}}}
	full := api.full.FullChat.(*tg.ChannelFull)
	full.SetLinkedChatID(groupBare)
	b := NewBackend(api, knownPeers(), quietLogger())

	thread, ok, err := b.LinkedThread(context.Background(), post.ChannelID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, groupBare, thread.ChatID)
}

func TestLinkedThreadMissing(t *testing.T) {
	api := &apiStub{full: &tg.MessagesChatFull{FullChat: &tg.ChannelFull{}}}
	b := NewBackend(api, knownPeers(), quietLogger())

	_, ok, err := b.LinkedThread(context.Background(), post.ChannelID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLinkedThreadUnknownChannel(t *testing.T) {
	b := NewBackend(&apiStub{}, NewPeerCache(), quietLogger())

	_, _, err := b.LinkedThread(context.Background(), post.ChannelID)
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestSendCommentRepliesToThreadRoot(t *testing.T) {
	api := &apiStub{disc: discussion()}
	b := NewBackend(api, knownPeers(), quietLogger())

	id, err := b.SendComment(context.Background(), commenter.Thread{ChatID: groupBare}, post, "hello")
	require.NoError(t, err)
	assert.Equal(t, 99, id)

	require.Len(t, api.sent, 1)
	req := api.sent[0]
	assert.Equal(t, "hello", req.Message)
	assert.Equal(t, &tg.InputPeerChannel{ChannelID: groupBare, AccessHash: 22}, req.Peer)
	assert.Equal(t, &tg.InputReplyToMessage{ReplyToMsgID: 310}, req.ReplyTo)
}

func TestSendCommentClassifiesErrors(t *testing.T) {
	api := &apiStub{disc: discussion(), sendErr: tgerr.New(403, "CHAT_WRITE_FORBIDDEN")}
	b := NewBackend(api, knownPeers(), quietLogger())

	_, err := b.SendComment(context.Background(), commenter.Thread{ChatID: groupBare}, post, "hello")
	assert.ErrorIs(t, err, commenter.ErrWriteForbidden)

	api.sendErr = tgerr.New(420, "FLOOD_WAIT_7")
	_, err = b.SendComment(context.Background(), commenter.Thread{ChatID: groupBare}, post, "hello")
	var rl *commenter.RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 7*time.Second, rl.Wait)
}

func TestSendCommentWithoutDiscussionCopy(t *testing.T) {
	api := &apiStub{disc: &tg.MessagesDiscussionMessage{}}
	b := NewBackend(api, knownPeers(), quietLogger())

	_, err := b.SendComment(context.Background(), commenter.Thread{ChatID: groupBare}, post, "hello")
	require.Error(t, err)
	assert.Equal(t, commenter.ClassOther, commenter.Classify(err))
	assert.Empty(t, api.sent)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))

	var rl *commenter.RateLimitError
	require.ErrorAs(t, classify(tgerr.New(420, "SLOWMODE_WAIT_10")), &rl)
	assert.Equal(t, 10*time.Second, rl.Wait)

	err := classify(tgerr.New(400, "CHAT_GUEST_SEND_FORBIDDEN"))
	assert.ErrorIs(t, err, commenter.ErrWriteForbidden)
	assert.True(t, tgerr.Is(err, "CHAT_GUEST_SEND_FORBIDDEN"))

	other := errors.New("connection reset")
	assert.Equal(t, other, classify(other))
}

func TestSentMessageID(t *testing.T) {
	id, ok := sentMessageID(&tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateMessageID{ID: 5, RandomID: 1},
		&tg.UpdateMessageID{ID: 6, RandomID: 2},
	}}, 2)
	assert.True(t, ok)
	assert.Equal(t, 6, id)

	id, ok = sentMessageID(&tg.Updates{Updates: []tg.UpdateClass{
		&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 8}},
	}}, 3)
	assert.True(t, ok)
	assert.Equal(t, 8, id)

	_, ok = sentMessageID(&tg.UpdatesTooLong{}, 1)
	assert.False(t, ok)
}

func TestChannelNameAndWarm(t *testing.T) {
	api := &apiStub{chats: &tg.MessagesChats{Chats: []tg.ChatClass{
		&tg.Channel{ID: 777, AccessHash: 1, Title: "Late Channel"},
	}}}
	b := NewBackend(api, knownPeers(), quietLogger())

	_, err := b.ChannelName(context.Background(), -1000000000777)
	assert.ErrorIs(t, err, ErrUnknownChannel)

	require.NoError(t, b.Warm(context.Background()))
	name, err := b.ChannelName(context.Background(), -1000000000777)
	require.NoError(t, err)
	assert.Equal(t, "Late Channel", name)
}

func TestPeerCacheKeepsFullEntry(t *testing.T) {
	p := knownPeers()
	p.Learn(tg.Entities{Channels: map[int64]*tg.Channel{
		channelBare: {ID: channelBare, Min: true, Title: "News (min)"},
	}})

	ch, ok := p.Channel(channelBare)
	require.True(t, ok)
	assert.Equal(t, int64(11), ch.AccessHash)
}

func TestSelfSink(t *testing.T) {
	api := &apiStub{}
	sink := NewSelfSink(NewBackend(api, knownPeers(), quietLogger()))

	require.NoError(t, sink.Deliver(context.Background(), commenter.Report{Text: "✅ report"}))
	require.Len(t, api.sent, 1)
	assert.Equal(t, &tg.InputPeerSelf{}, api.sent[0].Peer)
	assert.Equal(t, "✅ report", api.sent[0].Message)
}

func TestPingAndEdit(t *testing.T) {
	api := &apiStub{}
	b := NewBackend(api, knownPeers(), quietLogger())
	require.NoError(t, b.Ping(context.Background()))

	api.stateErr = errors.New("dead")
	assert.Error(t, b.Ping(context.Background()))

	require.NoError(t, b.Edit(context.Background(), &tg.InputPeerSelf{}, 12, "done"))
	require.Len(t, api.edited, 1)
	assert.Equal(t, 12, api.edited[0].ID)
}
