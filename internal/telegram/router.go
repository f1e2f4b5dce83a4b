package telegram

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"

	"github.com/thipowin/ThipoSelf/internal/commenter"
	"github.com/thipowin/ThipoSelf/internal/peerid"
	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// PostHandler takes new channel posts. Dispatch must not block.
type PostHandler interface {
	Dispatch(ctx context.Context, ev commenter.PostEvent)
}

// CommandHandler runs operator commands and returns the reply text.
type CommandHandler interface {
	Handle(ctx context.Context, text string) (reply string, ok bool)
}

// Editor rewrites a message in place.
type Editor interface {
	Edit(ctx context.Context, peer tg.InputPeerClass, id int, text string) error
}

// Router turns raw updates into post events and command replies.
type Router struct {
	// base outlives individual update handlers and bounds dispatched events.
	base     context.Context
	posts    PostHandler
	commands CommandHandler
	editor   Editor
	peers    *PeerCache
	logger   logging.Logger
	now      func() time.Time
	self     atomic.Int64
}

func NewRouter(base context.Context, posts PostHandler, commands CommandHandler, editor Editor, peers *PeerCache, logger logging.Logger) *Router {
	return &Router{
		base:     base,
		posts:    posts,
		commands: commands,
		editor:   editor,
		peers:    peers,
		logger:   logger,
		now:      time.Now,
	}
}

// SetSelf records the logged-in user id so Saved Messages resolve without entities.
func (r *Router) SetSelf(id int64) { r.self.Store(id) }

// Register installs the router's handlers on d.
func (r *Router) Register(d tg.UpdateDispatcher) {
	d.OnNewChannelMessage(r.OnNewChannelMessage)
	d.OnNewMessage(r.OnNewMessage)
}

// OnNewChannelMessage handles channel posts and the owner's messages in supergroups.
func (r *Router) OnNewChannelMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewChannelMessage) error {
	r.peers.Learn(e)
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		return nil
	}
	if msg.Out && !msg.Post {
		r.command(ctx, e, msg)
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	r.posts.Dispatch(r.base, commenter.PostEvent{
		ID:         uuid.NewString(),
		ChannelID:  peerid.MarkChannel(peer.ChannelID),
		MessageID:  msg.ID,
		PostedAt:   time.Unix(int64(msg.Date), 0),
		ReceivedAt: r.now(),
	})
	return nil
}

// OnNewMessage handles private chats, basic groups and Saved Messages.
func (r *Router) OnNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	r.peers.Learn(e)
	msg, ok := u.Message.(*tg.Message)
	if !ok || !msg.Out {
		return nil
	}
	r.command(ctx, e, msg)
	return nil
}

func (r *Router) command(ctx context.Context, e tg.Entities, msg *tg.Message) {
	reply, ok := r.commands.Handle(ctx, msg.Message)
	if !ok {
		return
	}
	peer, ok := r.inputPeer(e, msg.PeerID)
	if !ok {
		r.logger.WithField("message_id", msg.ID).Warn("Cannot resolve chat for command reply")
		return
	}
	if err := r.editor.Edit(ctx, peer, msg.ID, reply); err != nil {
		r.logger.WithError(err).WithField("message_id", msg.ID).Warn("Failed to edit command message")
	}
}

func (r *Router) inputPeer(e tg.Entities, p tg.PeerClass) (tg.InputPeerClass, bool) {
	switch p := p.(type) {
	case *tg.PeerUser:
		if p.UserID == r.self.Load() {
			return &tg.InputPeerSelf{}, true
		}
		u, ok := e.Users[p.UserID]
		if !ok {
			return nil, false
		}
		if u.Self {
			return &tg.InputPeerSelf{}, true
		}
		return u.AsInputPeer(), true
	case *tg.PeerChat:
		return &tg.InputPeerChat{ChatID: p.ChatID}, true
	case *tg.PeerChannel:
		ch, ok := e.Channels[p.ChannelID]
		if !ok {
			return nil, false
		}
		return ch.AsInputPeer(), true
	default:
		return nil, false
	}
}
