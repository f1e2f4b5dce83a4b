package telegram

import (
	"sync"

	"github.com/gotd/td/tg"

	"github.com/thipowin/ThipoSelf/internal/peerid"
)

// PeerCache remembers channels (with access hashes) seen in updates and RPC results.
// Keys are bare ids.
type PeerCache struct {
	mu       sync.RWMutex
	channels map[int64]*tg.Channel
}

func NewPeerCache() *PeerCache {
	return &PeerCache{channels: make(map[int64]*tg.Channel)}
}

// Learn stores the channels carried by an update's entities.
func (p *PeerCache) Learn(e tg.Entities) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range e.Channels {
		p.put(ch)
	}
}

// LearnChats stores the channels in an RPC result's chat list.
func (p *PeerCache) LearnChats(chats []tg.ChatClass) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chats {
		if ch, ok := c.(*tg.Channel); ok {
			p.put(ch)
		}
	}
}

// min channels carry no usable access hash; never let one replace a full entry.
func (p *PeerCache) put(ch *tg.Channel) {
	if old, ok := p.channels[ch.ID]; ok && ch.Min && !old.Min {
		return
	}
	p.channels[ch.ID] = ch
}

// Channel looks up a channel by bare or marked id.
func (p *PeerCache) Channel(id int64) (*tg.Channel, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ch, ok := p.channels[peerid.BareChannel(id)]
	return ch, ok
}

// Len is the number of cached channels.
func (p *PeerCache) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.channels)
}
