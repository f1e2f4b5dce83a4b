// Package commands implements the operator's chat commands. Each command is
// an outgoing message from the account owner; the reply replaces it in place.
// The original Persian keywords and English aliases are both accepted.
package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/thipowin/ThipoSelf/internal/engine"
	"github.com/thipowin/ThipoSelf/internal/peerid"
	"github.com/thipowin/ThipoSelf/internal/store"
	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// Namer resolves channel titles for listings.
type Namer interface {
	ChannelName(ctx context.Context, channelID int64) (string, error)
}

// Pinger measures a backend round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config wires a Dispatcher.
type Config struct {
	Channels *store.List[int64]
	Words    *store.List[string]
	Engine   *engine.State
	Namer    Namer
	Pinger   Pinger
	Logger   logging.Logger
}

type route struct {
	name    string
	pattern *regexp.Regexp
	run     func(ctx context.Context, arg string) string
}

// Dispatcher matches message text against the command table.
type Dispatcher struct {
	channels *store.List[int64]
	words    *store.List[string]
	engine   *engine.State
	namer    Namer
	pinger   Pinger
	logger   logging.Logger
	routes   []route
}

// New builds the dispatcher and its command table.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		channels: cfg.Channels,
		words:    cfg.Words,
		engine:   cfg.Engine,
		namer:    cfg.Namer,
		pinger:   cfg.Pinger,
		logger:   cfg.Logger,
	}
	d.routes = []route{
		{"add_channel", withArg("اضافه کردن", "add channel"), d.addChannel},
		{"remove_channel", withArg("حذف کردن", "remove channel"), d.removeChannel},
		{"list_channels", bare("لیست کانال", "list channels"), d.listChannels},
		{"add_word", withArg("تنظیم کلمه", "add word"), d.addWord},
		{"remove_word", withArg("حذف کلمه", "remove word"), d.removeWord},
		{"list_words", bare("لیست کلمات", "list words"), d.listWords},
		{"engine_on", bare("روشن", "engine on"), d.activate},
		{"engine_off", bare("خاموش", "engine off"), d.deactivate},
		{"ping", bare("پینگ", "ping"), d.ping},
	}
	return d
}

func withArg(keywords ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?is)^(?:` + alternation(keywords) + `)\s+(.+)$`)
}

func bare(keywords ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^(?:` + alternation(keywords) + `)$`)
}

func alternation(keywords []string) string {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return strings.Join(quoted, "|")
}

// Handle runs the command in text. ok is false when text is not a command.
func (d *Dispatcher) Handle(ctx context.Context, text string) (reply string, ok bool) {
	text = strings.TrimSpace(text)
	for _, r := range d.routes {
		m := r.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		arg := ""
		if len(m) > 1 {
			arg = strings.TrimSpace(m[1])
		}
		d.logger.WithField("command", r.name).Info("Operator command")
		return r.run(ctx, arg), true
	}
	return "", false
}

func (d *Dispatcher) addChannel(_ context.Context, arg string) string {
	id, err := peerid.ParseChannel(arg)
	if err != nil {
		return "❌ Channel id must be numeric"
	}
	added, err := d.channels.Add(id)
	switch {
	case err != nil:
		d.logger.WithError(err).Error("Failed to save channel list")
		return fmt.Sprintf("❌ Could not save the channel list: %v", err)
	case !added:
		return fmt.Sprintf("⚠️ Channel %d is already in the list", id)
	default:
		return fmt.Sprintf("✅ Channel %d added", id)
	}
}

func (d *Dispatcher) removeChannel(_ context.Context, arg string) string {
	id, err := peerid.ParseChannel(arg)
	if err != nil {
		return "❌ Channel id must be numeric"
	}
	removed, err := d.channels.Remove(id)
	switch {
	case err != nil:
		d.logger.WithError(err).Error("Failed to save channel list")
		return fmt.Sprintf("❌ Could not save the channel list: %v", err)
	case !removed:
		return fmt.Sprintf("⚠️ Channel %d is not in the list", id)
	default:
		return fmt.Sprintf("✅ Channel %d removed", id)
	}
}

func (d *Dispatcher) listChannels(ctx context.Context, _ string) string {
	ids := d.channels.Snapshot()
	if len(ids) == 0 {
		return "📋 No channels added"
	}
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := d.namer.ChannelName(ctx, id)
		if err != nil || name == "" {
			lines = append(lines, fmt.Sprintf("• %d", id))
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s (%d)", name, id))
	}
	return "📋 Watched channels:\n\n" + strings.Join(lines, "\n")
}

func (d *Dispatcher) addWord(_ context.Context, word string) string {
	added, err := d.words.Add(word)
	switch {
	case err != nil:
		d.logger.WithError(err).Error("Failed to save word list")
		return fmt.Sprintf("❌ Could not save the word list: %v", err)
	case !added:
		return fmt.Sprintf("⚠️ Word '%s' is already in the list", word)
	default:
		return fmt.Sprintf("✅ Word '%s' added", word)
	}
}

func (d *Dispatcher) removeWord(_ context.Context, word string) string {
	removed, err := d.words.Remove(word)
	switch {
	case err != nil:
		d.logger.WithError(err).Error("Failed to save word list")
		return fmt.Sprintf("❌ Could not save the word list: %v", err)
	case !removed:
		return fmt.Sprintf("⚠️ Word '%s' is not in the list", word)
	default:
		return fmt.Sprintf("✅ Word '%s' removed", word)
	}
}

func (d *Dispatcher) listWords(_ context.Context, _ string) string {
	words := d.words.Snapshot()
	if len(words) == 0 {
		return "📋 No words added"
	}
	lines := make([]string, len(words))
	for i, w := range words {
		lines[i] = "• " + w
	}
	return "📋 Words:\n\n" + strings.Join(lines, "\n")
}

func (d *Dispatcher) activate(_ context.Context, _ string) string {
	d.engine.Activate()
	return "✅ Engine on\nAuto-commenting is active"
}

func (d *Dispatcher) deactivate(_ context.Context, _ string) string {
	d.engine.Deactivate()
	return "❌ Engine off\nAuto-commenting is paused"
}

func (d *Dispatcher) ping(ctx context.Context, _ string) string {
	status := "off ❌"
	if d.engine.Active() {
		status = "on ✅"
	}

	start := time.Now()
	if err := d.pinger.Ping(ctx); err != nil {
		return fmt.Sprintf("🏓 Ping failed: %v\n📊 Status: %s", err, status)
	}
	ms := float64(time.Since(start).Microseconds()) / 1000
	return fmt.Sprintf("🏓 Ping: %.2f ms\n📊 Status: %s", ms, status)
}
