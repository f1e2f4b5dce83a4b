package commenter

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// Result is how the orchestrator disposed of one event.
type Result string

const (
	ResultIgnored         Result = "ignored" // channel not watched
	ResultInactive        Result = "inactive"
	ResultNoWords         Result = "no_words"
	ResultDuplicate       Result = "duplicate"
	ResultNoLink          Result = "no_link"
	ResultDelivered       Result = "delivered"
	ResultFailed          Result = "failed"
	ResultProcessingError Result = "processing_error"
	ResultAbandoned       Result = "abandoned"
)

// Config wires an Orchestrator.
type Config struct {
	Engine    Gate
	Channels  WatchList
	Words     WordSource
	Namer     ChannelNamer
	Resolver  *Resolver
	Deliverer *Deliverer
	Reporter  *Reporter
	Guard     ClaimGuard // optional
	Logger    logging.Logger
	Metrics   *Metrics
}

// Orchestrator drives each post event from receipt to report. Events are
// independent: each one runs in its own goroutine and nothing is shared
// between them except the read-only snapshots taken on entry.
type Orchestrator struct {
	engine    Gate
	channels  WatchList
	words     WordSource
	namer     ChannelNamer
	resolver  *Resolver
	deliverer *Deliverer
	reporter  *Reporter
	guard     ClaimGuard
	logger    logging.Logger
	metrics   *Metrics

	pick func(n int) int
	wg   sync.WaitGroup
}

// NewOrchestrator creates an orchestrator from cfg.
func NewOrchestrator(cfg Config) *Orchestrator {
	return &Orchestrator{
		engine:    cfg.Engine,
		channels:  cfg.Channels,
		words:     cfg.Words,
		namer:     cfg.Namer,
		resolver:  cfg.Resolver,
		deliverer: cfg.Deliverer,
		reporter:  cfg.Reporter,
		guard:     cfg.Guard,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		pick:      rand.IntN,
	}
}

// Dispatch handles ev in the background and returns immediately.
func (o *Orchestrator) Dispatch(ctx context.Context, ev PostEvent) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Handle(ctx, ev)
	}()
}

// Wait blocks until every dispatched event has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Handle processes ev synchronously and reports at most once.
func (o *Orchestrator) Handle(ctx context.Context, ev PostEvent) (result Result) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	log := o.logger.WithFields(logging.Fields{
		"event_id":   ev.ID,
		"channel_id": ev.ChannelID,
		"message_id": ev.MessageID,
	})
	defer func() {
		o.metrics.event(result)
		log.WithField("result", string(result)).Debug("Post event finished")
	}()

	if !o.channels.Contains(ev.ChannelID) {
		return ResultIgnored
	}
	if !o.engine.Active() {
		return ResultInactive
	}
	words := o.words.Snapshot()
	if len(words) == 0 {
		log.Warn("Word list is empty; post skipped")
		return ResultNoWords
	}
	if o.guard != nil {
		first, err := o.guard.Claim(ctx, ev.Key())
		switch {
		case err != nil:
			log.WithError(err).Warn("Duplicate guard unavailable; processing anyway")
		case !first:
			return ResultDuplicate
		}
	}

	defer func() {
		if p := recover(); p != nil {
			log.WithField("stack", string(debug.Stack())).Errorf("Panic while handling post: %v", p)
			o.reporter.ProcessingError(ctx, ev, fmt.Errorf("panic: %v", p))
			result = ResultProcessingError
		}
	}()
	return o.process(ctx, ev, words, log)
}

func (o *Orchestrator) process(ctx context.Context, ev PostEvent, words []string, log logging.Entry) Result {
	name, err := o.namer.ChannelName(ctx, ev.ChannelID)
	if err != nil {
		if ctx.Err() != nil {
			return ResultAbandoned
		}
		log.WithError(err).Warn("Channel lookup failed")
		o.reporter.ProcessingError(ctx, ev, err)
		return ResultProcessingError
	}

	res := o.resolver.Resolve(ctx, ev.ChannelID)
	thread, ok := res.Thread()
	if !ok {
		if ctx.Err() != nil {
			return ResultAbandoned
		}
		if cause := res.Cause(); cause != nil {
			log = log.WithField("lookup_error", cause.Error())
		}
		log.Info("Channel has no linked discussion group")
		o.reporter.NoLink(ctx, ev, name)
		return ResultNoLink
	}

	word := words[o.pick(len(words))]
	out := o.deliverer.Deliver(ctx, thread, ev.Ref(), word)
	if out.Abandoned {
		return ResultAbandoned
	}
	o.reporter.Outcome(ctx, ev, name, thread, word, out)
	if out.Succeeded {
		return ResultDelivered
	}
	return ResultFailed
}
