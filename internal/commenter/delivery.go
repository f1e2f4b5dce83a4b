package commenter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// Policy tunes the delivery retry loop.
type Policy struct {
	// MaxAttempts bounds send calls per post, first attempt included.
	MaxAttempts int

	// InitialPause precedes the first attempt so the discussion copy of the post can appear.
	InitialPause time.Duration

	// Spacing is added before every attempt after the first, on top of the class backoff.
	Spacing time.Duration

	WriteForbiddenBackoff time.Duration
	OtherBackoff          time.Duration

	// MaxRateLimitWait aborts the loop when the backend asks for a longer wait. Zero means no cap.
	MaxRateLimitWait time.Duration
}

// DefaultPolicy is 50 attempts, 50ms initial pause, 300ms spacing,
// 1.5s after a write-forbidden failure and 0.8s after any unclassified one.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:           50,
		InitialPause:          50 * time.Millisecond,
		Spacing:               300 * time.Millisecond,
		WriteForbiddenBackoff: 1500 * time.Millisecond,
		OtherBackoff:          800 * time.Millisecond,
	}
}

// MaxAttemptsCeiling bounds MaxAttempts whatever the configuration says.
const MaxAttemptsCeiling = 50

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	p.MaxAttempts = min(p.MaxAttempts, MaxAttemptsCeiling)
	p.InitialPause = max(p.InitialPause, 0)
	p.Spacing = max(p.Spacing, 0)
	p.WriteForbiddenBackoff = max(p.WriteForbiddenBackoff, 0)
	p.OtherBackoff = max(p.OtherBackoff, 0)
	p.MaxRateLimitWait = max(p.MaxRateLimitWait, 0)
	return p
}

// Backoff is the wait between a failed attempt and the next one.
// For rate limits it is never shorter than the instructed wait.
func (p Policy) Backoff(err error) time.Duration {
	var rl *RateLimitError
	switch {
	case errors.As(err, &rl):
		return max(rl.Wait, 0) + p.Spacing
	case errors.Is(err, ErrWriteForbidden):
		return p.WriteForbiddenBackoff + p.Spacing
	default:
		return p.OtherBackoff + p.Spacing
	}
}

func (p Policy) exceedsRateLimitCap(err error) bool {
	var rl *RateLimitError
	return p.MaxRateLimitWait > 0 && errors.As(err, &rl) && rl.Wait > p.MaxRateLimitWait
}

// AttemptRecord is one send call made by the delivery loop.
type AttemptRecord struct {
	Number  int
	Class   FailureClass
	Err     error
	Backoff time.Duration // wait scheduled after this attempt; zero when none follows
}

// DeliveryOutcome is the terminal state of one delivery.
type DeliveryOutcome struct {
	Succeeded   bool
	Abandoned   bool // the context ended before a terminal result; nothing is reported
	CommentID   int
	CompletedAt time.Time
	Attempts    int
	LastError   string
	History     []AttemptRecord
}

// Deliverer runs the bounded retry loop around a CommentSender.
type Deliverer struct {
	sender  CommentSender
	policy  Policy
	logger  logging.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewDeliverer creates a deliverer. A nil metrics value disables instrumentation.
func NewDeliverer(sender CommentSender, policy Policy, logger logging.Logger, metrics *Metrics) *Deliverer {
	return &Deliverer{
		sender:  sender,
		policy:  policy.normalize(),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Deliver sends word as a comment on post, retrying until success, the attempt
// limit, a rate-limit wait above the cap, or context cancellation.
func (d *Deliverer) Deliver(ctx context.Context, thread Thread, post PostRef, word string) DeliveryOutcome {
	log := d.logger.WithFields(logging.Fields{
		"channel_id": post.ChannelID,
		"message_id": post.MessageID,
		"thread_id":  thread.ChatID,
	})

	if err := sleep(ctx, d.policy.InitialPause); err != nil {
		return DeliveryOutcome{Abandoned: true, LastError: err.Error()}
	}

	var history []AttemptRecord
	retry := retrypolicy.NewBuilder[int]().
		WithMaxAttempts(d.policy.MaxAttempts).
		HandleIf(func(_ int, err error) bool {
			return err != nil
		}).
		AbortIf(func(_ int, err error) bool {
			return d.policy.exceedsRateLimitCap(err)
		}).
		WithDelayFunc(func(exec failsafe.ExecutionAttempt[int]) time.Duration {
			return d.policy.Backoff(exec.LastError())
		}).
		ReturnLastFailure().
		Build()

	commentID, err := failsafe.With[int](retry).WithContext(ctx).Get(func() (int, error) {
		rec := AttemptRecord{Number: len(history) + 1}
		id, err := d.sender.SendComment(ctx, thread, post, word)
		rec.Class = Classify(err)
		rec.Err = err
		if err != nil && rec.Number < d.policy.MaxAttempts && !d.policy.exceedsRateLimitCap(err) {
			rec.Backoff = d.policy.Backoff(err)
		}
		history = append(history, rec)
		d.metrics.attempt(rec.Class)
		d.logAttempt(log, rec)
		return id, err
	})

	outcome := DeliveryOutcome{Attempts: len(history), History: history}
	if err == nil && len(history) > 0 && history[len(history)-1].Err == nil {
		outcome.Succeeded = true
		outcome.CommentID = commentID
		outcome.CompletedAt = d.now()
		d.metrics.delivered("success", outcome.Attempts)
		log.WithFields(logging.Fields{"attempts": outcome.Attempts, "comment_id": commentID}).Info("Comment delivered")
		return outcome
	}

	last := err
	if len(history) > 0 {
		last = history[len(history)-1].Err
	}
	if ctx.Err() != nil {
		outcome.Abandoned = true
		outcome.LastError = ctx.Err().Error()
		d.metrics.delivered("abandoned", outcome.Attempts)
		log.WithField("attempts", outcome.Attempts).Info("Delivery abandoned on shutdown")
		return outcome
	}

	outcome.LastError = Describe(last)
	if d.policy.exceedsRateLimitCap(last) {
		outcome.LastError = fmt.Sprintf("%s, above the %s limit", outcome.LastError, d.policy.MaxRateLimitWait)
	}
	d.metrics.delivered("failure", outcome.Attempts)
	log.WithFields(logging.Fields{"attempts": outcome.Attempts, "last_error": outcome.LastError}).Warn("Comment delivery failed")
	return outcome
}

func (d *Deliverer) logAttempt(log logging.Entry, rec AttemptRecord) {
	if rec.Err == nil {
		return
	}
	fields := logging.Fields{
		"attempt": rec.Number,
		"class":   rec.Class.String(),
		"backoff": rec.Backoff.String(),
	}
	switch rec.Class {
	case ClassOther:
		log.WithFields(fields).WithField("error_type", errorType(rec.Err)).WithError(rec.Err).Warn("Comment attempt failed")
	default:
		log.WithFields(fields).Debug(Describe(rec.Err))
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
