package commenter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/thipowin/ThipoSelf/pkg/logging"
)

// ReportKind names the terminal state a report describes.
type ReportKind string

const (
	ReportNoLink          ReportKind = "no_link"
	ReportSuccess         ReportKind = "success"
	ReportFailure         ReportKind = "failure"
	ReportProcessingError ReportKind = "processing_error"
)

// Report is one operator notification. Text is the rendered message; the
// other fields travel to structured sinks.
type Report struct {
	Kind        ReportKind `json:"kind"`
	EventID     string     `json:"event_id"`
	ChannelID   int64      `json:"channel_id"`
	MessageID   int        `json:"message_id"`
	ChannelName string     `json:"channel_name,omitempty"`
	PostLink    string     `json:"post_link,omitempty"`
	PostedAt    time.Time  `json:"posted_at,omitzero"`
	ReceivedAt  time.Time  `json:"received_at,omitzero"`
	CommentLink string     `json:"comment_link,omitempty"`
	CommentedAt time.Time  `json:"commented_at,omitzero"`
	Comment     string     `json:"comment,omitempty"`
	Attempts    int        `json:"attempts,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Text        string     `json:"text"`
}

// Sink receives operator reports.
type Sink interface {
	Deliver(ctx context.Context, r Report) error
}

// Reporter renders reports and hands them to every sink. Sink failures are
// logged and dropped; they never affect processing.
type Reporter struct {
	sinks   []Sink
	loc     *time.Location
	timeout time.Duration
	logger  logging.Logger
	metrics *Metrics
}

// NewReporter creates a reporter that renders times in loc (UTC when nil).
func NewReporter(loc *time.Location, logger logging.Logger, metrics *Metrics, sinks ...Sink) *Reporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{
		sinks:   sinks,
		loc:     loc,
		timeout: 15 * time.Second,
		logger:  logger,
		metrics: metrics,
	}
}

// Clock renders t as HH:MM:SS:mmm in the reporter's zone.
func (r *Reporter) Clock(t time.Time) string {
	return FormatClock(t, r.loc)
}

// FormatClock renders t as HH:MM:SS:mmm in loc.
func FormatClock(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return fmt.Sprintf("%s:%03d", t.Format("15:04:05"), t.Nanosecond()/int(time.Millisecond))
}

// NoLink reports a post whose channel has no discussion thread.
func (r *Reporter) NoLink(ctx context.Context, ev PostEvent, channelName string) {
	rep := r.base(ReportNoLink, ev, channelName)
	var b strings.Builder
	b.WriteString("⚠️ Comment report: failed\n\n")
	r.writePost(&b, rep)
	b.WriteString("❌ Status: failed, the channel has no linked discussion group\n")
	rep.Text = b.String()
	r.emit(ctx, rep)
}

// Outcome reports a finished delivery.
func (r *Reporter) Outcome(ctx context.Context, ev PostEvent, channelName string, thread Thread, word string, out DeliveryOutcome) {
	var b strings.Builder
	if out.Succeeded {
		rep := r.base(ReportSuccess, ev, channelName)
		rep.CommentLink = thread.CommentLink(out.CommentID)
		rep.CommentedAt = out.CompletedAt
		rep.Comment = word
		rep.Attempts = out.Attempts

		b.WriteString("✅ Comment report: delivered\n\n")
		r.writePost(&b, rep)
		fmt.Fprintf(&b, "⏰ Comment time: %s\n", r.Clock(rep.CommentedAt))
		fmt.Fprintf(&b, "💬 Comment: %s\n", rep.CommentLink)
		fmt.Fprintf(&b, "🔄 Attempts: %d\n", rep.Attempts)
		b.WriteString("✅ Status: delivered\n")
		rep.Text = b.String()
		r.emit(ctx, rep)
		return
	}

	rep := r.base(ReportFailure, ev, channelName)
	rep.Comment = word
	rep.Attempts = out.Attempts
	rep.LastError = out.LastError

	b.WriteString("⚠️ Comment report: failed\n\n")
	r.writePost(&b, rep)
	fmt.Fprintf(&b, "🔄 Attempts: %d\n", rep.Attempts)
	if rep.LastError != "" {
		fmt.Fprintf(&b, "⚠️ Last error: %s\n", rep.LastError)
	}
	b.WriteString("❌ Status: failed\n")
	rep.Text = b.String()
	r.emit(ctx, rep)
}

// ProcessingError reports an unexpected failure while handling ev.
func (r *Reporter) ProcessingError(ctx context.Context, ev PostEvent, cause error) {
	rep := r.base(ReportProcessingError, ev, "")
	rep.PostLink = ""
	rep.LastError = cause.Error()

	var b strings.Builder
	b.WriteString("❌ Processing error\n\n")
	fmt.Fprintf(&b, "📢 Channel: %d\n", ev.ChannelID)
	fmt.Fprintf(&b, "⏰ Time: %s\n", r.Clock(ev.ReceivedAt))
	fmt.Fprintf(&b, "⚠️ Error: %s\n", rep.LastError)
	rep.Text = b.String()
	r.emit(ctx, rep)
}

func (r *Reporter) base(kind ReportKind, ev PostEvent, channelName string) Report {
	return Report{
		Kind:        kind,
		EventID:     ev.ID,
		ChannelID:   ev.ChannelID,
		MessageID:   ev.MessageID,
		ChannelName: channelName,
		PostLink:    ev.Ref().Link(),
		PostedAt:    ev.PostedAt,
		ReceivedAt:  ev.ReceivedAt,
	}
}

func (r *Reporter) writePost(b *strings.Builder, rep Report) {
	fmt.Fprintf(b, "📢 Channel: %s\n", rep.ChannelName)
	fmt.Fprintf(b, "🔗 Post: %s\n", rep.PostLink)
	fmt.Fprintf(b, "⏰ Post time: %s\n", r.Clock(rep.ReceivedAt))
}

func (r *Reporter) emit(ctx context.Context, rep Report) {
	log := r.logger.WithFields(logging.Fields{
		"event_id":   rep.EventID,
		"channel_id": rep.ChannelID,
		"kind":       string(rep.Kind),
	})
	if len(r.sinks) == 0 {
		log.Warn("No report sinks configured; report dropped")
		return
	}
	for _, sink := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, r.timeout)
		err := sink.Deliver(sctx, rep)
		cancel()
		r.metrics.report(rep.Kind, err == nil)
		if err != nil {
			log.WithError(err).WithField("sink", fmt.Sprintf("%T", sink)).Warn("Failed to deliver report")
		}
	}
}
