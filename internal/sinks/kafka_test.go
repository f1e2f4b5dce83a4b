package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thipowin/ThipoSelf/internal/commenter"
)

type captureProducer struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
	err     error
}

func (p *captureProducer) Produce(_ context.Context, topic string, key, value []byte, headers map[string]string) error {
	p.topic, p.key, p.value, p.headers = topic, key, value, headers
	return p.err
}

func TestKafkaSinkPublishesReport(t *testing.T) {
	p := &captureProducer{}
	sink := NewKafkaSink(p, "thipoself_reports")

	err := sink.Deliver(context.Background(), commenter.Report{
		Kind:        commenter.ReportSuccess,
		EventID:     "evt-1",
		ChannelID:   -1001234567890,
		CommentLink: "https://t.me/c/555/77",
		Attempts:    2,
		Text:        "✅",
	})
	require.NoError(t, err)

	assert.Equal(t, "thipoself_reports", p.topic)
	assert.Equal(t, "evt-1", string(p.key))
	assert.Equal(t, "success", p.headers["kind"])
	assert.Equal(t, "-1001234567890", p.headers["channel_id"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(p.value, &body))
	assert.Equal(t, "https://t.me/c/555/77", body["comment_link"])
	assert.EqualValues(t, 2, body["attempts"])
	assert.NotContains(t, body, "commented_at")
}

func TestKafkaSinkSurfacesProducerError(t *testing.T) {
	sink := NewKafkaSink(&captureProducer{err: errors.New("no brokers")}, "t")
	err := sink.Deliver(context.Background(), commenter.Report{Kind: commenter.ReportNoLink})
	assert.EqualError(t, err, "no brokers")
}
