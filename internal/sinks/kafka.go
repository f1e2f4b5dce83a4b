// Package sinks holds report destinations other than the operator's chat.
package sinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thipowin/ThipoSelf/internal/commenter"
)

// Producer is the slice of pkg/kafka.Producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaSink publishes every report as a JSON record keyed by event id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Deliver(ctx context.Context, r commenter.Report) error {
	value, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	headers := map[string]string{
		"kind":       string(r.Kind),
		"channel_id": fmt.Sprint(r.ChannelID),
	}
	return s.producer.Produce(ctx, s.topic, []byte(r.EventID), value, headers)
}
