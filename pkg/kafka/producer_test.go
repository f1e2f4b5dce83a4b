package kafka

import (
	"testing"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(nil, "thipoself", nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}

func TestNewProducerIsLazy(t *testing.T) {
	// kgo does not dial until the first request, so construction succeeds offline.
	p, err := NewProducer([]string{"127.0.0.1:1"}, "thipoself", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
