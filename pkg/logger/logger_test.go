package logger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]DigestEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]DigestEntry))
	return nil
}

func (p *capturePublisher) snapshot() [][]DigestEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]DigestEntry(nil), p.batches...)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestDigestFoldsRepeatedLines(t *testing.T) {
	pub := &capturePublisher{}
	log := NewNop()
	log.AttachDigest(&DigestConfig{Interval: time.Hour, Topic: "digest", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Warn("upstream slow", String("provider", "bls"))
	}
	log.Error("decode failed")
	log.Info("not recorded")
	log.DetachDigest()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"digest"}, pub.topics)

	batch := batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "upstream slow", batch[0].Message)
	assert.Equal(t, "warn", batch[0].Level)
	assert.Equal(t, 3, batch[0].Count)
	assert.Equal(t, "bls", batch[0].Fields["provider"])
	assert.Equal(t, "decode failed", batch[1].Message)
	assert.Equal(t, 1, batch[1].Count)
}

func TestDigestFlushesAtMaxDistinct(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDigest(&DigestConfig{Interval: time.Hour, MaxDistinct: 2, Publisher: pub})
	defer d.Close()

	for i := 0; i < 2; i++ {
		d.Add("error", fmt.Sprintf("failure %d", i), nil, "x.go:1")
	}
	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, pub.snapshot()[0], 2)
}

func TestChildLoggerSharesDigest(t *testing.T) {
	pub := &capturePublisher{}
	log := NewNop()
	log.AttachDigest(&DigestConfig{Interval: time.Hour, Publisher: pub})

	log.With(String("session", "s1")).Warn("drag cancelled")
	log.DetachDigest()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	assert.Equal(t, "drag cancelled", batches[0][0].Message)
}
