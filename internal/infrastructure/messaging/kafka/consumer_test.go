package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/DrugEx/internal/testutil"
	"github.com/turtacn/DrugEx/pkg/errors"
)

// fakeReader hands out queued messages, then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "drugex-worker",
		Topics:  []string{"drugex.training.epoch"},
		RetryConfig: RetryConfig{
			MaxRetries:   2,
			RetryBackoff: time.Millisecond,
			DeadLetter:   true,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	for name, mutate := range map[string]func(*ConsumerConfig){
		"brokers": func(c *ConsumerConfig) { c.Brokers = nil },
		"group":   func(c *ConsumerConfig) { c.GroupID = "" },
		"topics":  func(c *ConsumerConfig) { c.Topics = nil },
		"offset":  func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		"retries": func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 },
	} {
		cfg := newTestConsumerConfig()
		mutate(&cfg)
		assert.True(t, errors.IsCode(ValidateConsumerConfig(cfg), errors.ErrCodeValidation), name)
	}
}

func TestConsumer_ProcessesAndCommits(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{
		{Topic: "drugex.training.epoch", Offset: 1, Value: []byte("a"), Headers: []kafka.Header{{Key: "run_id", Value: []byte("r1")}}},
		{Topic: "drugex.training.epoch", Offset: 2, Value: []byte("b")},
	}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)

	var mu sync.Mutex
	var seen []string
	c.Subscribe("drugex.training.epoch", func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, string(msg.Value)+":"+msg.Headers["run_id"])
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"a:r1", "b:"}, seen)
	assert.True(t, reader.closed)
	assert.Equal(t, int64(2), c.GetMetrics().MessagesProcessed)
}

func TestConsumer_RetryThenSucceed(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Topic: "drugex.training.epoch", Value: []byte("a")}}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)

	calls := 0
	c.Subscribe("drugex.training.epoch", func(context.Context, *Message) error {
		calls++
		if calls < 2 {
			return stderrors.New("db down")
		}
		return nil
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	m := c.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesRetried)
	assert.Equal(t, int64(1), m.MessagesProcessed)
	assert.Zero(t, m.MessagesDeadLettered)
}

func TestConsumer_DeadLettersExhausted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{
		Topic:   "drugex.training.epoch",
		Key:     []byte("run-1"),
		Value:   []byte("poison"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte("training.epoch.completed")}},
	}}}
	dlq := &fakePublisher{}
	logger := testutil.NewMockLogger()
	c := newConsumer(reader, newTestConsumerConfig(), dlq, logger)

	calls := 0
	c.Subscribe("drugex.training.epoch", func(context.Context, *Message) error {
		calls++
		return stderrors.New("bad payload")
	})

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, "drugex.training.epoch.dlq", dl.Topic)
	assert.Equal(t, []byte("run-1"), dl.Key)
	assert.Equal(t, "drugex.training.epoch", dl.Headers["original_topic"])
	assert.Equal(t, "bad payload", dl.Headers["error_message"])
	assert.Equal(t, "training.epoch.completed", dl.Headers["event_type"])
	assert.True(t, logger.HasMessage("error", "Message processing failed after retries"))

	m := c.GetMetrics()
	assert.Equal(t, int64(1), m.MessagesFailed)
	assert.Equal(t, int64(1), m.MessagesDeadLettered)
}

func TestConsumer_UnhandledTopicIsCommitted(t *testing.T) {
	reader := &fakeReader{queue: []kafka.Message{{Topic: "other", Value: []byte("x")}}}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return reader.commits() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.Equal(t, int64(1), c.GetMetrics().MessagesConsumed)
}

func TestConsumer_CloseWithoutStart(t *testing.T) {
	reader := &fakeReader{}
	c := newConsumer(reader, newTestConsumerConfig(), nil, nil)
	assert.NoError(t, c.Close())
	assert.False(t, reader.closed)
}

//Personal.AI order the ending
