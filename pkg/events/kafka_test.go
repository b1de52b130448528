package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/gocomet/rider-service/pkg/logger"
)

var errPermanent = errors.New("malformed payload")

// fakeReader serves queued messages, then blocks until the context ends
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		m := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// flakyHandler fails the first failures calls with err
type flakyHandler struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (h *flakyHandler) handle(ctx context.Context, value []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if h.failures > 0 {
		h.failures--
		return h.err
	}
	return nil
}

func (h *flakyHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func startConsumer(t *testing.T, r *fakeReader, h *flakyHandler) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	c := newConsumer(r, "delivery.completed", logger.NewNop(), h.handle, func(err error) bool {
		return !errors.Is(err, errPermanent)
	})
	c.backoff = time.Millisecond
	c.maxBackoff = 4 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

// TestConsumer_CommitsAfterHandling tests offsets are committed only once the handler is done with them
func TestConsumer_CommitsAfterHandling(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
	}{
		{name: "Success first time", wantCalls: 1},
		{name: "Transient failures retried", failures: 3, err: errors.New("redis down"), wantCalls: 4},
		{name: "Permanent failure skipped", failures: 1, err: errPermanent, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeReader{messages: []kafkago.Message{{Offset: 7, Value: []byte(`{}`)}}}
			h := &flakyHandler{failures: tt.failures, err: tt.err}
			startConsumer(t, r, h)

			assert.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, time.Millisecond)
			assert.Equal(t, []int64{7}, r.commits())
			assert.Equal(t, tt.wantCalls, h.callCount())
		})
	}
}

// TestConsumer_ShutdownLeavesFailedMessageUncommitted tests a message still failing at shutdown is redelivered later
func TestConsumer_ShutdownLeavesFailedMessageUncommitted(t *testing.T) {
	r := &fakeReader{messages: []kafkago.Message{{Offset: 3}, {Offset: 4}}}
	h := &flakyHandler{failures: 1 << 30, err: errors.New("postgres down")}
	cancel, done := startConsumer(t, r, h)

	assert.Eventually(t, func() bool { return h.callCount() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, r.commits())
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Len(t, r.messages, 1, "Later messages are not fetched past a failing one")
}
