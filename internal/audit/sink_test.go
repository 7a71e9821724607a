package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/deployd/internal/config"
	"github.com/fyrsmithlabs/deployd/internal/logging"
)

type capturePublisher struct {
	mu       sync.Mutex
	failures int
	messages []capturedMessage
}

type capturedMessage struct {
	subject string
	data    []byte
}

func (p *capturePublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failures > 0 {
		p.failures--
		return errors.New("nats: connection closed")
	}
	p.messages = append(p.messages, capturedMessage{subject: subject, data: data})
	return nil
}

func (p *capturePublisher) captured() []capturedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capturedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{
		SubjectPrefix: "deployd.audit",
		FlushTimeout:  config.Duration(100 * time.Millisecond),
		BufferSize:    16,
		RetryInterval: config.Duration(10 * time.Millisecond),
	}
}

func waitForMessages(t *testing.T, pub *capturePublisher, n int) []capturedMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := pub.captured(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d published messages", n)
	return nil
}

func TestService_PublishesToSubject(t *testing.T) {
	pub := &capturePublisher{}
	svc, err := NewService(pub, logging.NewNop(), testAuditConfig())
	require.NoError(t, err)
	defer svc.Close(context.Background())

	svc.Emit(context.Background(), Event{
		SessionID: "sess-1",
		Stage:     "execution",
		Tool:      "launch_ec2",
		Status:    StatusSuccess,
	})

	msgs := waitForMessages(t, pub, 1)
	assert.Equal(t, "deployd.audit.sess-1.success", msgs[0].subject)

	var event Event
	require.NoError(t, json.Unmarshal(msgs[0].data, &event))
	assert.Equal(t, uint64(1), event.Seq)
	assert.Equal(t, "launch_ec2", event.Tool)
	assert.False(t, event.Timestamp.IsZero())
}

func TestService_SequenceIsGapless(t *testing.T) {
	pub := &capturePublisher{}
	svc, err := NewService(pub, logging.NewNop(), testAuditConfig())
	require.NoError(t, err)
	defer svc.Close(context.Background())

	for i := 0; i < 10; i++ {
		svc.Emit(context.Background(), Event{SessionID: "sess-1", Stage: "intake", Status: StatusSuccess})
	}
	svc.Emit(context.Background(), Event{SessionID: "sess-2", Stage: "intake", Status: StatusSuccess})

	msgs := waitForMessages(t, pub, 11)

	seqs := map[string][]uint64{}
	for _, m := range msgs {
		var event Event
		require.NoError(t, json.Unmarshal(m.data, &event))
		seqs[event.SessionID] = append(seqs[event.SessionID], event.Seq)
	}

	require.Len(t, seqs["sess-1"], 10)
	for i, seq := range seqs["sess-1"] {
		assert.Equal(t, uint64(i+1), seq)
	}
	assert.Equal(t, []uint64{1}, seqs["sess-2"])
}

func TestService_RetriesOnSinkUnavailability(t *testing.T) {
	pub := &capturePublisher{failures: 3}
	svc, err := NewService(pub, logging.NewNop(), testAuditConfig())
	require.NoError(t, err)
	defer svc.Close(context.Background())

	svc.Emit(context.Background(), Event{SessionID: "sess-1", Stage: "dry_run", Status: StatusFailure})

	msgs := waitForMessages(t, pub, 1)
	assert.Equal(t, "deployd.audit.sess-1.failure", msgs[0].subject)
}

func TestService_EmitAfterClose(t *testing.T) {
	pub := &capturePublisher{}
	svc, err := NewService(pub, logging.NewNop(), testAuditConfig())
	require.NoError(t, err)
	require.NoError(t, svc.Close(context.Background()))

	// Must not panic or publish.
	svc.Emit(context.Background(), Event{SessionID: "sess-1", Status: StatusSuccess})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, pub.captured())
}

func TestNewService_RequiresPublisher(t *testing.T) {
	_, err := NewService(nil, logging.NewNop(), testAuditConfig())
	require.Error(t, err)
}

func TestMemory_SequencesPerSession(t *testing.T) {
	sink := NewMemory()

	sink.Emit(context.Background(), Event{SessionID: "a", Status: StatusSuccess})
	sink.Emit(context.Background(), Event{SessionID: "a", Status: StatusFailure})
	sink.Emit(context.Background(), Event{SessionID: "b", Status: StatusSuccess})

	a := sink.BySession("a")
	require.Len(t, a, 2)
	assert.Equal(t, uint64(1), a[0].Seq)
	assert.Equal(t, uint64(2), a[1].Seq)

	b := sink.BySession("b")
	require.Len(t, b, 1)
	assert.Equal(t, uint64(1), b[0].Seq)
}

func TestEvent_LatencySerializesAsMilliseconds(t *testing.T) {
	raw, err := json.Marshal(Event{
		SessionID: "sess-1",
		Seq:       1,
		Tool:      "invoke_lambda",
		Status:    StatusSuccess,
		LatencyMS: (1500 * time.Millisecond).Milliseconds(),
	})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"latency_ms":1500`)
}
