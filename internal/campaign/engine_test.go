package campaign

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailblast/internal/domain"
	"github.com/ignite/mailblast/internal/smtp"
)

// fakeSession records sent messages and can fail selected recipients or run
// a hook after each send (used to flip control flags mid-campaign).
type fakeSession struct {
	mu      sync.Mutex
	sent    []smtp.Message
	failFor map[string]error
	onSend  func(n int, m *smtp.Message)
	closed  bool
}

func (f *fakeSession) Send(m *smtp.Message) error {
	f.mu.Lock()
	f.sent = append(f.sent, *m)
	n := len(f.sent)
	hook := f.onSend
	err := f.failFor[m.To]
	f.mu.Unlock()

	if hook != nil {
		hook(n, m)
	}
	return err
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeMailer struct {
	openErr error
	session *fakeSession
}

func (f *fakeMailer) Open(context.Context) (smtp.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.session, nil
}

func newTestEngine(mailer smtp.Mailer) (*Engine, *Registry) {
	reg := NewRegistry()
	e := NewEngine(reg, mailer)
	e.settle = 0
	e.pausePoll = 5 * time.Millisecond
	return e, reg
}

func testMessages(n int) []domain.RecipientMessage {
	msgs := make([]domain.RecipientMessage, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, domain.RecipientMessage{
			Email:     fmt.Sprintf("r%d@example.com", i+1),
			Subject:   fmt.Sprintf("Subject %d", i+1),
			Body:      "<p>Hello</p>",
			RowNumber: i + 1,
		})
	}
	return msgs
}

func TestEngineAllSucceed(t *testing.T) {
	session := &fakeSession{}
	e, reg := newTestEngine(&fakeMailer{session: session})

	outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(3), domain.Pacing{BatchSize: 2})

	require.Len(t, outcomes, 3)
	for i, o := range outcomes {
		assert.True(t, o.Success)
		assert.Equal(t, fmt.Sprintf("r%d@example.com", i+1), o.Email)
	}

	snap, ok := reg.Snapshot("c1")
	require.True(t, ok)
	assert.Equal(t, 3, snap.Succeeded)
	assert.Equal(t, 0, snap.Failed)
	assert.Equal(t, 3, snap.Sent)
	assert.True(t, snap.Completed)
	assert.Equal(t, "completed", snap.Status)
	assert.True(t, session.closed)
}

func TestEngineOpenFailureFailsEverything(t *testing.T) {
	e, reg := newTestEngine(&fakeMailer{openErr: errors.New("connection refused")})

	outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(4), domain.Pacing{})

	require.Len(t, outcomes, 4)
	for _, o := range outcomes {
		assert.False(t, o.Success)
		assert.Contains(t, o.Message, "connection refused")
	}

	snap, _ := reg.Snapshot("c1")
	assert.True(t, snap.Completed)
	assert.Contains(t, snap.Error, "connection refused")
	assert.Equal(t, 4, snap.Failed)
	assert.Equal(t, 4, snap.Sent)
}

func TestEngineSendFailureIsLocal(t *testing.T) {
	session := &fakeSession{failFor: map[string]error{
		"r2@example.com": errors.New("mailbox full"),
	}}
	e, reg := newTestEngine(&fakeMailer{session: session})

	outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(3), domain.Pacing{})

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Contains(t, outcomes[1].Message, "mailbox full")
	assert.True(t, outcomes[2].Success)

	snap, _ := reg.Snapshot("c1")
	assert.Equal(t, 2, snap.Succeeded)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 3, snap.Sent)
	assert.True(t, session.closed)
}

func TestEngineStopAfterK(t *testing.T) {
	session := &fakeSession{}
	e, reg := newTestEngine(&fakeMailer{session: session})
	session.onSend = func(n int, _ *smtp.Message) {
		if n == 2 {
			reg.SetStopped("c1")
		}
	}

	outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(5), domain.Pacing{})

	// Exactly the two attempted messages appear; the rest are never sent.
	require.Len(t, outcomes, 2)
	assert.Equal(t, 2, session.sentCount())

	snap, _ := reg.Snapshot("c1")
	assert.Equal(t, 2, snap.Sent)
	assert.Equal(t, "stopped", snap.Status)
	assert.True(t, snap.Completed)
	assert.Empty(t, snap.Error)
	assert.True(t, session.closed)
}

func TestEnginePauseResume(t *testing.T) {
	session := &fakeSession{}
	e, reg := newTestEngine(&fakeMailer{session: session})
	session.onSend = func(n int, _ *smtp.Message) {
		if n == 1 {
			reg.SetPaused("c1", true)
		}
	}

	done := make(chan []domain.SendOutcome, 1)
	go func() {
		done <- e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
			testMessages(3), domain.Pacing{})
	}()

	// Wait until the engine reports paused, then verify nothing advances.
	require.Eventually(t, func() bool {
		snap, ok := reg.Snapshot("c1")
		return ok && snap.Status == "paused"
	}, time.Second, time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, session.sentCount())

	reg.SetPaused("c1", false)
	select {
	case outcomes := <-done:
		require.Len(t, outcomes, 3)
		assert.Equal(t, "r2@example.com", outcomes[1].Email)
	case <-time.After(2 * time.Second):
		t.Fatal("campaign did not resume")
	}
}

func TestEngineZeroMessages(t *testing.T) {
	e, reg := newTestEngine(&fakeMailer{session: &fakeSession{}})

	outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		nil, domain.Pacing{})

	assert.Empty(t, outcomes)
	snap, _ := reg.Snapshot("c1")
	assert.Equal(t, 0, snap.Total)
	assert.True(t, snap.Completed)
}

func TestEngineBatchSizeZeroDisablesBatching(t *testing.T) {
	for _, batch := range []int{0, -3} {
		session := &fakeSession{}
		e, reg := newTestEngine(&fakeMailer{session: session})

		outcomes := e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
			testMessages(4), domain.Pacing{BatchSize: batch, BatchDelay: time.Hour})

		require.Len(t, outcomes, 4)
		snap, _ := reg.Snapshot("c1")
		assert.True(t, snap.Completed)
	}
}

func TestEngineContextCancelStops(t *testing.T) {
	session := &fakeSession{}
	e, reg := newTestEngine(&fakeMailer{session: session})

	ctx, cancel := context.WithCancel(context.Background())
	session.onSend = func(n int, _ *smtp.Message) {
		if n == 1 {
			cancel()
		}
	}

	outcomes := e.Run(ctx, "c1", domain.Sender{Email: "from@example.com"},
		testMessages(4), domain.Pacing{MessageDelay: 10 * time.Millisecond})

	assert.Len(t, outcomes, 1)
	snap, _ := reg.Snapshot("c1")
	assert.True(t, snap.Completed)
	assert.True(t, session.closed)
}

func TestEngineCountInvariantHolds(t *testing.T) {
	session := &fakeSession{failFor: map[string]error{
		"r3@example.com": errors.New("boom"),
	}}
	e, reg := newTestEngine(&fakeMailer{session: session})

	stop := make(chan struct{})
	violations := make(chan string, 1)
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap, ok := reg.Snapshot("c1")
			if ok {
				if snap.Succeeded+snap.Failed != snap.Sent || snap.Sent > snap.Total {
					select {
					case violations <- fmt.Sprintf("bad snapshot: %+v", snap):
					default:
					}
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(6), domain.Pacing{MessageDelay: 2 * time.Millisecond})
	close(stop)

	select {
	case v := <-violations:
		t.Fatal(v)
	default:
	}
}

func TestEnginePacingWallTime(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive")
	}

	// N=4, D=30ms, B=2, K=60ms: (N-1)*D plus one batch pause after message 2
	// (the pause after message 4 is skipped as it is the last).
	const (
		n = 4
		d = 30 * time.Millisecond
		k = 60 * time.Millisecond
	)
	session := &fakeSession{}
	e, _ := newTestEngine(&fakeMailer{session: session})

	started := time.Now()
	e.Run(context.Background(), "c1", domain.Sender{Email: "from@example.com"},
		testMessages(n), domain.Pacing{MessageDelay: d, BatchSize: 2, BatchDelay: k})
	elapsed := time.Since(started)

	expected := time.Duration(n-1)*d + k
	assert.GreaterOrEqual(t, elapsed, expected-10*time.Millisecond)
	assert.Less(t, elapsed, expected+500*time.Millisecond)
}
