package campaign

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailblast/internal/domain"
)

func newTestService(mailer *fakeMailer) *Service {
	s := NewService(NewRegistry(), mailer, 2*time.Millisecond)
	s.engine.settle = 0
	s.engine.pausePoll = 5 * time.Millisecond
	return s
}

func waitForResult(t *testing.T, s *Service, id string) *domain.CampaignResult {
	t.Helper()
	var result *domain.CampaignResult
	require.Eventually(t, func() bool {
		r, err := s.Result(id)
		if err != nil {
			return false
		}
		result = r
		return true
	}, 2*time.Second, 2*time.Millisecond)
	return result
}

func TestServiceLaunchReturnsImmediately(t *testing.T) {
	s := newTestService(&fakeMailer{session: &fakeSession{}})

	started := time.Now()
	id, err := s.Launch(LaunchInput{
		Sender:   domain.Sender{Email: "from@example.com"},
		Messages: testMessages(3),
		Pacing:   domain.Pacing{MessageDelay: 50 * time.Millisecond},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Less(t, time.Since(started), 40*time.Millisecond)

	// The snapshot is registered promptly even though sending continues.
	require.Eventually(t, func() bool {
		_, err := s.Progress(id)
		return err == nil
	}, time.Second, time.Millisecond)

	waitForResult(t, s, id)
}

func TestServiceRequiresSender(t *testing.T) {
	s := newTestService(&fakeMailer{session: &fakeSession{}})
	_, err := s.Launch(LaunchInput{Messages: testMessages(1)})
	assert.ErrorIs(t, err, ErrMissingSender)
}

func TestServiceResultIncludesInvalidRows(t *testing.T) {
	session := &fakeSession{failFor: map[string]error{
		"r2@example.com": errors.New("mailbox full"),
	}}
	s := newTestService(&fakeMailer{session: session})

	id, err := s.Launch(LaunchInput{
		Sender:   domain.Sender{Email: "from@example.com", Name: "Ops"},
		Messages: testMessages(3),
		Invalid: []domain.SendOutcome{
			{Success: false, Message: "Missing email address", RowNumber: 4},
		},
		Pacing: domain.Pacing{MessageDelay: time.Millisecond},
	})
	require.NoError(t, err)

	result := waitForResult(t, s, id)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.Contains(t, result.Failures, "Row 2: mailbox full")
	assert.Contains(t, result.Failures, "Row 4: Missing email address")

	entries, err := s.Log(id)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	// Row order, with N/A for the row that never had an address.
	assert.Equal(t, 1, entries[0].RowNumber)
	assert.Equal(t, "N/A", entries[3].Recipient)
	assert.Equal(t, "FAILED", entries[3].Status)
	assert.Equal(t, "Ops", entries[0].SenderName)
}

func TestServiceControlUnknownCampaign(t *testing.T) {
	s := newTestService(&fakeMailer{session: &fakeSession{}})

	assert.ErrorIs(t, s.Pause("nope"), ErrNotFound)
	assert.ErrorIs(t, s.Resume("nope"), ErrNotFound)
	assert.ErrorIs(t, s.Stop("nope"), ErrNotFound)
	_, err := s.Result("nope")
	assert.ErrorIs(t, err, ErrNoResult)
	_, err = s.Log("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Progress("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServiceStopShortensResult(t *testing.T) {
	session := &fakeSession{}
	s := newTestService(&fakeMailer{session: session})

	id, err := s.Launch(LaunchInput{
		Sender:   domain.Sender{Email: "from@example.com"},
		Messages: testMessages(10),
		Pacing:   domain.Pacing{MessageDelay: 20 * time.Millisecond},
	})
	require.NoError(t, err)

	// Let a couple of messages go out, then stop.
	require.Eventually(t, func() bool {
		snap, err := s.Progress(id)
		return err == nil && snap.Sent >= 2
	}, 2*time.Second, time.Millisecond)
	require.NoError(t, s.Stop(id))

	result := waitForResult(t, s, id)
	assert.Less(t, result.Succeeded+result.Failed, 10)

	snap, err := s.Progress(id)
	require.NoError(t, err)
	assert.Equal(t, "stopped", snap.Status)
}

func TestServiceSubscribeDeliversTerminalEvent(t *testing.T) {
	s := newTestService(&fakeMailer{session: &fakeSession{}})

	id, err := s.Launch(LaunchInput{
		Sender:   domain.Sender{Email: "from@example.com"},
		Messages: testMessages(2),
		Pacing:   domain.Pacing{MessageDelay: time.Millisecond},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := s.Progress(id)
		return err == nil
	}, time.Second, time.Millisecond)

	ch, err := s.Subscribe(context.Background(), id)
	require.NoError(t, err)

	events := collectEvents(t, ch, 2*time.Second)
	require.NotEmpty(t, events)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestServiceShutdownCancelsRunning(t *testing.T) {
	session := &fakeSession{}
	s := newTestService(&fakeMailer{session: session})

	_, err := s.Launch(LaunchInput{
		Sender:   domain.Sender{Email: "from@example.com"},
		Messages: testMessages(100),
		Pacing:   domain.Pacing{MessageDelay: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
