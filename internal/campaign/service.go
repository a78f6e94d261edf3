package campaign

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/mailblast/internal/domain"
	"github.com/ignite/mailblast/internal/pkg/logger"
	"github.com/ignite/mailblast/internal/smtp"
)

// Service orchestrates campaigns: it assigns ids, launches the engine as a
// supervised goroutine per campaign, exposes pause/resume/stop control, and
// retains final results and audit logs for retrieval after the snapshot is
// gone.
type Service struct {
	registry  *Registry
	engine    *Engine
	publisher *Publisher

	mu      sync.Mutex
	results map[string]*domain.CampaignResult
	logs    map[string][]domain.SendLogEntry
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewService wires a service around the given registry and mailer.
func NewService(registry *Registry, mailer smtp.Mailer, pollInterval time.Duration) *Service {
	return &Service{
		registry:  registry,
		engine:    NewEngine(registry, mailer),
		publisher: NewPublisher(registry, pollInterval),
		results:   make(map[string]*domain.CampaignResult),
		logs:      make(map[string][]domain.SendLogEntry),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// LaunchInput is a prepared campaign: personalized messages plus any rows
// that were rejected before sending (e.g. missing email address).
type LaunchInput struct {
	Sender   domain.Sender
	Messages []domain.RecipientMessage
	Invalid  []domain.SendOutcome
	Pacing   domain.Pacing
}

// Launch schedules the campaign and returns its id immediately; sending
// proceeds in the background.
func (s *Service) Launch(in LaunchInput) (string, error) {
	if in.Sender.Email == "" {
		return "", ErrMissingSender
	}
	if in.Pacing == (domain.Pacing{}) {
		in.Pacing = domain.DefaultPacing()
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		started := time.Now()

		outcomes := s.engine.Run(ctx, id, in.Sender, in.Messages, in.Pacing)
		s.store(id, in, outcomes, time.Since(started))

		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	return id, nil
}

// store assembles the final result and audit log once the engine returns.
func (s *Service) store(id string, in LaunchInput, outcomes []domain.SendOutcome, elapsed time.Duration) {
	all := make([]domain.SendOutcome, 0, len(in.Invalid)+len(outcomes))
	all = append(all, in.Invalid...)
	all = append(all, outcomes...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].RowNumber < all[j].RowNumber })

	result := &domain.CampaignResult{
		CampaignID:      id,
		Total:           len(in.Messages) + len(in.Invalid),
		DurationSeconds: elapsed.Seconds(),
		Pacing:          in.Pacing,
	}
	entries := make([]domain.SendLogEntry, 0, len(all))
	for _, o := range all {
		if o.Success {
			result.Succeeded++
		} else {
			result.Failed++
			result.Failures = append(result.Failures, fmt.Sprintf("Row %d: %s", o.RowNumber, o.Message))
		}
		entries = append(entries, logEntry(id, in.Sender, o))
	}

	s.mu.Lock()
	s.results[id] = result
	s.logs[id] = entries
	s.mu.Unlock()

	// Attach the result to the snapshot so stream observers can pick it up.
	s.registry.Update(id, func(snap *domain.ProgressSnapshot) {
		snap.Results = result
	})
	logger.Info("campaign results stored", "campaign_id", id, "succeeded", result.Succeeded, "failed", result.Failed)
}

func logEntry(id string, sender domain.Sender, o domain.SendOutcome) domain.SendLogEntry {
	recipient := o.Email
	subject := o.Subject
	if recipient == "" {
		recipient = "N/A"
		subject = "N/A"
	}
	status := "SUCCESS"
	errMsg := ""
	if !o.Success {
		status = "FAILED"
		errMsg = o.Message
	}
	ts := o.SentAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.SendLogEntry{
		CampaignID:  id,
		Timestamp:   ts,
		RowNumber:   o.RowNumber,
		Recipient:   recipient,
		Subject:     subject,
		Status:      status,
		ErrorMsg:    errMsg,
		SenderEmail: sender.Email,
		SenderName:  sender.Name,
	}
}

// Progress returns the current snapshot.
func (s *Service) Progress(id string) (domain.ProgressSnapshot, error) {
	snap, ok := s.registry.Snapshot(id)
	if !ok {
		return domain.ProgressSnapshot{}, ErrNotFound
	}
	return snap, nil
}

// Subscribe returns the live event stream for a campaign.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan Event, error) {
	return s.publisher.Subscribe(ctx, id)
}

// Pause suspends sending after the in-flight message.
func (s *Service) Pause(id string) error {
	if !s.registry.SetPaused(id, true) {
		return ErrNotFound
	}
	return nil
}

// Resume continues a paused campaign exactly where it left off.
func (s *Service) Resume(id string) error {
	if !s.registry.SetPaused(id, false) {
		return ErrNotFound
	}
	return nil
}

// Stop requests a cooperative stop; the in-flight message is never
// interrupted.
func (s *Service) Stop(id string) error {
	if !s.registry.SetStopped(id) {
		return ErrNotFound
	}
	return nil
}

// Result returns the stored final result.
func (s *Service) Result(id string) (*domain.CampaignResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return nil, ErrNoResult
	}
	return r, nil
}

// Log returns the stored audit entries in row order.
func (s *Service) Log(id string) ([]domain.SendLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, ok := s.logs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entries, nil
}

// RunRetention evicts completed campaign state older than maxAge every
// interval until ctx ends. Results and logs are evicted together with the
// snapshot.
func (s *Service) RunRetention(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.registry.Sweep(maxAge); n > 0 {
				logger.Info("retention sweep", "evicted", n)
			}
			s.sweepStored()
		}
	}
}

// sweepStored drops results and logs whose snapshot has been evicted.
func (s *Service) sweepStored() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.results {
		if _, live := s.registry.Snapshot(id); !live {
			delete(s.results, id)
			delete(s.logs, id)
		}
	}
}

// Shutdown cancels all running campaigns and waits for their goroutines,
// or until ctx ends.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
