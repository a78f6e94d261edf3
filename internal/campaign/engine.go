package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/mailblast/internal/domain"
	"github.com/ignite/mailblast/internal/pkg/logger"
	"github.com/ignite/mailblast/internal/smtp"
)

// Engine drives a campaign's recipient list through a single transport
// session. It is stateless across campaigns; all per-campaign state lives in
// the Registry under the campaign id.
type Engine struct {
	registry *Registry
	mailer   smtp.Mailer

	// pausePoll is how often the paused-flag is rechecked while paused.
	pausePoll time.Duration
	// settle is slept between publishing the final 100% snapshot and
	// flipping Completed, so observers see the terminal counts before the
	// terminal event.
	settle time.Duration
}

// NewEngine creates an engine writing to the given registry and sending
// through the given mailer.
func NewEngine(registry *Registry, mailer smtp.Mailer) *Engine {
	return &Engine{
		registry:  registry,
		mailer:    mailer,
		pausePoll: time.Second,
		settle:    500 * time.Millisecond,
	}
}

// Run executes one campaign to completion and returns the outcome for every
// attempted message, in input order. Messages after a stop request are never
// attempted and produce no outcome. Run never panics past its boundary:
// every fault becomes recorded outcomes and a terminal snapshot error.
func (e *Engine) Run(ctx context.Context, id string, sender domain.Sender, msgs []domain.RecipientMessage, pacing domain.Pacing) []domain.SendOutcome {
	e.registry.Register(id, len(msgs))
	logger.Info("campaign started", "campaign_id", id, "total", len(msgs))

	if len(msgs) == 0 {
		e.finish(id, "completed", "No recipients to send to", domain.ActivityInfo)
		return []domain.SendOutcome{}
	}

	session, err := e.mailer.Open(ctx)
	if err != nil {
		logger.Error("connection failed", "campaign_id", id, "error", err)
		outcomes := failAll(msgs, err)
		e.registry.Update(id, func(s *domain.ProgressSnapshot) {
			s.Sent = s.Total
			s.Failed = s.Total
			s.Status = "failed"
			s.Activity = "Connection failed: " + err.Error()
			s.ActivityKind = domain.ActivityError
			s.Error = err.Error()
		})
		e.complete(id)
		return outcomes
	}
	defer session.Close()

	outcomes := make([]domain.SendOutcome, 0, len(msgs))
	next := 0 // index of the first message not yet attempted
	var fault error

	func() {
		defer func() {
			if r := recover(); r != nil {
				fault = fmt.Errorf("campaign aborted: %v", r)
			}
		}()
		next = e.loop(ctx, id, session, sender, msgs, pacing, &outcomes)
	}()

	if fault != nil {
		// Unattempted messages from the fault point become failures.
		logger.Error("campaign fault", "campaign_id", id, "error", fault)
		for _, m := range msgs[len(outcomes):] {
			outcomes = append(outcomes, failOutcome(m, fault))
		}
		e.registry.Update(id, func(s *domain.ProgressSnapshot) {
			s.Sent = s.Total
			s.Failed = s.Total - s.Succeeded
			s.Status = "failed"
			s.Activity = fault.Error()
			s.ActivityKind = domain.ActivityError
			s.Error = fault.Error()
		})
		e.complete(id)
		return outcomes
	}

	if next < len(msgs) {
		// Cooperative stop: remaining messages are simply never attempted.
		logger.Info("campaign stopped", "campaign_id", id, "attempted", next, "total", len(msgs))
		e.finish(id, "stopped", fmt.Sprintf("Stopped after %d of %d emails", next, len(msgs)), domain.ActivityWarning)
		return outcomes
	}

	e.registry.Update(id, func(s *domain.ProgressSnapshot) {
		s.Sent = s.Total
		s.CurrentRecipient = ""
	})
	e.finish(id, "completed",
		fmt.Sprintf("Campaign completed: %d sent, %d failed", countSucceeded(outcomes), len(outcomes)-countSucceeded(outcomes)),
		domain.ActivitySuccess)
	logger.Info("campaign completed", "campaign_id", id, "succeeded", countSucceeded(outcomes), "failed", len(outcomes)-countSucceeded(outcomes))
	return outcomes
}

// loop walks the recipient list. It returns the index of the first message
// that was not attempted (len(msgs) on a full run).
func (e *Engine) loop(ctx context.Context, id string, session smtp.Session, sender domain.Sender, msgs []domain.RecipientMessage, pacing domain.Pacing, outcomes *[]domain.SendOutcome) int {
	for i, m := range msgs {
		if !e.waitWhilePaused(ctx, id) {
			return i
		}
		if flags, ok := e.registry.Flags(id); !ok || flags.Stopped || ctx.Err() != nil {
			return i
		}

		e.registry.Update(id, func(s *domain.ProgressSnapshot) {
			s.Status = "sending"
			s.CurrentRecipient = m.Email
			s.Activity = fmt.Sprintf("Sending to %s (%d/%d)", m.Email, i+1, len(msgs))
			s.ActivityKind = domain.ActivityInfo
		})

		err := session.Send(&smtp.Message{
			From:     sender.Email,
			FromName: sender.Name,
			To:       m.Email,
			Subject:  m.Subject,
			HTML:     m.Body,
		})

		if err != nil {
			*outcomes = append(*outcomes, failOutcome(m, err))
			logger.Warn("send failed", "campaign_id", id, "recipient", m.Email, "row", m.RowNumber, "error", err)
		} else {
			*outcomes = append(*outcomes, domain.SendOutcome{
				Success:   true,
				Message:   "Email sent successfully",
				Email:     m.Email,
				RowNumber: m.RowNumber,
				Subject:   m.Subject,
				SentAt:    time.Now(),
			})
		}
		e.registry.Update(id, func(s *domain.ProgressSnapshot) {
			s.Sent++
			if err != nil {
				s.Failed++
				s.Activity = fmt.Sprintf("Failed to send to %s: %v", m.Email, err)
				s.ActivityKind = domain.ActivityError
			} else {
				s.Succeeded++
				s.Activity = fmt.Sprintf("Sent to %s", m.Email)
				s.ActivityKind = domain.ActivitySuccess
			}
		})

		if i == len(msgs)-1 {
			break
		}
		if !sleepCtx(ctx, pacing.MessageDelay) {
			return i + 1
		}
		if pacing.BatchSize > 0 && (i+1)%pacing.BatchSize == 0 {
			e.registry.Update(id, func(s *domain.ProgressSnapshot) {
				s.Status = "batch pause"
				s.Activity = fmt.Sprintf("Pausing %s between batches", pacing.BatchDelay)
				s.ActivityKind = domain.ActivityInfo
			})
			if !sleepCtx(ctx, pacing.BatchDelay) {
				return i + 1
			}
		}
	}
	return len(msgs)
}

// waitWhilePaused blocks while the campaign is paused, republishing the
// paused status on each poll. Returns false if the context ended while
// waiting.
func (e *Engine) waitWhilePaused(ctx context.Context, id string) bool {
	for {
		flags, ok := e.registry.Flags(id)
		if !ok || !flags.Paused || flags.Stopped {
			return true
		}
		e.registry.Update(id, func(s *domain.ProgressSnapshot) {
			s.Status = "paused"
			s.Activity = "Campaign paused"
			s.ActivityKind = domain.ActivityWarning
		})
		if !sleepCtx(ctx, e.pausePoll) {
			return false
		}
	}
}

// finish publishes the terminal status, lets observers catch the 100% state,
// then flips Completed.
func (e *Engine) finish(id, status, activity string, kind domain.ActivityKind) {
	e.registry.Update(id, func(s *domain.ProgressSnapshot) {
		s.Status = status
		s.Activity = activity
		s.ActivityKind = kind
		s.CurrentRecipient = ""
	})
	e.complete(id)
}

func (e *Engine) complete(id string) {
	time.Sleep(e.settle)
	e.registry.Update(id, func(s *domain.ProgressSnapshot) {
		s.Completed = true
	})
}

// sleepCtx sleeps for d unless the context ends first. Returns false when
// the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func failOutcome(m domain.RecipientMessage, err error) domain.SendOutcome {
	return domain.SendOutcome{
		Success:   false,
		Message:   err.Error(),
		Email:     m.Email,
		RowNumber: m.RowNumber,
		Subject:   m.Subject,
		SentAt:    time.Now(),
	}
}

func failAll(msgs []domain.RecipientMessage, err error) []domain.SendOutcome {
	outcomes := make([]domain.SendOutcome, 0, len(msgs))
	for _, m := range msgs {
		outcomes = append(outcomes, failOutcome(m, err))
	}
	return outcomes
}

func countSucceeded(outcomes []domain.SendOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
