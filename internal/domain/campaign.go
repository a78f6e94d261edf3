package domain

import "time"

// ActivityKind classifies the most recent engine activity for UI rendering.
type ActivityKind string

const (
	ActivityInfo    ActivityKind = "info"
	ActivitySuccess ActivityKind = "success"
	ActivityWarning ActivityKind = "warning"
	ActivityError   ActivityKind = "error"
)

// RecipientMessage is one fully personalized email, ready to hand to the
// transport. RowNumber is the 1-based row in the originating CSV file; it is
// kept for error reporting only and is unrelated to send order (send order is
// slice order).
type RecipientMessage struct {
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	RowNumber int    `json:"row_number"`
}

// Pacing controls how fast a campaign drains its recipient list.
// MessageDelay is slept between consecutive sends; after every BatchSize-th
// message the engine additionally sleeps BatchDelay. BatchSize <= 0 disables
// batch pauses.
type Pacing struct {
	MessageDelay time.Duration `json:"message_delay"`
	BatchSize    int           `json:"batch_size"`
	BatchDelay   time.Duration `json:"batch_delay"`
}

// DefaultPacing returns the pacing used when the caller supplies none.
func DefaultPacing() Pacing {
	return Pacing{
		MessageDelay: 2 * time.Second,
		BatchSize:    10,
		BatchDelay:   5 * time.Second,
	}
}

// SendOutcome records one attempted (or pre-failed) recipient.
type SendOutcome struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Email     string    `json:"email"`
	RowNumber int       `json:"row_number"`
	Subject   string    `json:"subject"`
	SentAt    time.Time `json:"sent_at"`
}

// ProgressSnapshot is the live observable state of one campaign. It has a
// single writer (the owning engine) and any number of concurrent readers.
// Counts only move forward; Completed flips false->true exactly once and no
// count changes after that.
type ProgressSnapshot struct {
	Sent             int             `json:"sent"`
	Succeeded        int             `json:"succeeded"`
	Failed           int             `json:"failed"`
	Total            int             `json:"total"`
	Status           string          `json:"status"`
	Activity         string          `json:"activity"`
	ActivityKind     ActivityKind    `json:"activity_kind"`
	CurrentRecipient string          `json:"current_recipient"`
	StartedAt        time.Time       `json:"started_at"`
	Completed        bool            `json:"completed"`
	Error            string          `json:"error,omitempty"`
	Results          *CampaignResult `json:"results,omitempty"`

	// Revision increments on every write, changed or not. Observers use it
	// as a cheap check for whether anything was written since their last
	// poll before comparing values.
	Revision uint64 `json:"-"`
}

// ControlFlags are the user-intent toggles for a running campaign. They are
// set by pause/resume/stop requests and read by the engine between messages;
// last write wins.
type ControlFlags struct {
	Paused  bool `json:"paused"`
	Stopped bool `json:"stopped"`
}

// CampaignResult is the immutable final summary of a finished campaign.
type CampaignResult struct {
	CampaignID      string   `json:"campaign_id"`
	Succeeded       int      `json:"succeeded"`
	Failed          int      `json:"failed"`
	Total           int      `json:"total"`
	DurationSeconds float64  `json:"duration_seconds"`
	Failures        []string `json:"failures"`
	Pacing          Pacing   `json:"pacing"`
}

// SendLogEntry is one row of the downloadable campaign audit log.
type SendLogEntry struct {
	CampaignID  string    `json:"campaign_id"`
	Timestamp   time.Time `json:"timestamp"`
	RowNumber   int       `json:"row_number"`
	Recipient   string    `json:"recipient_email"`
	Subject     string    `json:"subject"`
	Status      string    `json:"status"`
	ErrorMsg    string    `json:"error_message"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name"`
}

// Sender identifies the From address of a campaign.
type Sender struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// String renders the sender as an RFC 5322 display form.
func (s Sender) String() string {
	if s.Name == "" {
		return s.Email
	}
	return s.Name + " <" + s.Email + ">"
}
