package ingestion

import "time"

// Status is the per-process lifecycle state:
// Pending -> Running -> {Completed | Failed}. Pending and Running may also
// reach Failed through explicit cancellation. Completed and Failed are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CancelledMessage is the fixed error message marking a user-cancelled process.
const CancelledMessage = "Process cancelled by user"

// Valid reports whether s is a known process status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Active reports whether s counts against the one-active-process-per-document
// invariant.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is set only on completed processes.
type Result struct {
	ExtractedText string    `bson:"extractedText" json:"extractedText"`
	ProcessedAt   time.Time `bson:"processedAt" json:"processedAt"`
}

// Process is one ingestion run over a document. Records are append-only
// history: they are never deleted, only driven to a terminal state.
// DocumentOwner and ContentRef are denormalized from the document at
// creation; both are immutable there, so the copies cannot go stale.
type Process struct {
	ID            string                 `bson:"_id,omitempty" json:"id"`
	DocumentID    string                 `bson:"documentId" json:"documentId"`
	DocumentOwner string                 `bson:"documentOwner" json:"-"`
	ContentRef    string                 `bson:"contentRef" json:"-"`
	Status        Status                 `bson:"status" json:"status"`
	ErrorMessage  string                 `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	Result        *Result                `bson:"result,omitempty" json:"result,omitempty"`
	Configuration map[string]interface{} `bson:"configuration,omitempty" json:"configuration,omitempty"`
	StartedAt     *time.Time             `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt   *time.Time             `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt     time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// OwnerID satisfies the access-control resource contract; process ownership
// follows the owning document.
func (p *Process) OwnerID() string { return p.DocumentOwner }

// Query carries list filters. DocumentOwner is the ownership scope applied
// for non-admin actors.
type Query struct {
	DocumentID    string
	Status        Status
	DocumentOwner string
	SortBy        string
	SortOrder     string
	Page          int
	Limit         int
}
