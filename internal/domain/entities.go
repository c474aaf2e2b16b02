// Package domain defines core entities, ports, and domain-specific errors.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels). Callers use errors.Is/errors.As; adapters wrap
// with op=<component>.<action>: %w.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrRaceLost        = errors.New("claim race lost")
	ErrCircuitOpen     = errors.New("circuit open")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNoLoader        = errors.New("no loader for job type")
	ErrInternal        = errors.New("internal error")
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// JobStatus captures the lifecycle state of a dispatched job.
type JobStatus string

// Job status values. Transitions: pending -> claimed -> running -> (completed|failed).
const (
	JobPending   JobStatus = "pending"
	JobClaimed   JobStatus = "claimed"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one unit of work: one loader run over one input source.
type Job struct {
	JobID       string
	JobType     string
	Config      map[string]any
	Status      JobStatus
	WorkerID    *string
	Checkpoint  map[string]any
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
	ErrorMessage *string
}

// WorkerStatus captures worker liveness as reported by its own heartbeat.
type WorkerStatus string

const (
	WorkerActive WorkerStatus = "active"
	WorkerIdle   WorkerStatus = "idle"
	WorkerDead   WorkerStatus = "dead"
)

// Worker is a stateless process that claims and executes jobs.
type Worker struct {
	WorkerID      string
	Hostname      string
	Status        WorkerStatus
	Capabilities  []string
	LastHeartbeat time.Time
}

// Live reports whether the worker's last heartbeat is within deadline.
func (w Worker) Live(now time.Time, deadline time.Duration) bool {
	return now.Sub(w.LastHeartbeat) < deadline
}

// SourceStatus captures the lifecycle of a registered input file.
type SourceStatus string

const (
	SourceProcessing SourceStatus = "processing"
	SourceCompleted  SourceStatus = "completed"
	SourceFailed     SourceStatus = "failed"
)

// Source is a registry row per ingested input file.
type Source struct {
	SourceID           string
	SourceType         string
	SourceName         string
	SourceVersion      string
	FileName           string
	FileHash           string
	FileSizeBytes      int64
	Status             SourceStatus
	RecordsInFile      int64
	RecordsProcessed   int64
	RecordsImported    int64
	RecordsFailed      int64
	RecordsSkipped     int64
	CreatedAt          time.Time
	ImportCompletedAt  *time.Time
	UpdatedAt          time.Time
	ErrorMessage       *string
}

// IssueSeverity classifies the severity of a data-quality issue.
type IssueSeverity string

const (
	SeverityInfo    IssueSeverity = "info"
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
)

// ResolutionStatus tracks whether a data-quality issue has been addressed.
type ResolutionStatus string

const (
	ResolutionPending  ResolutionStatus = "pending"
	ResolutionResolved ResolutionStatus = "resolved"
	ResolutionIgnored  ResolutionStatus = "ignored"
)

// DataQualityIssue records one field-level or record-level problem found while
// ingesting a source.
type DataQualityIssue struct {
	IssueID          string
	JobID            string
	SourceRecordID   *string
	IssueType        string
	Severity         IssueSeverity
	FieldName        *string
	InvalidValue     *string
	ExpectedFormat   *string
	Message          string
	RawRecord        map[string]any
	ResolutionStatus ResolutionStatus
	CreatedAt        time.Time
}

// JobLog is one structured log line attached to a job's execution.
type JobLog struct {
	LogID     string
	JobID     string
	Timestamp time.Time
	Level     string
	Message   string
	Metadata  map[string]any
}

// FailedRecord is a dead-lettered record awaiting reprocessing.
type FailedRecord struct {
	RecordID        string
	SourceID        string
	SourceType      string
	RecordData      map[string]any
	ErrorMessage    string
	ErrorType       string
	ErrorDetails    map[string]any
	AttemptCount    int
	CreatedAt       time.Time
	LastAttemptAt   *time.Time
	Reprocessed     bool
	ReprocessedAt   *time.Time
	ReprocessResult map[string]any
}

// ProposeResponseStatus classifies the outcome of a propose-fact call.
type ProposeResponseStatus string

const (
	ProposeSuccess   ProposeResponseStatus = "success"
	ProposeConflicts ProposeResponseStatus = "conflicts"
	ProposeError     ProposeResponseStatus = "error"
)

// ProposeFactResponse is the in-memory result of a single propose-fact call.
// status="conflicts" is still success=true; status="error" carries ErrorMessage.
type ProposeFactResponse struct {
	Success           bool
	Status            ProposeResponseStatus
	OverallConfidence float64
	Actions           []map[string]any
	Conflicts         []map[string]any
	ProvenanceIDs     []string
	ErrorMessage      string
}

// Repositories (ports)

// JobRepository manages the job_queue table.
type JobRepository interface {
	Submit(ctx Context, jobType string, config map[string]any) (Job, error)
	// ClaimNext atomically claims the oldest pending job matching capabilities.
	// Returns (Job{}, false, nil) when no job is available.
	ClaimNext(ctx Context, workerID string, capabilities []string) (Job, bool, error)
	MarkRunning(ctx Context, jobID string) error
	MarkCompleted(ctx Context, jobID string) error
	MarkFailed(ctx Context, jobID string, errMsg string) error
	SaveCheckpoint(ctx Context, jobID string, checkpoint map[string]any) error
	Get(ctx Context, jobID string) (Job, error)
	List(ctx Context, status string, limit int) ([]Job, error)
	// RequeueStale transitions claimed/running jobs whose owning worker has
	// not heartbeated within deadline back to pending, clearing worker_id.
	RequeueStale(ctx Context, deadline time.Duration) (int, error)
}

// WorkerRepository manages the workers table.
type WorkerRepository interface {
	Heartbeat(ctx Context, workerID, hostname string, capabilities []string) error
	List(ctx Context) ([]Worker, error)
}

// SourceRepository manages the sources table.
type SourceRepository interface {
	// FindByTypeAndHash returns the existing source row, if any.
	FindByTypeAndHash(ctx Context, sourceType, fileHash string) (Source, bool, error)
	Register(ctx Context, s Source) (Source, error)
	UpdateCounters(ctx Context, sourceID string, processed, imported, failed, skipped int64) error
	Complete(ctx Context, sourceID string, recordsInFile int64) error
	Fail(ctx Context, sourceID string, errMsg string) error
}

// DataQualityRepository manages the data_quality_issues table.
type DataQualityRepository interface {
	Report(ctx Context, issue DataQualityIssue) error
	List(ctx Context, status string, limit int) ([]DataQualityIssue, error)
}

// JobLogRepository manages the job_logs table.
type JobLogRepository interface {
	Append(ctx Context, l JobLog) error
}

// FailedRecordRepository manages the failed_records (DLQ) table.
type FailedRecordRepository interface {
	Add(ctx Context, r FailedRecord) error
	SelectForRetry(ctx Context, maxRetries int, cooldown time.Duration, limit int) ([]FailedRecord, error)
	MarkRetrying(ctx Context, recordID string) error
	MarkReprocessed(ctx Context, recordID string, success bool, result map[string]any) error
	CleanupOlderThan(ctx Context, age time.Duration) (int, error)
}

// ProposeFactClient (port)

// ProposeFactClient is the semantic fact-ingestion contract loaders invoke.
type ProposeFactClient interface {
	ProposeFact(ctx Context, req ProposeFactRequest) (ProposeFactResponse, error)
	BatchProposeFacts(ctx Context, reqs []ProposeFactRequest) []ProposeFactResponse
	GetEntityProvenance(ctx Context, entityID string) ([]map[string]any, error)
	GetRelationshipConflicts(ctx Context, entityAID, entityBID string) ([]map[string]any, error)
}

// ProposeFactRequest carries one fact proposal.
type ProposeFactRequest struct {
	SourceType             string
	SourceName             string
	TargetType             string
	TargetName             string
	Relationship           string
	SourceInfoName         string
	SourceInfoType         string
	SourceAttributes       map[string]string
	TargetAttributes       map[string]string
	RelationshipStrength   float64
	RelationshipValidFrom  *time.Time
	RelationshipValidTo    *time.Time
	RelationshipMetadata   map[string]any
	ProvenanceConfidence   float64
	ProvenanceMetadata     map[string]any
}
