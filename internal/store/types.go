package store

import (
	"time"

	"github.com/google/uuid"
)

// DatasetKind enumerates the supported dataset kinds.
type DatasetKind string

const (
	DatasetKindPool            DatasetKind = "pool"
	DatasetKindBalanced        DatasetKind = "balanced"
	DatasetKindCounterfactual  DatasetKind = "counterfactual"
	DatasetKindReality         DatasetKind = "reality"
)

// ScaleMode enumerates the scale-order strategies a run can use.
type ScaleMode string

const (
	ScaleModeIn   ScaleMode = "in"
	ScaleModeRev  ScaleMode = "rev"
	ScaleModeDual ScaleMode = "dual"
)

// ScaleOrder is the per-item Likert scale orientation.
type ScaleOrder string

const (
	ScaleOrderIn  ScaleOrder = "in"
	ScaleOrderRev ScaleOrder = "rev"
)

// TaskType enumerates the kinds of task the queue executor can dispatch.
type TaskType string

const (
	TaskTypeBenchmark    TaskType = "benchmark"
	TaskTypeAttrGen      TaskType = "attrgen"
	TaskTypeDatasetBuild TaskType = "dataset-build"
)

// TaskStatus enumerates the task queue state machine states.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// RunStatus enumerates the benchmark run status values tracked by the
// progress registry and mirrored onto the benchmark_runs row.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusRunning    RunStatus = "running"
	RunStatusCancelling RunStatus = "cancelling"
	RunStatusDone       RunStatus = "done"
	RunStatusPartial    RunStatus = "partial"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Dataset is the identity a benchmark run, and the personas it references,
// are scoped to.
type Dataset struct {
	ID        int64
	Name      string
	Kind      DatasetKind
	Config    string // opaque JSON blob
	CreatedAt time.Time
}

// Persona is an immutable synthetic respondent.
type Persona struct {
	UUID             uuid.UUID
	Age              int
	Gender           string
	Education        string
	Occupation       string
	MaritalStatus    string
	MigrationStatus  string
	OriginCountryID  *int64
	Religion         string
	Sexuality        string
	CreatedAt        time.Time
}

// AdditionalPersonaAttribute is a generated attribute (name, appearance,
// biography, …) attached to a persona for a specific attribute-generation
// run.
type AdditionalPersonaAttribute struct {
	PersonaUUID         uuid.UUID
	AttrGenerationRunID int64
	AttributeKey        string
	Value                string
}

// Trait is an adjective rated on the five-point Likert scale.
type Trait struct {
	ID           string
	Adjective    string
	CaseTemplate *string
	Category     *string
	Valence      *int
	IsActive     bool
}

// BenchmarkRun is one configured execution of the pipeline.
type BenchmarkRun struct {
	ID                int64
	DatasetID         int64
	ModelID           string
	BatchSize         int
	MaxAttempts       int
	IncludeRationale  bool
	SystemPrompt      *string
	ScaleMode         ScaleMode
	DualFraction      float64
	MaxNewTokens      int
	AttrGenerationRun *int64
	Status            RunStatus
	Error             *string
	CreatedAt         time.Time
}

// NewBenchmarkRun is the set of fields a caller supplies when creating a run;
// the rest (ID, status, timestamps) are assigned by the store.
type NewBenchmarkRun struct {
	DatasetID         int64
	ModelID           string
	BatchSize         int
	MaxAttempts       int
	IncludeRationale  bool
	SystemPrompt      *string
	ScaleMode         ScaleMode
	DualFraction      float64
	MaxNewTokens      int
	AttrGenerationRun *int64
}

// BenchmarkResult is a single persisted rating.
type BenchmarkResult struct {
	RunID           int64
	PersonaUUID     uuid.UUID
	CaseID          string
	ScaleOrder      ScaleOrder
	Attempt         int
	AnswerRaw       string
	Rating          *int
	RatingRaw       *int
	GenTimeMs       *int
	ModelName       string
	TemplateVersion string
	CreatedAt       time.Time
}

// CompletedKey identifies a (persona, case, scale_order) triple already
// persisted for a run — used by the dispatcher to implement resume.
type CompletedKey struct {
	PersonaUUID uuid.UUID
	CaseID      string
	ScaleOrder  ScaleOrder
}

// FailLog is one failed attempt (or the final max_attempts_exceeded entry).
type FailLog struct {
	ID              int64
	RunID           int64
	PersonaUUID     uuid.UUID
	ModelID         string
	Attempt         int
	ErrorKind       string
	RawTextSnippet  string
	PromptSnippet   string
	CreatedAt       time.Time
}

// TaskQueueRow is one row of the task queue.
type TaskQueueRow struct {
	ID          int64
	TaskType    TaskType
	Label       string
	Status      TaskStatus
	Position    int
	DependsOn   *int64
	Config      string
	ResultRunID *int64
	Error       *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// NewTask is the set of fields a caller supplies when submitting a task.
type NewTask struct {
	TaskType  TaskType
	Label     string
	Config    string
	DependsOn *int64
	Position  int
}

// CounterfactualLink pairs a source persona with its counterfactual twin.
type CounterfactualLink struct {
	DatasetID        int64
	SourcePersonaID  uuid.UUID
	CfPersonaID      uuid.UUID
	ChangedAttribute string
	FromValue        string
	ToValue          string
}

// CacheEntry is a persisted, content-addressed derived aggregate.
type CacheEntry struct {
	RunID       int64
	Kind        string
	Key         string
	PayloadJSON string
	UpdatedAt   time.Time
}
