package project

import (
	"time"

	"reelforge/internal/asset"
	"reelforge/internal/scene"
)

// State is the stored lifecycle state.
type State string

const (
	StateCreated    State = "created"
	StateAssembling State = "assembling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Phase is the state reported to clients. Collecting and ready are derived
// from uploads while the stored state is created or failed.
type Phase string

const (
	PhaseCreated    Phase = "created"
	PhaseCollecting Phase = "collecting"
	PhaseReady      Phase = "ready"
	PhaseAssembling Phase = "assembling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// Asset is an accepted upload.
type Asset struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
	Category    asset.Category
	SHA256      string
	UploadedAt  time.Time
}

// RenderProgress is the latest ffmpeg progress for an assembling project.
type RenderProgress struct {
	Percent float64
	OutTime time.Duration
	Speed   float64
}

// Status summarizes readiness.
type Status struct {
	ID          string
	Phase       Phase
	State       State
	Uploaded    int
	Required    int
	Percentage  int
	Missing     []string
	CanAssemble bool
	OutputPath  string
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Render      *RenderProgress
}

// Snapshot is a detached copy of a project.
type Snapshot struct {
	Status
	Descriptor   scene.Descriptor
	Requirements []scene.Requirement
	Assets       []Asset
	CompletedAt  time.Time
}

// Result describes a finished assembly.
type Result struct {
	ProjectID  string
	OutputPath string
	Size       int64
	Elapsed    time.Duration
	Duration   float64
}
