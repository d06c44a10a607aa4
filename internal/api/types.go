package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ProjectStatus describes a project in a transport-friendly format.
type ProjectStatus struct {
	ID          string          `json:"id"`
	Phase       string          `json:"phase"`
	State       string          `json:"state"`
	Uploaded    int             `json:"uploaded"`
	Required    int             `json:"required"`
	Percentage  int             `json:"percentage"`
	Missing     []string        `json:"missing"`
	CanAssemble bool            `json:"canAssemble"`
	OutputPath  string          `json:"outputPath,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
	Render      *RenderProgress `json:"render,omitempty"`
}

// RenderProgress captures ffmpeg progress for an assembling project.
type RenderProgress struct {
	Percent        float64 `json:"percent"`
	OutTimeSeconds float64 `json:"outTimeSeconds"`
	Speed          float64 `json:"speed"`
}

// ProjectListResponse wraps a collection of projects.
type ProjectListResponse struct {
	Items []ProjectStatus `json:"items"`
}

// Asset describes an accepted upload.
type Asset struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Category    string `json:"category"`
	SHA256      string `json:"sha256"`
	UploadedAt  string `json:"uploadedAt,omitempty"`
}

// AssetResponse is returned for a successful upload together with the
// project's updated readiness.
type AssetResponse struct {
	Asset   Asset         `json:"asset"`
	Project ProjectStatus `json:"project"`
}

// AssembleResponse describes a rendered artifact.
type AssembleResponse struct {
	ProjectID       string  `json:"projectId"`
	OutputPath      string  `json:"outputPath"`
	Size            int64   `json:"size"`
	ElapsedSeconds  float64 `json:"elapsedSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
}

// PlanInput is one ordered ffmpeg input.
type PlanInput struct {
	Index           int     `json:"index"`
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	Looped          bool    `json:"looped"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// PlanResponse is the dry-run output of synthesis.
type PlanResponse struct {
	ProjectID     string      `json:"projectId"`
	Missing       []string    `json:"missing"`
	Inputs        []PlanInput `json:"inputs"`
	FilterComplex string      `json:"filterComplex"`
	VideoLabel    string      `json:"videoLabel"`
	AudioLabel    string      `json:"audioLabel,omitempty"`
	TotalSeconds  float64     `json:"totalSeconds"`
	Resolution    string      `json:"resolution"`
	Args          []string    `json:"args"`
	CommandLine   string      `json:"commandLine"`
}

// Attempt is one ledger entry.
type Attempt struct {
	ID             int64   `json:"id"`
	ProjectID      string  `json:"projectId"`
	State          string  `json:"state"`
	StartedAt      string  `json:"startedAt,omitempty"`
	FinishedAt     string  `json:"finishedAt,omitempty"`
	OutputPath     string  `json:"outputPath,omitempty"`
	OutputBytes    int64   `json:"outputBytes,omitempty"`
	ErrorKind      string  `json:"errorKind,omitempty"`
	ErrorMessage   string  `json:"errorMessage,omitempty"`
	Diagnostics    string  `json:"diagnostics,omitempty"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// HistorySummary aggregates ledger counts.
type HistorySummary struct {
	Projects  int `json:"projects"`
	Attempts  int `json:"attempts"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// HistoryResponse wraps recent attempts.
type HistoryResponse struct {
	Attempts []Attempt      `json:"attempts"`
	Summary  HistorySummary `json:"summary"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult mirrors one preflight check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// HostStatus reports machine statistics.
type HostStatus struct {
	Hostname      string  `json:"hostname,omitempty"`
	Platform      string  `json:"platform"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	LogicalCPUs   int     `json:"logicalCpus"`
	MemoryTotal   uint64  `json:"memoryTotal"`
	MemoryUsedPct float64 `json:"memoryUsedPercent"`
	WorkDirFree   uint64  `json:"workDirFree"`
	OutputDirFree uint64  `json:"outputDirFree"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	StartedAt     string             `json:"startedAt,omitempty"`
	Projects      map[string]int     `json:"projects"`
	HistoryDBPath string             `json:"historyDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Checks        []CheckResult      `json:"checks"`
	Host          HostStatus         `json:"host"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"requestId,omitempty"`
}
