package domain

import "time"

// TriggerNodeID is the canvas id of a workflow's trigger node. Every
// workflow has exactly one trigger and it always comes first.
const TriggerNodeID = "trigger"

type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerSchedule  TriggerType = "schedule"
	TriggerFileWatch TriggerType = "file_watch"
)

// Trigger starts a workflow. Schedule holds a cron expression and Path a
// watched file or directory.
type Trigger struct {
	Type     TriggerType `json:"type"`
	Schedule string      `json:"schedule,omitempty"`
	Path     string      `json:"path,omitempty"`
	Enabled  bool        `json:"enabled"`
}

// Label is the text drawn on the trigger node.
func (t Trigger) Label() string {
	switch t.Type {
	case TriggerSchedule:
		return "Schedule " + t.Schedule
	case TriggerFileWatch:
		return "Watch " + t.Path
	default:
		return "Manual"
	}
}

type HTTPParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type FieldTarget string

const (
	FieldParams FieldTarget = "params"
	FieldPath   FieldTarget = "path"
	FieldBody   FieldTarget = "body"
)

// ParamField declares an input a request expects from earlier steps.
type ParamField struct {
	Name        string      `json:"name"`
	Type        FieldTarget `json:"type"`
	Required    bool        `json:"required"`
	Description string      `json:"description,omitempty"`
}

// OutputField is a value extracted from a response by dotted path.
type OutputField struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
}

// APIMapping routes an input value into part of the outgoing request.
type APIMapping struct {
	InputName string      `json:"inputName"`
	Target    FieldTarget `json:"target"`
	Key       string      `json:"key"`
}

// WorkflowRequest is one request node of a workflow.
type WorkflowRequest struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Method       string            `json:"method"`
	URL          string            `json:"url"`
	Headers      []HTTPParam       `json:"headers"`
	Params       []HTTPParam       `json:"params"`
	Body         string            `json:"body"`
	InputFields  []ParamField      `json:"inputFields"`
	OutputFields []OutputField     `json:"outputFields"`
	InputValues  map[string]string `json:"inputValues"`
	APIMappings  []APIMapping      `json:"apiMappings"`
}

// Point is a stored top-left node position in world units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the persisted pan/zoom of a workflow canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

type Workflow struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Trigger       Trigger           `json:"trigger"`
	Requests      []WorkflowRequest `json:"requests"`
	NodePositions map[string]Point  `json:"nodePositions"`
	Viewport      Viewport          `json:"viewport"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// NodeIDs returns the canvas node ids in execution order, trigger first.
func (w *Workflow) NodeIDs() []string {
	ids := make([]string, 0, len(w.Requests)+1)
	ids = append(ids, TriggerNodeID)
	for _, r := range w.Requests {
		ids = append(ids, r.ID)
	}
	return ids
}

// RequestIndex returns the position of request id, or -1.
func (w *Workflow) RequestIndex(id string) int {
	for i, r := range w.Requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// WorkflowSummary is the list view of a workflow.
type WorkflowSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	RequestCount int       `json:"requestCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type WorkflowStore interface {
	CreateWorkflow(w *Workflow) error
	GetWorkflow(id string) (*Workflow, error)
	ListWorkflows() ([]WorkflowSummary, error)
	// SaveWorkflow replaces the stored workflow, positions included.
	SaveWorkflow(w *Workflow) error
	DeleteWorkflow(id string) error
	CountWorkflows() (int, error)
}
