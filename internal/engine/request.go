package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/phasegate/internal/trigger"
)

// Request is one inbound operation event.
type Request struct {
	ToolKind      string          `json:"toolKind"`
	ToolArguments json.RawMessage `json:"toolArguments,omitempty"`
	SessionID     string          `json:"sessionId,omitempty"`
}

// Response is the single message returned for every request.
type Response struct {
	Continue   bool   `json:"continue"`
	Message    string `json:"message,omitempty"`
	StopReason string `json:"stopReason,omitempty"`
}

// ErrUnsupportedKind is returned by Decode for tool kinds the engine does
// not act on.
var ErrUnsupportedKind = errors.New("unsupported tool kind")

// Command is a decoded request. The concrete types below are the only
// implementations.
type Command interface {
	command()
}

// FileChange is a write, edit, multiEdit or delete event.
type FileChange struct {
	Kind trigger.Kind
	Path string
	// Diff holds the old and new text of edits, joined by newlines.
	Diff string
}

// CompletePhase asks to complete a workflow phase.
type CompletePhase struct {
	Phase string
	Force bool
}

// StartWorkflow begins a workflow.
type StartWorkflow struct {
	WorkflowID string
	Phases     []string
}

// Validate runs the gates now.
type Validate struct{}

// Rollback discards uncommitted work after saving a recovery patch.
type Rollback struct{}

// RestorePhase resets the tree to the checkpoint taken when phase began.
type RestorePhase struct {
	Phase string
}

func (FileChange) command()    {}
func (CompletePhase) command() {}
func (StartWorkflow) command() {}
func (Validate) command()      {}
func (Rollback) command()      {}
func (RestorePhase) command()  {}

type fileArgs struct {
	FilePath  string `json:"file_path"`
	Content   string `json:"content"`
	OldString string `json:"old_string"`
	NewString string `json:"new_string"`
	Edits     []struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	} `json:"edits"`
}

type completePhaseArgs struct {
	Phase string `json:"phase"`
	Force bool   `json:"force"`
}

type startWorkflowArgs struct {
	WorkflowID string   `json:"workflow_id"`
	Phases     []string `json:"phases"`
}

type restorePhaseArgs struct {
	Phase string `json:"phase"`
}

// ParseRequest decodes a raw request document.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if len(bytes.TrimSpace(data)) == 0 {
		return req, errors.New("empty request")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("malformed request: %w", err)
	}
	if strings.TrimSpace(req.ToolKind) == "" {
		return req, errors.New("malformed request: toolKind is required")
	}
	return req, nil
}

// Decode validates the arguments for the request's tool kind and returns
// the typed command. Kinds are matched case-insensitively, so "Edit" and
// "edit" are the same.
func (r Request) Decode() (Command, error) {
	switch normalizeKind(r.ToolKind) {
	case "write":
		return r.decodeFile(trigger.KindWrite)
	case "edit":
		return r.decodeFile(trigger.KindEdit)
	case "multiedit":
		return r.decodeFile(trigger.KindMultiEdit)
	case "delete":
		return r.decodeFile(trigger.KindDelete)
	case "completephase":
		var a completePhaseArgs
		if err := r.args(&a, true); err != nil {
			return nil, err
		}
		if strings.TrimSpace(a.Phase) == "" {
			return nil, r.invalid("phase is required")
		}
		return CompletePhase{Phase: a.Phase, Force: a.Force}, nil
	case "startworkflow":
		var a startWorkflowArgs
		if err := r.args(&a, true); err != nil {
			return nil, err
		}
		if len(a.Phases) == 0 {
			return nil, r.invalid("phases must be a non-empty list")
		}
		return StartWorkflow{WorkflowID: a.WorkflowID, Phases: a.Phases}, nil
	case "validate":
		return Validate{}, r.args(&struct{}{}, false)
	case "rollback":
		return Rollback{}, r.args(&struct{}{}, false)
	case "restorephase":
		var a restorePhaseArgs
		if err := r.args(&a, true); err != nil {
			return nil, err
		}
		if strings.TrimSpace(a.Phase) == "" {
			return nil, r.invalid("phase is required")
		}
		return RestorePhase{Phase: a.Phase}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, r.ToolKind)
}

func (r Request) decodeFile(kind trigger.Kind) (Command, error) {
	var a fileArgs
	if err := r.args(&a, true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.FilePath) == "" {
		return nil, r.invalid("file_path is required")
	}

	fc := FileChange{Kind: kind, Path: a.FilePath}
	switch kind {
	case trigger.KindWrite:
		fc.Diff = a.Content
	case trigger.KindEdit:
		fc.Diff = a.OldString + "\n" + a.NewString
	case trigger.KindMultiEdit:
		if len(a.Edits) == 0 {
			return nil, r.invalid("edits must be a non-empty list")
		}
		parts := make([]string, 0, 2*len(a.Edits))
		for _, e := range a.Edits {
			parts = append(parts, e.OldString, e.NewString)
		}
		fc.Diff = strings.Join(parts, "\n")
	}
	return fc, nil
}

// args unmarshals toolArguments into dst. A missing or null document is an
// error only when required is set.
func (r Request) args(dst any, required bool) error {
	raw := bytes.TrimSpace(r.ToolArguments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if required {
			return r.invalid("toolArguments is required")
		}
		return nil
	}
	if raw[0] != '{' {
		return r.invalid("toolArguments must be an object")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return r.invalid(err.Error())
	}
	return nil
}

func (r Request) invalid(msg string) error {
	return fmt.Errorf("invalid %s request: %s", r.ToolKind, msg)
}

func normalizeKind(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer("_", "", "-", "").Replace(k)
}
