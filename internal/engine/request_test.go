package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/phasegate/internal/trigger"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"toolKind":"Write","toolArguments":{"file_path":"a.go","content":"x"},"sessionId":"s1"}`))
	require.NoError(t, err)
	assert.Equal(t, "Write", req.ToolKind)
	assert.Equal(t, "s1", req.SessionID)

	_, err = ParseRequest([]byte("  "))
	assert.Error(t, err)
	_, err = ParseRequest([]byte("{not json"))
	assert.Error(t, err)
	_, err = ParseRequest([]byte(`{"toolArguments":{}}`))
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args string
		want Command
	}{
		{"write", "write", `{"file_path":"package.json","content":"{}"}`,
			FileChange{Kind: trigger.KindWrite, Path: "package.json", Diff: "{}"}},
		{"capitalised alias", "Write", `{"file_path":"a.ts"}`,
			FileChange{Kind: trigger.KindWrite, Path: "a.ts"}},
		{"edit", "Edit", `{"file_path":"a.ts","old_string":"a","new_string":"import b"}`,
			FileChange{Kind: trigger.KindEdit, Path: "a.ts", Diff: "a\nimport b"}},
		{"multi edit", "MultiEdit", `{"file_path":"a.ts","edits":[{"old_string":"a","new_string":"b"},{"old_string":"c","new_string":"d"}]}`,
			FileChange{Kind: trigger.KindMultiEdit, Path: "a.ts", Diff: "a\nb\nc\nd"}},
		{"delete", "delete", `{"file_path":"old.go"}`,
			FileChange{Kind: trigger.KindDelete, Path: "old.go"}},
		{"complete phase", "completePhase", `{"phase":"A","force":true}`,
			CompletePhase{Phase: "A", Force: true}},
		{"start workflow", "startWorkflow", `{"workflow_id":"wf","phases":["A","B"]}`,
			StartWorkflow{WorkflowID: "wf", Phases: []string{"A", "B"}}},
		{"validate without args", "validate", ``, Validate{}},
		{"rollback with null args", "rollback", `null`, Rollback{}},
		{"restore phase", "restorePhase", `{"phase":"B"}`, RestorePhase{Phase: "B"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{ToolKind: tt.kind}
			if tt.args != "" {
				req.ToolArguments = []byte(tt.args)
			}
			got, err := req.Decode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		kind string
		args string
	}{
		{"write without args", "write", ``},
		{"write without path", "write", `{"content":"x"}`},
		{"args not an object", "edit", `["a.ts"]`},
		{"wrong field type", "completePhase", `{"phase":"A","force":"yes"}`},
		{"complete phase without phase", "completePhase", `{"force":true}`},
		{"multi edit without edits", "multiEdit", `{"file_path":"a.ts","edits":[]}`},
		{"start workflow without phases", "startWorkflow", `{"workflow_id":"wf"}`},
		{"restore without phase", "restorePhase", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{ToolKind: tt.kind}
			if tt.args != "" {
				req.ToolArguments = []byte(tt.args)
			}
			_, err := req.Decode()
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrUnsupportedKind))
		})
	}
}

func TestDecode_UnsupportedKind(t *testing.T) {
	_, err := Request{ToolKind: "Read", ToolArguments: []byte(`{"file_path":"a"}`)}.Decode()
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}
