package errparse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypecheck_ParenDialect(t *testing.T) {
	r := NewRegistry()

	got := r.Parse(KindTypecheck, "src/app.ts(10,5): error TS2322: Type mismatch")
	require.Len(t, got, 1)
	assert.Equal(t, ErrorRecord{
		File:    "src/app.ts",
		Line:    10,
		Column:  5,
		Code:    "TS2322",
		Message: "Type mismatch",
	}, got[0])
}

func TestTypecheck_DashDialect(t *testing.T) {
	r := NewRegistry()

	got := r.Parse(KindTypecheck, "\x1b[96msrc/index.ts\x1b[0m:4:12 - error TS2304: Cannot find name 'foo'.")
	require.Len(t, got, 1)
	assert.Equal(t, "src/index.ts", got[0].File)
	assert.Equal(t, 4, got[0].Line)
	assert.Equal(t, 12, got[0].Column)
	assert.Equal(t, "TS2304", got[0].Code)
	assert.Equal(t, "Cannot find name 'foo'.", got[0].Message)
}

func TestTypecheck_Mypy(t *testing.T) {
	r := NewRegistry()

	got := r.Parse(KindTypecheck, "pkg/mod.py:12: error: Incompatible types in assignment  [assignment]\nFound 1 error in 1 file")
	require.Len(t, got, 1)
	assert.Equal(t, "pkg/mod.py", got[0].File)
	assert.Equal(t, 12, got[0].Line)
	assert.Equal(t, "assignment", got[0].Code)
	assert.Equal(t, "Incompatible types in assignment", got[0].Message)
}

func TestTypecheck_FallsBackToScan(t *testing.T) {
	r := NewRegistry()

	got := r.Parse(KindTypecheck, "something went wrong\nfatal error: config not found")
	require.Len(t, got, 1)
	assert.Equal(t, "fatal error: config not found", got[0].Message)
	assert.Empty(t, got[0].File)
}

func TestLint(t *testing.T) {
	r := NewRegistry()

	out := "src/a.js:3:7: 'x' is assigned a value but never used\nsrc/b.js:10:1: Missing semicolon\n\n2 problems"
	got := r.Parse(KindLint, out)
	require.Len(t, got, 2)
	assert.Equal(t, ErrorRecord{File: "src/a.js", Line: 3, Column: 7, Message: "'x' is assigned a value but never used"}, got[0])
	assert.Equal(t, "src/b.js", got[1].File)
}

func TestBuild_ScansErrorLines(t *testing.T) {
	r := NewRegistry()

	out := "compiling...\nERROR in ./src/main.js\nModule not found\nbuild Failed"
	got := r.Parse(KindBuild, out)
	require.Len(t, got, 1)
	assert.Equal(t, "ERROR in ./src/main.js", got[0].Message)
}

func TestDefault_ScansErrorAndFailed(t *testing.T) {
	r := NewRegistry()

	out := "running\nstep one FAILED\nan error occurred\nok"
	got := r.Parse(KindOther, out)
	require.Len(t, got, 2)
	assert.Equal(t, "step one FAILED", got[0].Message)
	assert.Equal(t, "an error occurred", got[1].Message)
}

func TestUnknownKindUsesDefault(t *testing.T) {
	r := NewRegistry()

	got := r.Parse(Kind("made-up"), "tests failed")
	require.Len(t, got, 1)
}

func TestParse_CapsRecords(t *testing.T) {
	r := NewRegistry()

	var b strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "src/f%d.ts(%d,1): error TS1005: ';' expected.\n", i, i+1)
	}
	got := r.Parse(KindTypecheck, b.String())
	assert.Len(t, got, MaxRecords)
}

func TestParse_EmptyAndGarbage(t *testing.T) {
	r := NewRegistry()

	assert.Empty(t, r.Parse(KindLint, ""))
	assert.Empty(t, r.Parse(KindLint, "   \n\t"))
	assert.Empty(t, r.Parse(KindBuild, "\x00\x01\x02 binary junk"))
}

type panicParser struct{}

func (panicParser) Parse(string) []ErrorRecord { panic("boom") }

func TestParse_NeverPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(KindLint, panicParser{})

	var got []ErrorRecord
	assert.NotPanics(t, func() {
		got = r.Parse(KindLint, "lint error here")
	})
	require.Len(t, got, 1)
	assert.Equal(t, "lint error here", got[0].Message)
}

func TestKindForGate(t *testing.T) {
	tests := []struct {
		name string
		want Kind
	}{
		{"typecheck", KindTypecheck},
		{"tsc", KindTypecheck},
		{"mypy", KindTypecheck},
		{"lint", KindLint},
		{"go-vet", KindLint},
		{"build", KindBuild},
		{"test", KindTest},
		{"e2e", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForGate(tt.name))
		})
	}
}

func TestErrorRecord_String(t *testing.T) {
	r := ErrorRecord{File: "a.ts", Line: 1, Column: 2, Code: "TS1", Message: "bad"}
	assert.Equal(t, "a.ts:1:2: TS1: bad", r.String())
	assert.Equal(t, "plain", ErrorRecord{Message: "plain"}.String())
}
