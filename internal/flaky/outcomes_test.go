package flaky

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractOutcomes_GoPlain(t *testing.T) {
	out := `=== RUN   TestA
--- PASS: TestA (0.00s)
=== RUN   TestB
--- FAIL: TestB (0.01s)
    --- PASS: TestB/sub (0.00s)
FAIL`

	assert.Equal(t, []Outcome{
		{TestName: "TestA", Passed: true},
		{TestName: "TestB", Passed: false},
		{TestName: "TestB/sub", Passed: true},
	}, ExtractOutcomes(out))
}

func TestExtractOutcomes_GoJSON(t *testing.T) {
	out := `{"Action":"run","Package":"example/pkg","Test":"TestA"}
{"Action":"pass","Package":"example/pkg","Test":"TestA","Elapsed":0}
{"Action":"fail","Package":"example/pkg","Test":"TestB","Elapsed":0}
{"Action":"fail","Package":"example/pkg","Elapsed":0}`

	assert.Equal(t, []Outcome{
		{TestName: "example/pkg/TestA", Passed: true},
		{TestName: "example/pkg/TestB", Passed: false},
	}, ExtractOutcomes(out))
}

func TestExtractOutcomes_Pytest(t *testing.T) {
	out := `tests/test_api.py::test_get PASSED                       [ 50%]
tests/test_api.py::test_post FAILED                      [100%]
FAILED tests/test_api.py::test_post - AssertionError`

	assert.Equal(t, []Outcome{
		{TestName: "tests/test_api.py::test_get", Passed: true},
		{TestName: "tests/test_api.py::test_post", Passed: false},
	}, ExtractOutcomes(out))
}

func TestExtractOutcomes_Jest(t *testing.T) {
	out := `  ✓ adds numbers (3 ms)
  ✕ divides by zero (1 ms)`

	assert.Equal(t, []Outcome{
		{TestName: "adds numbers", Passed: true},
		{TestName: "divides by zero", Passed: false},
	}, ExtractOutcomes(out))
}

func TestExtractOutcomes_Unrecognised(t *testing.T) {
	assert.Empty(t, ExtractOutcomes("all good\nnothing to see"))
}
