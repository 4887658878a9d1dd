package flaky

import (
	"bufio"
	"encoding/json"
	"regexp"
	"strings"
)

// Outcome is a single test result extracted from runner output.
type Outcome struct {
	TestName string
	Passed   bool
}

var (
	goPlainPattern = regexp.MustCompile(`^\s*--- (PASS|FAIL): (\S+)`)
	pytestPattern  = regexp.MustCompile(`^(\S+::\S+)\s+(PASSED|FAILED|ERROR)`)
	pytestSummary  = regexp.MustCompile(`^(FAILED|ERROR) (\S+::\S+)`)
	jestPattern    = regexp.MustCompile(`^\s*(✓|✔|✕|✗|×)\s+(.+?)(?:\s+\(\d+\s*m?s\))?$`)
)

// ExtractOutcomes recognises go test (plain and -json), pytest -v and jest
// style per-test result lines. Later results for the same test overwrite
// earlier ones; order of first appearance is preserved.
func ExtractOutcomes(output string) []Outcome {
	var order []string
	results := make(map[string]bool)
	record := func(name string, passed bool) {
		if name == "" {
			return
		}
		if _, seen := results[name]; !seen {
			order = append(order, name)
		}
		results[name] = passed
	}

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "{") {
			var event struct {
				Action  string `json:"Action"`
				Package string `json:"Package"`
				Test    string `json:"Test"`
			}
			if err := json.Unmarshal([]byte(line), &event); err == nil && event.Test != "" {
				switch event.Action {
				case "pass":
					record(event.Package+"/"+event.Test, true)
				case "fail":
					record(event.Package+"/"+event.Test, false)
				}
				continue
			}
		}

		if m := goPlainPattern.FindStringSubmatch(line); m != nil {
			record(m[2], m[1] == "PASS")
			continue
		}
		if m := pytestPattern.FindStringSubmatch(line); m != nil {
			record(m[1], m[2] == "PASSED")
			continue
		}
		if m := pytestSummary.FindStringSubmatch(line); m != nil {
			record(m[2], false)
			continue
		}
		if m := jestPattern.FindStringSubmatch(line); m != nil {
			record(strings.TrimSpace(m[2]), m[1] == "✓" || m[1] == "✔")
		}
	}

	out := make([]Outcome, 0, len(order))
	for _, name := range order {
		out = append(out, Outcome{TestName: name, Passed: results[name]})
	}
	return out
}
