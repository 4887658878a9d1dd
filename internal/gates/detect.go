package gates

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ShayCichocki/phasegate/internal/errparse"
)

// Detect inspects manifest files in projectRoot and returns one gate per
// recognised capability, ordered typecheck, build, lint, test. Missing or
// unreadable manifests are skipped silently.
func Detect(projectRoot string) []Definition {
	d := &detector{root: projectRoot}
	d.node()
	d.golang()
	d.python()
	d.rust()

	sort.SliceStable(d.found, func(i, j int) bool {
		return kindRank(d.found[i].Kind) < kindRank(d.found[j].Kind)
	})
	return d.found
}

type detector struct {
	root  string
	found []Definition
	names map[string]bool
}

// add registers a gate, prefixing the name with the ecosystem when an
// earlier manifest already claimed it.
func (d *detector) add(ecosystem, name string, kind errparse.Kind, enabled, optional bool, argv ...string) {
	if d.names == nil {
		d.names = make(map[string]bool)
	}
	if d.names[name] {
		name = ecosystem + "-" + name
	}
	d.names[name] = true
	d.found = append(d.found, Definition{
		Name:           name,
		Command:        argv,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Enabled:        enabled,
		Optional:       optional,
		Kind:           kind,
	})
}

func (d *detector) exists(name string) bool {
	_, err := os.Stat(filepath.Join(d.root, name))
	return err == nil
}

func (d *detector) node() {
	scripts := d.packageScripts()

	if _, ok := scripts["typecheck"]; ok {
		d.add("node", "typecheck", errparse.KindTypecheck, true, false, "npm", "run", "typecheck")
	} else if d.exists("tsconfig.json") {
		d.add("node", "typecheck", errparse.KindTypecheck, true, false, "npx", "tsc", "--noEmit")
	}
	if _, ok := scripts["build"]; ok {
		d.add("node", "build", errparse.KindBuild, true, false, "npm", "run", "build")
	}
	if _, ok := scripts["lint"]; ok {
		d.add("node", "lint", errparse.KindLint, true, false, "npm", "run", "lint")
	}
	if _, ok := scripts["test"]; ok {
		d.add("node", "test", errparse.KindTest, false, false, "npm", "test")
	}
}

func (d *detector) packageScripts() map[string]string {
	content, err := os.ReadFile(filepath.Join(d.root, "package.json"))
	if err != nil {
		return nil
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(content, &pkg); err != nil {
		return nil
	}
	return pkg.Scripts
}

func (d *detector) golang() {
	if !d.exists("go.mod") {
		return
	}
	d.add("go", "build", errparse.KindBuild, true, false, "go", "build", "./...")
	d.add("go", "vet", errparse.KindLint, true, false, "go", "vet", "./...")
	d.add("go", "test", errparse.KindTest, false, false, "go", "test", "./...")
}

func (d *detector) python() {
	var pyproject struct {
		Tool map[string]toml.Primitive `toml:"tool"`
	}
	if _, err := toml.DecodeFile(filepath.Join(d.root, "pyproject.toml"), &pyproject); err != nil {
		return
	}
	if _, ok := pyproject.Tool["mypy"]; ok {
		d.add("python", "mypy", errparse.KindTypecheck, true, false, "mypy", ".")
	}
	if _, ok := pyproject.Tool["ruff"]; ok {
		d.add("python", "ruff", errparse.KindLint, true, false, "ruff", "check", ".")
	}
	if _, ok := pyproject.Tool["pytest"]; ok {
		d.add("python", "pytest", errparse.KindTest, false, false, "python", "-m", "pytest")
	}
}

func (d *detector) rust() {
	var cargo struct {
		Package map[string]any `toml:"package"`
	}
	if _, err := toml.DecodeFile(filepath.Join(d.root, "Cargo.toml"), &cargo); err != nil {
		return
	}
	d.add("cargo", "build", errparse.KindBuild, true, false, "cargo", "build")
	d.add("cargo", "clippy", errparse.KindLint, true, true, "cargo", "clippy", "--", "-D", "warnings")
	d.add("cargo", "test", errparse.KindTest, false, false, "cargo", "test")
}

func kindRank(k errparse.Kind) int {
	switch k {
	case errparse.KindTypecheck:
		return 0
	case errparse.KindBuild:
		return 1
	case errparse.KindLint:
		return 2
	case errparse.KindTest:
		return 3
	default:
		return 4
	}
}
