package gates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func names(defs []Definition) []string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		out = append(out, d.Name)
	}
	return out
}

func find(defs []Definition, name string) *Definition {
	for i := range defs {
		if defs[i].Name == name {
			return &defs[i]
		}
	}
	return nil
}

func TestDetect_EmptyProject(t *testing.T) {
	assert.Empty(t, Detect(t.TempDir()))
}

func TestDetect_NodeScripts(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"package.json":  `{"scripts": {"test": "jest", "lint": "eslint .", "build": "tsc -b"}}`,
		"tsconfig.json": `{}`,
	})

	defs := Detect(dir)
	assert.Equal(t, []string{"typecheck", "build", "lint", "test"}, names(defs))
	assert.Equal(t, []string{"npx", "tsc", "--noEmit"}, defs[0].Command)

	test := find(defs, "test")
	require.NotNil(t, test)
	assert.False(t, test.Enabled)
	assert.Equal(t, []string{"npm", "test"}, test.Command)
}

func TestDetect_TypecheckScriptSupersedesTsc(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"package.json":  `{"scripts": {"typecheck": "tsc --noEmit -p ."}}`,
		"tsconfig.json": `{}`,
	})

	defs := Detect(dir)
	require.Len(t, defs, 1)
	assert.Equal(t, []string{"npm", "run", "typecheck"}, defs[0].Command)
}

func TestDetect_MalformedPackageJSONIsSilent(t *testing.T) {
	dir := writeFiles(t, map[string]string{"package.json": `{not json`})
	assert.Empty(t, Detect(dir))
}

func TestDetect_GoModule(t *testing.T) {
	dir := writeFiles(t, map[string]string{"go.mod": "module example.com/x\n\ngo 1.24\n"})

	defs := Detect(dir)
	assert.Equal(t, []string{"build", "vet", "test"}, names(defs))
	assert.False(t, find(defs, "test").Enabled)
}

func TestDetect_Pyproject(t *testing.T) {
	dir := writeFiles(t, map[string]string{"pyproject.toml": `
[project]
name = "demo"

[tool.mypy]
strict = true

[tool.ruff]
line-length = 100

[tool.pytest.ini_options]
addopts = "-q"
`})

	defs := Detect(dir)
	assert.Equal(t, []string{"mypy", "ruff", "pytest"}, names(defs))
	assert.False(t, find(defs, "pytest").Enabled)
}

func TestDetect_Cargo(t *testing.T) {
	dir := writeFiles(t, map[string]string{"Cargo.toml": "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n"})

	defs := Detect(dir)
	assert.Equal(t, []string{"build", "clippy", "test"}, names(defs))
	assert.True(t, find(defs, "clippy").Optional)
}

func TestDetect_CollidingNamesArePrefixed(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"package.json": `{"scripts": {"build": "vite build"}}`,
		"go.mod":       "module example.com/x\n",
	})

	defs := Detect(dir)
	assert.Equal(t, []string{"build", "go-build", "vet", "test"}, names(defs))
}
