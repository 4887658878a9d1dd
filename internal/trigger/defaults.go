package trigger

import "regexp"

// DefaultBatchThreshold is the number of ordinary edits that triggers validation.
const DefaultBatchThreshold = 5

// RecentPathsCap bounds the recent-paths window.
const RecentPathsCap = 10

// DefaultSensitivePatterns lists files whose changes can break the whole
// project: type-checker and compiler configs, package manifests, lockfiles,
// environment files, and bundler, test runner and linter configs.
var DefaultSensitivePatterns = []string{
	// TypeScript / JavaScript
	"tsconfig*.json",
	"jsconfig.json",
	"package.json",
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"bun.lockb",
	"vite.config.*",
	"webpack.config.*",
	"rollup.config.*",
	"esbuild.config.*",
	"next.config.*",
	"babel.config.*",
	".babelrc*",
	"jest.config.*",
	"vitest.config.*",
	"playwright.config.*",
	".eslintrc*",
	"eslint.config.*",
	".prettierrc*",
	"biome.json",

	// Environment
	".env",
	".env.*",

	// Go
	"go.mod",
	"go.sum",
	"go.work",
	".golangci.yml",
	".golangci.yaml",

	// Python
	"pyproject.toml",
	"setup.py",
	"setup.cfg",
	"requirements*.txt",
	"poetry.lock",
	"uv.lock",
	"mypy.ini",
	"ruff.toml",
	".flake8",
	"tox.ini",

	// Rust
	"Cargo.toml",
	"Cargo.lock",
	"clippy.toml",

	// Build
	"Makefile",
	"Dockerfile",
}

// boundaryPatterns detect edits that change what a module imports or exposes.
var boundaryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*import\b`),
	regexp.MustCompile(`(?m)^\s*export\b`),
	regexp.MustCompile(`\brequire\s*\(`),
	regexp.MustCompile(`(?m)^\s*from\s+[\w.]+\s+import\b`),
	regexp.MustCompile(`(?m)^\s*(pub(\([\w:]+\))?\s+)?use\s+(\w+::|\w+;|::)`),
	regexp.MustCompile(`(?m)^\s*(pub(\([\w:]+\))?\s+)?mod\s+\w+\s*;`),
	regexp.MustCompile(`\bmodule\.exports\b`),
	regexp.MustCompile(`\bexports\.\w+\s*=`),
}
