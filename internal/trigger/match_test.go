package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchPath(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"package.json", "package.json", true},
		{"/abs/repo/package.json", "package.json", true},
		{"./tsconfig.json", "tsconfig*.json", true},
		{"tsconfig.app.json", "tsconfig*.json", true},
		{"tsconfig.json.bak", "tsconfig*.json", false},
		{"vite.config.ts", "vite.config.*", true},
		{".env", ".env.*", false},
		{".env.production", ".env.*", true},
		{"src/auth/login.ts", "**/auth/**", true},
		{"auth/login.ts", "**/auth/**", true},
		{"src/author.ts", "**/auth/**", false},
		{"db/migrations/001.sql", "db/*/001.sql", true},
		{"db/a/b/001.sql", "db/*/001.sql", false},
		{"a/b/c/d.go", "a/**/d.go", true},
		{"a/d.go", "a/**/d.go", true},
		{`src\win\package.json`, "package.json", true},
		{"abcabc", "a*c", true},
		{"ab", "a*b*", true},
		{"ac", "a*bc", false},
	}

	for _, tt := range tests {
		t.Run(tt.path+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPath(tt.path, tt.pattern))
		})
	}
}
