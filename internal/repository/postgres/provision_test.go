package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSchemaName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Acme", "acme"},
		{"spaces collapse", "Acme Corp Ltd", "acme_corp_ltd"},
		{"punctuation collapses", "Smith & Sons, Inc.", "smith_sons_inc"},
		{"leading digit gets prefix", "123 Industries", "c_123_industries"},
		{"unicode stripped", "Caffè Nero", "caff_nero"},
		{"empty falls back", "", "c_schema"},
		{"only punctuation falls back", "!!!", "c_schema"},
		{"repeated separators collapse", "a - - b", "a_b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveSchemaName(tt.in))
		})
	}
}

func TestDeriveSchemaNameLength(t *testing.T) {
	long := strings.Repeat("verylongname", 10)
	got := deriveSchemaName(long)
	assert.LessOrEqual(t, len(got), maxSchemaBaseLen)
	assert.NotEqual(t, byte('_'), got[len(got)-1])
}

func TestSchemaCandidate(t *testing.T) {
	assert.Equal(t, "acme", schemaCandidate("acme", 1))
	assert.Equal(t, "acme_2", schemaCandidate("acme", 2))
	assert.Equal(t, "acme_200", schemaCandidate("acme", 200))

	long := strings.Repeat("a", maxSchemaBaseLen)
	candidate := schemaCandidate(long, 150)
	assert.LessOrEqual(t, len(candidate), maxSchemaLen)
}

func TestEmailCandidate(t *testing.T) {
	assert.Equal(t, "info@acme.test", emailCandidate("info", "acme.test", 0))
	assert.Equal(t, "info_copy1@acme.test", emailCandidate("info", "acme.test", 1))
	assert.Equal(t, "info_copy42@acme.test", emailCandidate("info", "acme.test", 42))
}

func TestSplitEmailBase(t *testing.T) {
	local, domain := splitEmailBase("Info@Acme.Test", "acme")
	assert.Equal(t, "info", local)
	assert.Equal(t, "acme.test", domain)

	local, domain = splitEmailBase("not-an-email", "acme_2")
	assert.Equal(t, "acme_2", local)
	assert.Equal(t, "example.local", domain)

	local, domain = splitEmailBase("", "fallback")
	assert.Equal(t, "fallback", local)
	assert.Equal(t, "example.local", domain)

	// Characters invalid in a local part are stripped, not escaped.
	local, _ = splitEmailBase("a b(c)@x.test", "acme")
	assert.Equal(t, "abc", local)
}

func TestNewCompanyCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := newCompanyCode()
		assert.True(t, strings.HasPrefix(code, "EMP-"))
		assert.Len(t, code, 10)
		for _, r := range code[4:] {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	// 32^6 combinations; 100 draws colliding would mean a broken generator.
	assert.Greater(t, len(seen), 90)
}
