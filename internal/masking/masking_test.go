package masking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeEnvVars_NeverLeaksSecretValues(t *testing.T) {
	vars := []EnvVar{
		{Key: "DATABASE_URL", Value: "postgres://u:p@host/db", Secret: true},
		{Key: "PORT", Value: "8080", Secret: false},
	}

	lines := DescribeEnvVars(vars)
	joined := strings.Join(lines, "\n")

	assert.NotContains(t, joined, "postgres://u:p@host/db")
	assert.Contains(t, joined, "DATABASE_URL=***")
	assert.Contains(t, joined, "PORT=8080")
}

func TestFindSecretLiterals(t *testing.T) {
	recipe := `
FROM golang:1.25
ENV password="hunter2"
RUN echo building
`
	found := FindSecretLiterals(recipe)
	assert.Len(t, found, 1)
	assert.Contains(t, found[0], "password")
}
