package collaborators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveServiceName(t *testing.T) {
	cases := map[string]string{
		"https://example.org/u/flask-app.git": "flask-app",
		"https://example.org/u/My_Cool_App":   "my-cool-app",
		"git@example.org:u/Repo.git":          "repo",
		"https://example.org/u/_leading":      "leading",
	}
	for in, want := range cases {
		got := DeriveServiceName(in)
		assert.Equal(t, want, got, "input=%s", in)
		assert.LessOrEqual(t, len(got), maxServiceNameLength)
		assert.True(t, got[0] >= 'a' && got[0] <= 'z')
	}
}

func TestDeriveServiceName_TruncatesToLimit(t *testing.T) {
	long := "a"
	for i := 0; i < 100; i++ {
		long += "b"
	}
	got := DeriveServiceName("https://example.org/u/" + long + ".git")
	assert.LessOrEqual(t, len(got), maxServiceNameLength)
}
