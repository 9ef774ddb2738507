package transient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNetworkError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("Connection Aborted by peer"), true},
		{errors.New("upstream returned 503"), true},
		{errors.New("context deadline exceeded: timeout"), true},
		{errors.New("invalid api key"), false},
		{nil, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsNetworkError(c.err))
	}
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("Resource Exhausted: quota exceeded"), true},
		{errors.New("HTTP 429 too many requests"), true},
		{errors.New("permission denied"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsQuotaError(c.err))
	}
}
