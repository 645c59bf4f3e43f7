package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestRetryDelayFromError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want time.Duration
	}{
		{"nil", nil, 0},
		{"too many requests with hint", errors.New("Too Many Requests: retry after 7"), 7 * time.Second},
		{"too many requests", errors.New("Too Many Requests"), 3 * time.Second},
		{"timeout", timeoutErr{}, 2 * time.Second},
		{"other", errors.New("bad gateway"), time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryDelayFromError(tc.err))
		})
	}
}

func TestShortHash(t *testing.T) {
	a := shortHash("123:token")
	assert.Len(t, a, 16)
	assert.Equal(t, a, shortHash("123:token"))
	assert.NotEqual(t, a, shortHash("123:other"))
}
