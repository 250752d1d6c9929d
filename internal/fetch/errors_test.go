package fetch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindAuth, URL: "https://x", Message: "login failed", Cause: errors.New("timeout")}
	assert.Equal(t, "fetch error (auth) for https://x: login failed: timeout", err.Error())

	err = &Error{Kind: KindEmpty, URL: "https://x", Message: "empty response body"}
	assert.Equal(t, "fetch error (empty) for https://x: empty response body", err.Error())
}

func TestIsKind_Wrapped(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("target Acme: %w", &Error{Kind: KindNetwork, URL: "https://x", Message: "HTTP request failed", Cause: cause})

	assert.True(t, IsKind(err, KindNetwork))
	assert.False(t, IsKind(err, KindAuth))
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestKindForStatus(t *testing.T) {
	assert.Equal(t, KindAuth, kindForStatus(401))
	assert.Equal(t, KindAuth, kindForStatus(999))
	assert.Equal(t, KindNetwork, kindForStatus(429))
	assert.Equal(t, KindNetwork, kindForStatus(502))
}
