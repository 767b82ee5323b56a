package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
)

func pErr(status int, msg string) *provider.Error {
	return &provider.Error{Channel: notification.ChannelEmail, StatusCode: status, Message: msg}
}

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   Outcome
	}{
		{429, RateLimited},
		{408, Transient},
		{500, Transient},
		{502, Transient},
		{503, Transient},
		{504, Transient},
		{400, Permanent},
		{401, Permanent},
		{403, Permanent},
		{404, Permanent},
		{422, Permanent},
	}
	for _, c := range cases {
		d := Classify(pErr(c.status, "provider said no"))
		assert.Equal(t, c.want, d.Outcome, "status %d", c.status)
	}
}

func TestClassifyRateLimit(t *testing.T) {
	d := Classify(pErr(429, "slow down"))
	require.Equal(t, RateLimited, d.Outcome)
	assert.Equal(t, DefaultRetryAfter, d.RetryAfter)

	e := pErr(429, "slow down")
	e.RetryAfter = 7 * time.Second
	d = Classify(e)
	require.Equal(t, RateLimited, d.Outcome)
	assert.Equal(t, 7*time.Second, d.RetryAfter)

	// message-only detection, no status
	d = Classify(errors.New("provider rate limit exceeded"))
	require.Equal(t, RateLimited, d.Outcome)
	assert.Equal(t, DefaultRetryAfter, d.RetryAfter)
}

func TestClassifyConnectionErrors(t *testing.T) {
	for _, err := range []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EPIPE,
		context.DeadlineExceeded,
		&net.DNSError{Err: "no such host", Name: "smtp.example.com"},
		fmt.Errorf("send: %w", syscall.ECONNREFUSED),
	} {
		d := Classify(err)
		assert.Equal(t, Transient, d.Outcome, "%v", err)
	}
}

func TestClassifyMessages(t *testing.T) {
	assert.Equal(t, Permanent, Classify(errors.New("invalid recipient address")).Outcome)
	assert.Equal(t, Permanent, Classify(errors.New("401 Unauthorized")).Outcome)
	assert.Equal(t, Permanent, Classify(errors.New("forbidden by policy")).Outcome)
	assert.Equal(t, Transient, Classify(errors.New("something odd happened")).Outcome)
}

func TestClassifyStatusBeatsMessage(t *testing.T) {
	// a 5xx with a scary message is still transient
	assert.Equal(t, Transient, Classify(pErr(503, "user not found upstream")).Outcome)
}

func TestBackoffTable(t *testing.T) {
	want := []time.Duration{
		1 * time.Second,
		5 * time.Second,
		15 * time.Second,
		30 * time.Second,
		60 * time.Second,
	}
	for rc, w := range want {
		assert.Equal(t, w, Backoff(rc), "retryCount=%d", rc)
	}
	assert.Equal(t, 60*time.Second, Backoff(9))
	assert.Equal(t, 1*time.Second, Backoff(-1))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 15*time.Second, RetryDelay(Decision{Outcome: Transient}, 2))
	assert.Equal(t, 90*time.Second, RetryDelay(Decision{Outcome: RateLimited, RetryAfter: 90 * time.Second}, 2))
	assert.Equal(t, 15*time.Second, RetryDelay(Decision{Outcome: RateLimited}, 2))
}
