// Package classify is the single authority turning provider failures into
// retry decisions. Workers never re-classify; they act on the Decision.
package classify

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/NordCoder/Courier/internal/domain/provider"
)

type Outcome int

const (
	Transient Outcome = iota
	Permanent
	RateLimited
)

func (o Outcome) String() string {
	switch o {
	case Permanent:
		return "permanent"
	case RateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

type Decision struct {
	Outcome Outcome
	// RetryAfter is the provider-supplied delay hint, set only for RateLimited.
	RetryAfter time.Duration
}

// DefaultRetryAfter applies when a rate-limited response carries no hint.
const DefaultRetryAfter = 60 * time.Second

var backoffTable = [...]time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

var permanentMarkers = []string{
	"invalid recipient",
	"unauthorized",
	"forbidden",
	"not found",
	"invalid request",
}

var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timed out",
	"timeout",
	"no such host",
}

// Classify maps a provider failure to an outcome. Rules in priority order:
// 429 or a rate-limit message wins; then transient statuses and
// connection-level errors; then permanent statuses and messages; anything
// unrecognized defaults to Transient so recoverable failures are not dropped.
func Classify(err error) Decision {
	var pe *provider.Error
	status := 0
	hint := time.Duration(0)
	if errors.As(err, &pe) {
		status = pe.StatusCode
		hint = pe.RetryAfter
	}
	msg := ""
	if err != nil {
		msg = strings.ToLower(err.Error())
	}

	if status == 429 || strings.Contains(msg, "rate limit") {
		if hint <= 0 {
			hint = DefaultRetryAfter
		}
		return Decision{Outcome: RateLimited, RetryAfter: hint}
	}

	switch status {
	case 408, 500, 502, 503, 504:
		return Decision{Outcome: Transient}
	}
	if isConnectionError(err) {
		return Decision{Outcome: Transient}
	}

	switch status {
	case 400, 401, 403, 404, 422:
		return Decision{Outcome: Permanent}
	}
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return Decision{Outcome: Permanent}
		}
	}

	return Decision{Outcome: Transient}
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var dns *net.DNSError
	if errors.As(err, &dns) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Backoff returns the fixed retry delay for a retry count: [1s 5s 15s 30s 60s]
// indexed by min(retryCount, 4).
func Backoff(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(backoffTable) {
		retryCount = len(backoffTable) - 1
	}
	return backoffTable[retryCount]
}

// RetryDelay resolves the delay for a retryable decision: a rate-limit hint
// overrides the backoff table.
func RetryDelay(d Decision, retryCount int) time.Duration {
	if d.Outcome == RateLimited && d.RetryAfter > 0 {
		return d.RetryAfter
	}
	return Backoff(retryCount)
}
