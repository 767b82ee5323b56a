package providers

import (
	"io"
	"strconv"
	"strings"
	"time"
)

const maxResponseBytes = 64 * 1024

// parseRetryAfter reads a Retry-After style hint given in whole seconds.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// readCapped drains up to maxResponseBytes of a response body for inclusion
// in error messages.
func readCapped(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxResponseBytes))
	return strings.TrimSpace(string(b))
}
