package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/keepwarm/internal/domain"
)

// Request describes a single ping.
type Request struct {
	URL     string
	Method  string
	Timeout time.Duration
}

// CheckResult holds the outcome of a single probe.
//
// StatusCode is 0 when no response was received.
type CheckResult struct {
	Success    bool
	StatusCode int
	LatencyMS  float64
	Message    string
	Kind       domain.ErrorKind
}

// Checker performs one request and reports what happened. Implementations
// never return errors; failures are data.
type Checker interface {
	Check(ctx context.Context, req Request) CheckResult
}

// Policy decides whether an HTTP response counts as a successful ping.
type Policy string

const (
	// PolicyKeepAlive treats any received response as success.
	PolicyKeepAlive Policy = "keepalive"
	// PolicyHealth only accepts 2xx and 3xx responses.
	PolicyHealth Policy = "health"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyKeepAlive:
		return PolicyKeepAlive, nil
	case PolicyHealth:
		return PolicyHealth, nil
	default:
		return "", fmt.Errorf("unknown success policy %q", s)
	}
}
