package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/hamed0406/keepwarm/internal/domain"
)

// drained so the connection can go back to the pool
const maxDrainBytes = 64 << 10

type HTTPChecker struct {
	Client    *http.Client
	Policy    Policy
	UserAgent string
}

func NewHTTPChecker(policy Policy) *HTTPChecker {
	if policy == "" {
		policy = PolicyKeepAlive
	}
	return &HTTPChecker{
		Client:    &http.Client{Transport: cleanhttp.DefaultPooledTransport()},
		Policy:    policy,
		UserAgent: "keepwarm/1.0",
	}
}

func (h *HTTPChecker) Check(ctx context.Context, pr Request) CheckResult {
	if pr.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pr.Timeout)
		defer cancel()
	}
	method := pr.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, pr.URL, nil)
	if err != nil {
		return CheckResult{Success: false, Message: err.Error(), Kind: domain.KindConnection}
	}
	if h.UserAgent != "" {
		req.Header.Set("User-Agent", h.UserAgent)
	}

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Success: false, Message: err.Error(), LatencyMS: latency, Kind: classify(err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	out := CheckResult{
		Success:    true,
		StatusCode: resp.StatusCode,
		LatencyMS:  latency,
		Message:    resp.Status,
	}
	if h.Policy == PolicyHealth && (resp.StatusCode < 200 || resp.StatusCode >= 400) {
		out.Success = false
		out.Kind = domain.KindHTTPStatus
	}
	return out
}

func classify(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.KindDNS
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.KindTimeout
	}
	return domain.KindConnection
}
