package host

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailDNS
	ProbeFailAuth
	ProbeFailHostKey
)

// String returns a human-readable description of the failure reason.
func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "connection timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailDNS:
		return "hostname doesn't resolve"
	case ProbeFailAuth:
		return "authentication failed"
	case ProbeFailHostKey:
		return "host key verification failed"
	default:
		return "unknown error"
	}
}

// MarshalText encodes the reason by description.
func (r ProbeFailReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ProbeFunc opens a connection to h. The probe closes it straight away.
type ProbeFunc func(ctx context.Context, h Spec) (io.Closer, error)

// ProbeResult is the outcome of probing one host.
type ProbeResult struct {
	Host    Spec            `json:"host"`
	Latency time.Duration   `json:"latency"`
	Reason  ProbeFailReason `json:"reason,omitempty"`
	Err     error           `json:"-"`
}

// OK reports whether the connection succeeded.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// ProbeAll connects to every host, at most parallel at a time, each bounded
// by timeout. Results are in host order; a failure never stops the others.
func ProbeAll(ctx context.Context, hosts List, dial ProbeFunc, parallel int, timeout time.Duration) []ProbeResult {
	if parallel < 1 {
		parallel = 1
	}
	results := make([]ProbeResult, len(hosts))

	g := new(errgroup.Group)
	g.SetLimit(parallel)
	for i := range hosts {
		g.Go(func() error {
			results[i] = probe(ctx, hosts[i], dial, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func probe(ctx context.Context, h Spec, dial ProbeFunc, timeout time.Duration) ProbeResult {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	conn, err := dial(ctx, h)
	res := ProbeResult{Host: h, Latency: time.Since(start)}
	if err != nil {
		res.Err = err
		res.Reason = CategorizeProbeError(err)
		if res.Reason == ProbeFailUnknown && ctx.Err() == context.DeadlineExceeded {
			res.Reason = ProbeFailTimeout
		}
		return res
	}
	_ = conn.Close()
	return res
}

// CategorizeProbeError maps a dial error to a failure reason by its text.
func CategorizeProbeError(err error) ProbeFailReason {
	if err == nil {
		return ProbeFailUnknown
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out") ||
		strings.Contains(errStr, "deadline exceeded"):
		return ProbeFailTimeout
	case strings.Contains(errStr, "connection refused"):
		return ProbeFailRefused
	case strings.Contains(errStr, "no such host"):
		return ProbeFailDNS
	case strings.Contains(errStr, "no route to host") ||
		strings.Contains(errStr, "network is unreachable") ||
		strings.Contains(errStr, "host is down"):
		return ProbeFailUnreachable
	case strings.Contains(errStr, "unable to authenticate") ||
		strings.Contains(errStr, "no supported methods") ||
		strings.Contains(errStr, "permission denied") ||
		strings.Contains(errStr, "authentication failed"):
		return ProbeFailAuth
	case strings.Contains(errStr, "host key"):
		return ProbeFailHostKey
	default:
		return ProbeFailUnknown
	}
}

// Describe returns a one-line outcome for display.
func (r ProbeResult) Describe() string {
	if r.OK() {
		return fmt.Sprintf("reachable in %dms", r.Latency.Milliseconds())
	}
	return r.Reason.String()
}
