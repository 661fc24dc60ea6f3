package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/keepwarm/internal/domain"
	"github.com/hamed0406/keepwarm/internal/probe"
)

// DelayFunc picks the wait before the next ping.
type DelayFunc func(min, max time.Duration) time.Duration

// RandomDelay draws uniformly from [min, max] at millisecond granularity,
// both ends inclusive.
func RandomDelay(min, max time.Duration) time.Duration {
	lo, hi := min.Milliseconds(), max.Milliseconds()
	if hi <= lo {
		return min
	}
	return time.Duration(lo+rand.Int63n(hi-lo+1)) * time.Millisecond
}

type appender interface {
	Append(o domain.PingOutcome) bool
}

// worker runs the ping loop of exactly one target. It only touches the
// config snapshot it was created with and its own history.
type worker struct {
	target  domain.Target
	checker probe.Checker
	out     appender
	delay   DelayFunc
	log     *zap.Logger
	onFault func(o domain.PingOutcome)

	cancel context.CancelFunc
	done   chan struct{}
}

// run loops until ctx is cancelled or the worker faults. exit is called
// before done is closed and, on a fault, before the fault outcome is
// recorded, so the slot is already free when the fault becomes visible.
func (w *worker) run(ctx context.Context, exit func(*worker)) {
	defer close(w.done)
	defer func() {
		r := recover()
		exit(w)
		if r != nil {
			w.fault(r)
		}
	}()

	w.log.Info("worker_started")
	for {
		d := w.delay(w.target.MinInterval(), w.target.MaxInterval())
		w.log.Debug("worker_sleep", zap.Duration("delay", d))
		if !sleepCtx(ctx, d) {
			w.log.Info("worker_stopped")
			return
		}
		w.pingOnce(ctx)
	}
}

func (w *worker) pingOnce(ctx context.Context) {
	// An in-flight request is never cut short by stop; its own timeout bounds it.
	res := w.checker.Check(context.WithoutCancel(ctx), probe.Request{
		URL:     w.target.URL,
		Method:  w.target.Method,
		Timeout: w.target.Timeout(),
	})

	o := domain.PingOutcome{
		TargetID:   w.target.ID,
		Timestamp:  time.Now().UTC(),
		Success:    res.Success,
		StatusCode: res.StatusCode,
		LatencyMS:  res.LatencyMS,
	}
	if !res.Success {
		o.ErrorKind = res.Kind
		if o.ErrorKind == domain.KindNone {
			o.ErrorKind = domain.KindConnection
		}
		o.ErrorMessage = res.Message
	}
	w.out.Append(o)

	if o.Success {
		w.log.Debug("ping_ok",
			zap.Int("status", o.StatusCode),
			zap.Float64("latency_ms", o.LatencyMS),
		)
	} else {
		w.log.Warn("ping_failed",
			zap.Int("status", o.StatusCode),
			zap.String("kind", string(o.ErrorKind)),
			zap.String("reason", o.ErrorMessage),
			zap.Float64("latency_ms", o.LatencyMS),
		)
	}
}

func (w *worker) fault(r any) {
	o := domain.PingOutcome{
		TargetID:     w.target.ID,
		Timestamp:    time.Now().UTC(),
		Success:      false,
		ErrorKind:    domain.KindInternal,
		ErrorMessage: fmt.Sprintf("worker fault: %v", r),
	}
	w.out.Append(o)
	w.log.Error("worker_fault",
		zap.Any("panic", r),
		zap.ByteString("stack", debug.Stack()),
	)
	if w.onFault != nil {
		w.onFault(o)
	}
}

// sleepCtx waits for d or until ctx is done. Cancellation wins a tie.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}
	return ctx.Err() == nil
}
