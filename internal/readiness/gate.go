package readiness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"auth-bootstrap/internal/util"
)

// Probe names an external capability and knows how to check for it.
// Check must be cheap and side-effect free; it is polled repeatedly.
type Probe struct {
	Name  string
	Check func(ctx context.Context) bool
}

// CapabilityUnavailableError reports the capabilities that never became
// ready before the gate's deadline.
type CapabilityUnavailableError struct {
	Names []string
}

func (e *CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("capabilities unavailable: %s", strings.Join(e.Names, ", "))
}

// Gate blocks callers until a set of named capabilities is present.
// Probes are polled at Interval; a zero Timeout waits indefinitely, which
// matches the original behaviour but is not the default in this agent.
type Gate struct {
	Interval time.Duration
	Timeout  time.Duration
	logger   *zap.Logger
}

func NewGate(interval, timeout time.Duration, logger *zap.Logger) *Gate {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Gate{Interval: interval, Timeout: timeout, logger: logger}
}

// Await polls every probe concurrently until all report ready. On deadline
// it returns a CapabilityUnavailableError naming the stragglers.
func (g *Gate) Await(ctx context.Context, probes ...Probe) error {
	if len(probes) == 0 {
		return nil
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	var (
		mu      sync.Mutex
		missing = make(map[string]struct{}, len(probes))
	)
	for _, p := range probes {
		missing[p.Name] = struct{}{}
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, probe := range probes {
		probe := probe
		group.Go(func() error {
			ticker := time.NewTicker(g.Interval)
			defer ticker.Stop()

			for {
				if probe.Check(groupCtx) {
					mu.Lock()
					delete(missing, probe.Name)
					mu.Unlock()
					util.Debug("Capability ready", zap.String("capability", probe.Name))
					return nil
				}
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				case <-ticker.C:
				}
			}
		})
	}

	if err := group.Wait(); err != nil {
		mu.Lock()
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		mu.Unlock()
		sort.Strings(names)

		util.Error("Readiness gate gave up waiting",
			zap.Duration("timeout", g.Timeout),
			zap.String("missing", strings.Join(names, ", ")))
		return &CapabilityUnavailableError{Names: names}
	}

	util.Info("All capabilities ready", zap.Int("count", len(probes)))
	return nil
}
