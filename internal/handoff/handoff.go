package handoff

import (
	"os/exec"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"auth-bootstrap/internal/util"
)

// Launcher performs the actual application start exactly once.
type Launcher interface {
	Launch() error
}

// Handoff hands control to the downstream application. Start is idempotent:
// the guard is checked synchronously before any further work, so racing
// callers (initial check vs. a listener-fired re-check) launch at most once
// per process life.
type Handoff struct {
	launcher Launcher
	started  atomic.Bool
	once     sync.Once
}

func New(launcher Launcher) *Handoff {
	return &Handoff{launcher: launcher}
}

// Start launches the downstream application if it has not been launched yet.
func (h *Handoff) Start() {
	if !h.started.CompareAndSwap(false, true) {
		util.Debug("Handoff already performed, skipping")
		return
	}
	h.once.Do(func() {
		util.Info("Handing off to downstream application")
		if err := h.launcher.Launch(); err != nil {
			util.Error("Downstream application launch failed", zap.Error(err))
		}
	})
}

// Started reports whether handoff has happened.
func (h *Handoff) Started() bool {
	return h.started.Load()
}

// ExecLauncher starts the downstream application as a detached process.
type ExecLauncher struct {
	Command string
	Args    []string
}

func (l *ExecLauncher) Launch() error {
	if l.Command == "" {
		util.Warn("No handoff command configured, nothing to launch")
		return nil
	}
	cmd := exec.Command(l.Command, l.Args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	// The downstream application owns its own lifetime from here.
	go func() { _ = cmd.Wait() }()
	return nil
}
