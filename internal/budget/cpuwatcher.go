package budget

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/vthunder/mneme/internal/logging"
)

// ResourceWatcher samples host-level CPU and memory pressure and feeds a
// second downgrade signal alongside the token Ledger, generalized from the
// teacher's CPUWatcher (vthunder-bud2/internal/budget/cpuwatcher.go), which
// matched individual Claude CLI subprocess PIDs by cpu history to detect
// session completion. Mneme has no subprocess to watch this way — the
// downgrade path instead needs to know whether the host itself is under
// pressure before the Reasoning Loop schedules another LLM call.
type ResourceWatcher struct {
	pollInterval time.Duration
	cpuThreshold float64 // percent
	memThreshold float64 // percent

	mu       sync.RWMutex
	lastCPU  float64
	lastMem  float64
	stopChan chan struct{}
	running  bool
}

// NewResourceWatcher returns a watcher with the teacher's default polling
// cadence, rebased onto host-wide thresholds instead of per-process ones.
func NewResourceWatcher() *ResourceWatcher {
	return &ResourceWatcher{
		pollInterval: 30 * time.Second,
		cpuThreshold: 85.0,
		memThreshold: 90.0,
		stopChan:     make(chan struct{}),
	}
}

// SetThresholds overrides the defaults.
func (w *ResourceWatcher) SetThresholds(cpuPercent, memPercent float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cpuThreshold = cpuPercent
	w.memThreshold = memPercent
}

// Start begins polling in the background until Stop is called.
func (w *ResourceWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	go w.watchLoop()
}

// Stop halts polling.
func (w *ResourceWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	close(w.stopChan)
}

func (w *ResourceWatcher) watchLoop() {
	w.sample()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.sample()
		case <-w.stopChan:
			return
		}
	}
}

func (w *ResourceWatcher) sample() {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		logging.Warn("budget", "cpu sample failed: %v", err)
	} else if len(percents) > 0 {
		w.mu.Lock()
		w.lastCPU = percents[0]
		w.mu.Unlock()
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		logging.Warn("budget", "memory sample failed: %v", err)
		return
	}
	w.mu.Lock()
	w.lastMem = vm.UsedPercent
	w.mu.Unlock()
}

// UnderPressure reports whether the host is currently hot enough that the
// downgrade path should prefer the rule layer over another LLM call,
// independent of the token Ledger's own downgrade signal.
func (w *ResourceWatcher) UnderPressure() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastCPU >= w.cpuThreshold || w.lastMem >= w.memThreshold
}

// Snapshot returns the last sampled CPU and memory percentages.
func (w *ResourceWatcher) Snapshot() (cpuPercent, memPercent float64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastCPU, w.lastMem
}
