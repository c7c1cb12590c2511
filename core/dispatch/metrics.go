package dispatch

import (
	"sort"
	"sync"
	"time"
)

// Metrics collects dispatch statistics.
type Metrics struct {
	mu sync.RWMutex

	commands map[string]*CommandMetrics

	totalDispatches uint64
	totalErrors     uint64
	totalDenied     uint64
	totalNotFound   uint64
	totalPanics     uint64

	started time.Time
}

// CommandMetrics holds counters for one command.
type CommandMetrics struct {
	Name          string
	DispatchCount uint64
	SuccessCount  uint64
	DeniedCount   uint64
	ErrorCount    uint64
	PanicCount    uint64
	TotalDuration time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	LastOutcome   string
	LastDispatch  time.Time
}

// Snapshot is a point-in-time copy of Metrics.
type Snapshot struct {
	Started         time.Time
	TotalDispatches uint64
	TotalErrors     uint64
	TotalDenied     uint64
	TotalNotFound   uint64
	TotalPanics     uint64
	Commands        []CommandMetrics
}

func NewMetrics(now time.Time) *Metrics {
	return &Metrics{commands: map[string]*CommandMetrics{}, started: now}
}

// RecordDispatch records the outcome of one dispatch that resolved to a command or a not-found.
func (m *Metrics) RecordDispatch(outcome Outcome, duration time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalDispatches++
	switch outcome.Kind {
	case NotFound:
		m.totalNotFound++
		return
	case Denied:
		m.totalDenied++
	case HandlerError:
		m.totalErrors++
	}

	cm := m.commands[outcome.Command]
	if cm == nil {
		cm = &CommandMetrics{Name: outcome.Command, MinDuration: duration}
		m.commands[outcome.Command] = cm
	}
	cm.DispatchCount++
	cm.LastOutcome = outcome.String()
	cm.LastDispatch = at

	switch outcome.Kind {
	case Denied:
		cm.DeniedCount++
		return
	case HandlerError:
		cm.ErrorCount++
		if _, ok := outcome.Err.(*PanicError); ok {
			cm.PanicCount++
			m.totalPanics++
		}
	case Success:
		cm.SuccessCount++
	}

	cm.TotalDuration += duration
	if duration < cm.MinDuration || cm.MinDuration == 0 {
		cm.MinDuration = duration
	}
	if duration > cm.MaxDuration {
		cm.MaxDuration = duration
	}
}

func (m *Metrics) Command(name string) (CommandMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cm, ok := m.commands[name]
	if !ok {
		return CommandMetrics{}, false
	}
	return *cm, true
}

// Snapshot copies the current counters, commands sorted by dispatch count.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Started:         m.started,
		TotalDispatches: m.totalDispatches,
		TotalErrors:     m.totalErrors,
		TotalDenied:     m.totalDenied,
		TotalNotFound:   m.totalNotFound,
		TotalPanics:     m.totalPanics,
		Commands:        make([]CommandMetrics, 0, len(m.commands)),
	}
	for _, cm := range m.commands {
		s.Commands = append(s.Commands, *cm)
	}
	sort.Slice(s.Commands, func(i, j int) bool {
		if s.Commands[i].DispatchCount != s.Commands[j].DispatchCount {
			return s.Commands[i].DispatchCount > s.Commands[j].DispatchCount
		}
		return s.Commands[i].Name < s.Commands[j].Name
	})
	return s
}

// AverageDuration of the runs that reached the handler.
func (cm CommandMetrics) AverageDuration() time.Duration {
	runs := cm.SuccessCount + cm.ErrorCount
	if runs == 0 {
		return 0
	}
	return cm.TotalDuration / time.Duration(runs)
}
