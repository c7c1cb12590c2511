package dispatch

import (
	"context"
	"strings"
	"time"

	"ThreadBot/core"
)

// Record describes one dispatch attempt.
type Record struct {
	ID       string
	Command  string
	Invoked  string
	UserID   string
	ThreadID string
	Args     []string
	Success  bool
	Outcome  string
	Error    string
	Duration time.Duration
	At       time.Time
}

// DispatchLog receives one Record per dispatch attempt.
type DispatchLog interface {
	Record(ctx context.Context, rec Record)
}

type DispatchLogFunc func(ctx context.Context, rec Record)

func (f DispatchLogFunc) Record(ctx context.Context, rec Record) {
	f(ctx, rec)
}

// LoggerSink writes records to the application log.
type LoggerSink struct{}

func (LoggerSink) Record(_ context.Context, rec Record) {
	fields := core.Fields{
		"id":       rec.ID,
		"command":  rec.Command,
		"user":     rec.UserID,
		"thread":   rec.ThreadID,
		"args":     strings.Join(rec.Args, " "),
		"success":  rec.Success,
		"outcome":  rec.Outcome,
		"duration": rec.Duration,
	}
	if rec.Error != "" {
		fields["error"] = rec.Error
		core.LogErrorFields("dispatch", fields)
		return
	}
	core.LogInfoFields("dispatch", fields)
}

// MultiLog fans a record out to several sinks.
type MultiLog []DispatchLog

func (m MultiLog) Record(ctx context.Context, rec Record) {
	for _, sink := range m {
		if sink != nil {
			sink.Record(ctx, rec)
		}
	}
}
