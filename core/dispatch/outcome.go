package dispatch

import (
	"errors"
	"fmt"
	"time"

	"ThreadBot/core"
)

type OutcomeKind int

const (
	NotACommand OutcomeKind = iota
	NotFound
	Denied
	HandlerError
	Success
)

func (k OutcomeKind) String() string {
	switch k {
	case NotACommand:
		return "not_a_command"
	case NotFound:
		return "not_found"
	case Denied:
		return "denied"
	case HandlerError:
		return "handler_error"
	case Success:
		return "success"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

type DenyReason int

const (
	NoReason DenyReason = iota
	RateLimited
	Unauthorized
	OnCooldown
)

func (r DenyReason) String() string {
	switch r {
	case NoReason:
		return ""
	case RateLimited:
		return "rate_limited"
	case Unauthorized:
		return "unauthorized"
	case OnCooldown:
		return "on_cooldown"
	default:
		return fmt.Sprintf("DenyReason(%d)", int(r))
	}
}

// Outcome is the result of dispatching one event.
type Outcome struct {
	Kind OutcomeKind
	// Resolved command name, or the typed name for NotFound.
	Command     string
	Reason      DenyReason
	Remaining   time.Duration
	Suggestions []string
	Err         error
	DispatchID  string
}

func (o Outcome) RemainingSeconds() int {
	return core.CeilSeconds(o.Remaining)
}

func (o Outcome) String() string {
	if o.Kind == Denied {
		return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
	}
	return o.Kind.String()
}

var ErrHandlerTimeout = errors.New("command timed out")

// PanicError is returned when a handler panics. Stack is kept for logs only.
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
