package dispatch

import (
	"context"
	"fmt"
)

// Replier sends text back into a thread. Implemented by the transport.
type Replier interface {
	Reply(ctx context.Context, threadID, text string) error
}

// AdminLookup returns the ids of a thread's administrators. Implemented by the transport.
type AdminLookup interface {
	ThreadAdmins(ctx context.Context, threadID string) ([]string, error)
}

// Event is one inbound message as delivered by the transport.
type Event struct {
	Text       string
	SenderID   string
	SenderName string
	ThreadID   string
	MessageID  string
	// Ids of users mentioned in the message, in order.
	Mentions []string
	// Set when the bot itself authored the message.
	IsSelf  bool
	Replier Replier
}

// Utility method to send a quick reply back to the thread the event came from.
func (e *Event) ReplyToThread(ctx context.Context, format string, v ...interface{}) error {
	if e.Replier == nil {
		return fmt.Errorf("event from thread %s has no replier", e.ThreadID)
	}
	text := format
	if len(v) > 0 {
		text = fmt.Sprintf(format, v...)
	}
	return e.Replier.Reply(ctx, e.ThreadID, text)
}

// Invocation is what a handler receives: the event, the resolved command and its arguments.
type Invocation struct {
	*Event
	Command *Command
	// The token the user typed, which may be an alias.
	Invoked    string
	Args       []string
	Prefix     string
	Dispatcher *Dispatcher
}

// Handler is the single entry point every command implements.
type Handler interface {
	Run(ctx context.Context, inv *Invocation) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, inv *Invocation) error

func (f HandlerFunc) Run(ctx context.Context, inv *Invocation) error {
	return f(ctx, inv)
}

// Listener observes every inbound event that was not sent by the bot itself.
type Listener func(ctx context.Context, e *Event)
