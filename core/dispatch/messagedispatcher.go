package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"ThreadBot/core"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"
)

const (
	// Longest error text shown to users.
	MaxErrorLength = 200
	// Most "did you mean" suggestions shown to users.
	MaxReportedSuggestions = 3
)

// Config controls a Dispatcher. Zero values fall back to the defaults in core.
type Config struct {
	Prefix string
	// Optional per-thread prefix override. An empty result means use Prefix.
	PrefixFor func(ctx context.Context, threadId string) string
	Owners    []string
	// Zero uses core.DefaultCooldown, negative disables the global fallback.
	DefaultCooldown   time.Duration
	CategoryCooldowns map[string]time.Duration
	UserRateLimit     int
	ThreadRateLimit   int
	RateWindow        time.Duration
	HandlerTimeout    time.Duration
	Admins            AdminLookup
	Log               DispatchLog
	Clock             func() time.Time
}

// NoCooldown disables a cooldown where zero would mean "inherit".
const NoCooldown time.Duration = -1

// ConfigFromSettings builds a Config from the loaded settings file.
func ConfigFromSettings(s *core.SettingsStorage) Config {
	fallback := s.DefaultCooldown()
	if fallback == 0 {
		fallback = NoCooldown
	}
	return Config{
		Prefix:            s.CommandPrefix(),
		Owners:            s.OwnerIds(),
		DefaultCooldown:   fallback,
		CategoryCooldowns: s.CategoryCooldowns(),
		UserRateLimit:     s.UserRateLimit(),
		ThreadRateLimit:   s.ThreadRateLimit(),
		HandlerTimeout:    s.HandlerTimeout(),
	}
}

// This class will parse and dispatch commands to the appropriate command handler.
// It filters out messages sent by the bot itself and those without the command prefix,
// then runs the rate limit, permission and cooldown gates before invoking the handler.
type Dispatcher struct {
	config      Config
	registry    *Registry
	limiter     *RateLimiter
	permissions *PermissionResolver
	cooldowns   *CooldownLedger
	log         DispatchLog
	metrics     *Metrics

	mu        sync.RWMutex
	listeners []Listener
}

func New(config Config, registry *Registry, state State) *Dispatcher {
	if config.Prefix == "" {
		config.Prefix = core.DefaultCommandPrefix
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.DefaultCooldown == 0 {
		config.DefaultCooldown = core.DefaultCooldown
	}
	if config.CategoryCooldowns == nil {
		config.CategoryCooldowns = core.DefaultCategoryCooldowns
	}
	if config.RateWindow <= 0 {
		config.RateWindow = RateWindow
	}
	if config.Log == nil {
		config.Log = LoggerSink{}
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if state.Cooldowns == nil || state.Counters == nil {
		mem := NewMemoryState()
		if state.Cooldowns == nil {
			state.Cooldowns = mem
		}
		if state.Counters == nil {
			state.Counters = mem
		}
	}

	return &Dispatcher{
		config:      config,
		registry:    registry,
		limiter:     NewRateLimiter(state.Counters, config.UserRateLimit, config.ThreadRateLimit, config.RateWindow, config.Clock),
		permissions: NewPermissionResolver(config.Owners, config.Admins),
		cooldowns:   NewCooldownLedger(state.Cooldowns, config.DefaultCooldown, config.CategoryCooldowns, config.Clock),
		log:         config.Log,
		metrics:     NewMetrics(config.Clock()),
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

func (d *Dispatcher) Cooldowns() *CooldownLedger {
	return d.cooldowns
}

func (d *Dispatcher) Permissions() *PermissionResolver {
	return d.permissions
}

// Now reads the dispatcher's clock.
func (d *Dispatcher) Now() time.Time {
	return d.config.Clock()
}

// AddListener registers fn to see every event not authored by the bot.
func (d *Dispatcher) AddListener(fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// PrefixFor returns the command prefix used in threadId.
func (d *Dispatcher) PrefixFor(ctx context.Context, threadId string) string {
	if d.config.PrefixFor != nil {
		if prefix := d.config.PrefixFor(ctx, threadId); prefix != "" {
			return prefix
		}
	}
	return d.config.Prefix
}

// Parse splits text into a lowercased command name and its arguments.
// ok is false when text does not start with prefix or has nothing after it.
func Parse(prefix, text string) (name string, args []string, ok bool) {
	trimmed := strings.TrimPrefix(text, prefix)
	if prefix == "" || trimmed == text {
		return "", nil, false
	}

	// Split the command into parameters, and clean them up.
	args = funk.FilterString(strings.Fields(trimmed), func(str string) bool {
		return strings.TrimSpace(str) != ""
	})
	if len(args) == 0 {
		return "", nil, false
	}
	return strings.ToLower(args[0]), args[1:], true
}

// Dispatch runs one inbound event through the pipeline. It never panics and
// never returns a handler's failure to the caller other than inside the Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) Outcome {
	// Short-circuit if author of the message is the bot itself to avoid loops
	if event == nil || event.IsSelf {
		return Outcome{Kind: NotACommand}
	}

	start := d.config.Clock()
	withinLimits := d.limiter.Observe(ctx, event.SenderID, event.ThreadID)
	d.notifyListeners(ctx, event)

	prefix := d.PrefixFor(ctx, event.ThreadID)
	name, args, ok := Parse(prefix, event.Text)
	if !ok {
		return Outcome{Kind: NotACommand}
	}
	core.LogDebugF("Parsed command %q with args %v from %s in %s", name, args, event.SenderID, event.ThreadID)

	outcome := Outcome{Command: name, DispatchID: uuid.NewString()}
	cmd := d.registry.Lookup(name)
	if cmd == nil {
		outcome.Kind = NotFound
		outcome.Suggestions = Suggest(name, d.registry.Names())
		if len(outcome.Suggestions) > MaxReportedSuggestions {
			outcome.Suggestions = outcome.Suggestions[:MaxReportedSuggestions]
		}
		d.reply(ctx, event, notFoundMessage(prefix, name, outcome.Suggestions))
		d.finish(ctx, event, name, args, outcome, start)
		return outcome
	}
	outcome.Command = cmd.Name

	if reason, remaining := d.gate(ctx, cmd, event, withinLimits); reason != NoReason {
		outcome.Kind = Denied
		outcome.Reason = reason
		outcome.Remaining = remaining
		d.reply(ctx, event, deniedMessage(prefix, cmd, outcome))
		d.finish(ctx, event, name, args, outcome, start)
		return outcome
	}

	inv := &Invocation{
		Event:      event,
		Command:    cmd,
		Invoked:    name,
		Args:       args,
		Prefix:     prefix,
		Dispatcher: d,
	}
	if err := d.invoke(ctx, cmd, inv); err != nil {
		outcome.Kind = HandlerError
		outcome.Err = err
		d.logHandlerError(cmd, event, args, err)
		d.reply(ctx, event, core.Truncate(fmt.Sprintf("Command %s%s failed: %s", prefix, cmd.Name, err), MaxErrorLength))
	} else {
		outcome.Kind = Success
	}
	d.finish(ctx, event, name, args, outcome, start)
	return outcome
}

// gate applies the rate limit, permission and cooldown checks in that order.
// The cooldown is started by the same call that checks it.
func (d *Dispatcher) gate(ctx context.Context, cmd *Command, event *Event, withinLimits bool) (DenyReason, time.Duration) {
	if !withinLimits {
		return RateLimited, 0
	}
	if !d.permissions.CanUse(ctx, cmd, event.SenderID, event.ThreadID) {
		return Unauthorized, 0
	}
	if remaining, ok := d.cooldowns.Acquire(ctx, cmd, event.SenderID, event.ThreadID); !ok {
		return OnCooldown, remaining
	}
	return NoReason, 0
}

// invoke runs the handler with panic isolation and, if configured, a deadline.
func (d *Dispatcher) invoke(ctx context.Context, cmd *Command, inv *Invocation) error {
	timeout := d.config.HandlerTimeout
	if timeout <= 0 {
		return runRecovered(ctx, cmd, inv)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runRecovered(ctx, cmd, inv)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s: %v", ErrHandlerTimeout, timeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
		}
		return ctx.Err()
	}
}

func runRecovered(ctx context.Context, cmd *Command, inv *Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			err = &PanicError{Value: r, Stack: stack[:n]}
		}
	}()
	return cmd.Handler.Run(ctx, inv)
}

func (d *Dispatcher) notifyListeners(ctx context.Context, event *Event) {
	d.mu.RLock()
	listeners := make([]Listener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, fn := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					core.LogErrorF("Listener panicked on message %s: %v", event.MessageID, r)
				}
			}()
			fn(ctx, event)
		}()
	}
}

func (d *Dispatcher) reply(ctx context.Context, event *Event, text string) {
	if err := event.ReplyToThread(ctx, "%s", text); err != nil {
		core.LogErrorF("Failed to reply in thread %s: %s", event.ThreadID, err)
	}
}

func (d *Dispatcher) logHandlerError(cmd *Command, event *Event, args []string, err error) {
	fields := core.Fields{
		"command": cmd.Name,
		"user":    event.SenderID,
		"thread":  event.ThreadID,
		"args":    strings.Join(args, " "),
		"error":   err,
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		fields["stack"] = string(panicErr.Stack)
	}
	core.LogErrorFields("command failed", fields)
}

func (d *Dispatcher) finish(ctx context.Context, event *Event, invoked string, args []string, outcome Outcome, start time.Time) {
	now := d.config.Clock()
	duration := now.Sub(start)
	d.metrics.RecordDispatch(outcome, duration, now)

	rec := Record{
		ID:       outcome.DispatchID,
		Command:  outcome.Command,
		Invoked:  invoked,
		UserID:   event.SenderID,
		ThreadID: event.ThreadID,
		Args:     args,
		Success:  outcome.Kind == Success,
		Outcome:  outcome.String(),
		Duration: duration,
		At:       start,
	}
	if outcome.Err != nil {
		rec.Error = outcome.Err.Error()
	}

	defer func() {
		if r := recover(); r != nil {
			core.LogErrorF("Dispatch log panicked: %v", r)
		}
	}()
	d.log.Record(ctx, rec)
}

func notFoundMessage(prefix, name string, suggestions []string) string {
	if len(suggestions) == 0 {
		return fmt.Sprintf("Command \"%s\" not found. Use %shelp to see available commands.", name, prefix)
	}
	withPrefix := funk.Map(suggestions, func(s string) string {
		return prefix + s
	}).([]string)
	return fmt.Sprintf("Command \"%s\" not found. Did you mean: %s?", name, strings.Join(withPrefix, ", "))
}

func deniedMessage(prefix string, cmd *Command, outcome Outcome) string {
	switch outcome.Reason {
	case RateLimited:
		return "You're sending commands too quickly, please slow down."
	case Unauthorized:
		if cmd.Permission == Owner {
			return fmt.Sprintf("Only the bot owners can use %s%s.", prefix, cmd.Name)
		}
		return fmt.Sprintf("Only thread admins can use %s%s.", prefix, cmd.Name)
	case OnCooldown:
		return fmt.Sprintf("Please wait %d second(s) before using %s%s again.", outcome.RemainingSeconds(), prefix, cmd.Name)
	}
	return fmt.Sprintf("You can't use %s%s right now.", prefix, cmd.Name)
}
