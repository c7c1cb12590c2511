package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"ThreadBot/core"

	"github.com/thoas/go-funk"
)

var (
	ErrInvalidCommand   = errors.New("invalid command")
	ErrDuplicateCommand = errors.New("duplicate command")
)

// Registry maps command names and aliases to their descriptors. Names keep
// their registration order, which is also the order suggestions are offered in.
type Registry struct {
	mu       sync.RWMutex
	lookup   map[string]*Command
	commands []*Command
}

func NewRegistry() *Registry {
	return &Registry{lookup: map[string]*Command{}}
}

// Commands is the registry built-in handlers register themselves into from init().
var Commands = NewRegistry()

// Register adds cmd to the default registry and panics if it is malformed.
func Register(cmd Command) {
	Commands.MustRegister(cmd)
}

func (r *Registry) MustRegister(cmd Command) {
	if err := r.Register(cmd); err != nil {
		panic(err)
	}
}

// Register validates cmd and adds it under its name and aliases.
func (r *Registry) Register(cmd Command) error {
	normalized, err := normalizeCommand(cmd)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range normalized.Names() {
		if existing, ok := r.lookup[name]; ok {
			return fmt.Errorf("%w: %q already registered by %q", ErrDuplicateCommand, name, existing.Name)
		}
	}

	stored := &normalized
	for _, name := range stored.Names() {
		r.lookup[name] = stored
	}
	r.commands = append(r.commands, stored)

	if core.IsLogInfo() {
		core.LogInfoF("Registered command: %s (aliases %v, permission %s, category %q)",
			stored.Name, stored.Aliases, stored.Permission, stored.Category)
	}
	return nil
}

func normalizeCommand(cmd Command) (Command, error) {
	cmd.Name = strings.ToLower(strings.TrimSpace(cmd.Name))
	if err := validateName(cmd.Name); err != nil {
		return cmd, err
	}
	if cmd.Handler == nil {
		return cmd, fmt.Errorf("%w: %q has no handler", ErrInvalidCommand, cmd.Name)
	}
	if !cmd.Permission.valid() {
		return cmd, fmt.Errorf("%w: %q has unknown permission %d", ErrInvalidCommand, cmd.Name, int(cmd.Permission))
	}

	aliases := make([]string, 0, len(cmd.Aliases))
	for _, alias := range cmd.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if err := validateName(alias); err != nil {
			return cmd, fmt.Errorf("alias of %q: %w", cmd.Name, err)
		}
		if alias == cmd.Name {
			continue
		}
		aliases = append(aliases, alias)
	}
	cmd.Aliases = funk.UniqString(aliases)
	cmd.Category = strings.ToLower(strings.TrimSpace(cmd.Category))
	return cmd, nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: name %q contains whitespace", ErrInvalidCommand, name)
	}
	return nil
}

// Lookup resolves a name or alias, case-insensitively.
func (r *Registry) Lookup(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup[strings.ToLower(name)]
}

// Names returns the primary command names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.commands))
	for i, cmd := range r.commands {
		names[i] = cmd.Name
	}
	return names
}

// List returns the registered commands in registration order.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Command(nil), r.commands...)
}

// ByCategory groups commands by category, keeping registration order inside each group.
func (r *Registry) ByCategory() map[string][]*Command {
	groups := map[string][]*Command{}
	funk.ForEach(r.List(), func(cmd *Command) {
		groups[cmd.Category] = append(groups[cmd.Category], cmd)
	})
	return groups
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
