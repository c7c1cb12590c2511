package dispatch

import (
	"fmt"
	"strings"
	"time"
)

// Permission is the minimum role needed to run a command.
type Permission int

const (
	Everyone Permission = iota
	Admin
	Owner
)

func (p Permission) String() string {
	switch p {
	case Everyone:
		return "everyone"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return fmt.Sprintf("Permission(%d)", int(p))
	}
}

func (p Permission) valid() bool {
	return p >= Everyone && p <= Owner
}

// ParsePermission accepts the names produced by Permission.String.
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "everyone":
		return Everyone, nil
	case "admin":
		return Admin, nil
	case "owner":
		return Owner, nil
	}
	return Everyone, fmt.Errorf("%w: unknown permission %q", ErrInvalidCommand, s)
}

// Command describes a registered command. It is copied on registration and
// never modified afterwards.
type Command struct {
	Name       string
	Aliases    []string
	Permission Permission
	// Zero inherits the category or global default, negative disables the cooldown.
	Cooldown time.Duration
	Category string
	Help     string
	Usage    string
	Handler  Handler
}

// HasCooldownOverride reports whether the command sets its own cooldown.
func (c *Command) HasCooldownOverride() bool {
	return c.Cooldown != 0
}

func (c *Command) Names() []string {
	return append([]string{c.Name}, c.Aliases...)
}
