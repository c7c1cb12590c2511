package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"ThreadBot/core"
	"ThreadBot/core/dispatch"

	"github.com/thoas/go-funk"
)

type help struct{}

func init() {
	dispatch.Register(dispatch.Command{
		Name:     "help",
		Aliases:  []string{"h", "commands"},
		Category: "utility",
		Help:     "List commands, show details for one command, or search for commands",
		Usage:    "[command or search]",
		Handler:  &help{},
	})
}

func (*help) Run(ctx context.Context, inv *dispatch.Invocation) error {
	registry := inv.Dispatcher.Registry()
	if len(inv.Args) == 0 {
		return inv.ReplyToThread(ctx, listCommands(registry, inv.Prefix))
	}

	query := strings.ToLower(strings.Join(inv.Args, " "))
	if cmd := registry.Lookup(query); cmd != nil {
		return inv.ReplyToThread(ctx, describeCommand(cmd, inv.Prefix, inv.Dispatcher.Cooldowns().Duration(cmd)))
	}

	if matches := dispatch.Search(query, registry.List()); len(matches) > 0 {
		return inv.ReplyToThread(ctx, "No command named \"%s\". Matching commands: %s",
			query, strings.Join(withPrefix(inv.Prefix, funk.Map(matches, func(c *dispatch.Command) string {
				return c.Name
			}).([]string)), ", "))
	}
	if suggestions := dispatch.Suggest(query, registry.Names()); len(suggestions) > 0 {
		return inv.ReplyToThread(ctx, "No command named \"%s\". Did you mean: %s?",
			query, strings.Join(withPrefix(inv.Prefix, suggestions), ", "))
	}
	return inv.ReplyToThread(ctx, "No command named \"%s\".", query)
}

func withPrefix(prefix string, names []string) []string {
	return funk.Map(names, func(name string) string {
		return prefix + name
	}).([]string)
}

func listCommands(registry *dispatch.Registry, prefix string) string {
	groups := registry.ByCategory()
	categories := funk.Keys(groups).([]string)
	sort.Strings(categories)

	var output []string
	output = append(output, "**Available commands**:")
	for _, category := range categories {
		names := funk.Map(groups[category], func(c *dispatch.Command) string {
			return prefix + c.Name
		}).([]string)
		title := category
		if title == "" {
			title = "other"
		}
		output = append(output, fmt.Sprintf("\t**%s**: %s", title, strings.Join(names, ", ")))
	}
	output = append(output, fmt.Sprintf("Use %shelp <command> for details.", prefix))
	return strings.Join(output, "\n")
}

func describeCommand(cmd *dispatch.Command, prefix string, cooldown time.Duration) string {
	var output []string
	usage := prefix + cmd.Name
	if cmd.Usage != "" {
		usage += " " + cmd.Usage
	}
	output = append(output, fmt.Sprintf("**%s**", usage))
	if cmd.Help != "" {
		output = append(output, cmd.Help)
	}
	if len(cmd.Aliases) > 0 {
		output = append(output, "Aliases: "+strings.Join(withPrefix(prefix, cmd.Aliases), ", "))
	}
	if cmd.Permission != dispatch.Everyone {
		output = append(output, "Requires: "+cmd.Permission.String())
	}
	if cooldown > 0 {
		output = append(output, fmt.Sprintf("Cooldown: %ds", core.CeilSeconds(cooldown)))
	}
	return strings.Join(output, "\n")
}
