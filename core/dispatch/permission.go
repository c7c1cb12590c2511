package dispatch

import (
	"context"

	"ThreadBot/core"

	"github.com/thoas/go-funk"
)

// PermissionResolver decides whether a user may run a command in a thread.
type PermissionResolver struct {
	owners map[string]bool
	admins AdminLookup
}

func NewPermissionResolver(owners []string, admins AdminLookup) *PermissionResolver {
	set := make(map[string]bool, len(owners))
	funk.ForEach(owners, func(id string) {
		set[id] = true
	})
	return &PermissionResolver{owners: set, admins: admins}
}

func (p *PermissionResolver) IsOwner(userId string) bool {
	return p.owners[userId]
}

// IsThreadAdmin asks the transport for the thread's admins. Any failure counts as "no".
func (p *PermissionResolver) IsThreadAdmin(ctx context.Context, userId, threadId string) (isAdmin bool) {
	if p.admins == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			core.LogErrorF("Admin lookup for thread %s panicked: %v", threadId, r)
			isAdmin = false
		}
	}()
	admins, err := p.admins.ThreadAdmins(ctx, threadId)
	if err != nil {
		core.LogWarnF("Admin lookup for thread %s failed, denying: %s", threadId, err)
		return false
	}
	return funk.ContainsString(admins, userId)
}

func (p *PermissionResolver) CanUse(ctx context.Context, cmd *Command, userId, threadId string) bool {
	switch cmd.Permission {
	case Everyone:
		return true
	case Owner:
		return p.IsOwner(userId)
	case Admin:
		return p.IsOwner(userId) || p.IsThreadAdmin(ctx, userId, threadId)
	default:
		return false
	}
}
