package permissions

import "discreetx-backend/internal/models"

type Operation string

const (
	OpEditMessage   Operation = "message:edit"
	OpDeleteMessage Operation = "message:delete"
	OpCreateChannel Operation = "channel:create"
	OpRenameChannel Operation = "channel:rename"
	OpDeleteChannel Operation = "channel:delete"
	OpChangeRole    Operation = "member:changeRole"
	OpKickMember    Operation = "member:kick"
)

// ReservedChannelName can never be renamed, deleted or taken by another channel.
const ReservedChannelName = "general"

// Permits is the pure role matrix: (operation, caller role, ownership) to
// allow/deny. Ownership always permits acting on one's own message. Editing is
// owner-only regardless of role, moderation can delete but never rewrite.
// Structural changes require MODERATOR or above.
func Permits(op Operation, callerRole models.Role, isOwner bool) bool {
	switch op {
	case OpEditMessage:
		return isOwner
	case OpDeleteMessage:
		return isOwner || callerRole.AtLeast(models.RoleModerator)
	case OpCreateChannel, OpRenameChannel, OpDeleteChannel, OpChangeRole, OpKickMember:
		return callerRole.AtLeast(models.RoleModerator)
	default:
		return false
	}
}

// PermitsOnMember refines Permits for member-targeting operations: demoting or
// removing an ADMIN requires the caller to be ADMIN.
func PermitsOnMember(op Operation, callerRole models.Role, targetRole models.Role) bool {
	if !Permits(op, callerRole, false) {
		return false
	}
	if targetRole == models.RoleAdmin {
		return callerRole == models.RoleAdmin
	}
	return true
}

// RenameAllowed rejects any rename touching the reserved channel name,
// regardless of role.
func RenameAllowed(currentName, newName string) bool {
	return currentName != ReservedChannelName && newName != ReservedChannelName
}
