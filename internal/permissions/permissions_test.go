package permissions_test

import (
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"testing"
)

var allRoles = []models.Role{models.RoleGuest, models.RoleModerator, models.RoleAdmin}

func TestEditIsOwnerOnly(t *testing.T) {
	for _, role := range allRoles {
		if !permissions.Permits(permissions.OpEditMessage, role, true) {
			t.Errorf("Permits(edit, %s, owner) = false, want true", role)
		}
		if permissions.Permits(permissions.OpEditMessage, role, false) {
			t.Errorf("Permits(edit, %s, not owner) = true, want false", role)
		}
	}
}

func TestDeleteOthersRequiresModerator(t *testing.T) {
	tests := []struct {
		role     models.Role
		expected bool
	}{
		{models.RoleGuest, false},
		{models.RoleModerator, true},
		{models.RoleAdmin, true},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			if got := permissions.Permits(permissions.OpDeleteMessage, tc.role, false); got != tc.expected {
				t.Errorf("Permits(delete, %s, not owner) = %t, want %t", tc.role, got, tc.expected)
			}
			// owners always delete their own
			if !permissions.Permits(permissions.OpDeleteMessage, tc.role, true) {
				t.Errorf("Permits(delete, %s, owner) = false, want true", tc.role)
			}
		})
	}
}

func TestStructuralChangesRequireModerator(t *testing.T) {
	structural := []permissions.Operation{
		permissions.OpCreateChannel,
		permissions.OpRenameChannel,
		permissions.OpDeleteChannel,
		permissions.OpChangeRole,
		permissions.OpKickMember,
	}

	for _, op := range structural {
		t.Run(string(op), func(t *testing.T) {
			if permissions.Permits(op, models.RoleGuest, false) {
				t.Errorf("Permits(%s, GUEST) = true, want false", op)
			}
			if !permissions.Permits(op, models.RoleModerator, false) {
				t.Errorf("Permits(%s, MODERATOR) = false, want true", op)
			}
			if !permissions.Permits(op, models.RoleAdmin, false) {
				t.Errorf("Permits(%s, ADMIN) = false, want true", op)
			}
		})
	}
}

func TestDemotingAdminRequiresAdmin(t *testing.T) {
	tests := []struct {
		name       string
		callerRole models.Role
		targetRole models.Role
		expected   bool
	}{
		{"moderator on guest", models.RoleModerator, models.RoleGuest, true},
		{"moderator on moderator", models.RoleModerator, models.RoleModerator, true},
		{"moderator on admin", models.RoleModerator, models.RoleAdmin, false},
		{"admin on admin", models.RoleAdmin, models.RoleAdmin, true},
		{"guest on guest", models.RoleGuest, models.RoleGuest, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := permissions.PermitsOnMember(permissions.OpKickMember, tc.callerRole, tc.targetRole)
			if got != tc.expected {
				t.Errorf("PermitsOnMember(kick, %s, %s) = %t, want %t", tc.callerRole, tc.targetRole, got, tc.expected)
			}
		})
	}
}

func TestGeneralChannelIsImmutable(t *testing.T) {
	tests := []struct {
		name        string
		currentName string
		newName     string
		expected    bool
	}{
		{"rename general away", "general", "random", false},
		{"rename into general", "random", "general", false},
		{"unrelated rename", "music", "memes", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := permissions.RenameAllowed(tc.currentName, tc.newName); got != tc.expected {
				t.Errorf("RenameAllowed(%q, %q) = %t, want %t", tc.currentName, tc.newName, got, tc.expected)
			}
		})
	}
}

func TestUnknownOperationDenied(t *testing.T) {
	if permissions.Permits(permissions.Operation("server:nuke"), models.RoleAdmin, true) {
		t.Error("unknown operation should always be denied")
	}
}
