package authz

import (
	"context"
	"errors"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"discreetx-backend/internal/store"
)

// Gate resolves the caller's identity and membership for a target resource and
// evaluates the role matrix. Read-only, it never mutates the store. Each
// Member* method returns the resolved member so callers avoid a second lookup.
type Gate struct {
	store store.Store
}

func New(st store.Store) *Gate {
	return &Gate{store: st}
}

// Profile resolves the caller's profile. A credential naming no profile is not
// an identity.
func (g *Gate) Profile(ctx context.Context, profileID int64) (models.Profile, error) {
	profile, err := g.store.ProfileByID(ctx, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Profile{}, apperror.Unauthenticated("no resolvable identity")
	}
	if err != nil {
		return models.Profile{}, apperror.Internal(err)
	}
	return profile, nil
}

// MemberOfServer loads the caller's membership on the server, NotFound when
// the caller does not belong to it.
func (g *Gate) MemberOfServer(ctx context.Context, profileID, serverID int64) (models.Member, error) {
	if _, err := g.Profile(ctx, profileID); err != nil {
		return models.Member{}, err
	}

	member, err := g.store.MemberByProfile(ctx, serverID, profileID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Member{}, apperror.NotFound("member not found")
	}
	if err != nil {
		return models.Member{}, apperror.Internal(err)
	}
	return member, nil
}

// MemberOfConversation verifies the caller is one of the conversation's two
// members and returns that member plus the conversation.
func (g *Gate) MemberOfConversation(ctx context.Context, profileID, conversationID int64) (models.Member, models.Conversation, error) {
	if _, err := g.Profile(ctx, profileID); err != nil {
		return models.Member{}, models.Conversation{}, err
	}

	conv, err := g.store.ConversationByID(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Member{}, models.Conversation{}, apperror.NotFound("conversation not found")
	}
	if err != nil {
		return models.Member{}, models.Conversation{}, apperror.Internal(err)
	}

	for _, memberID := range []int64{conv.MemberOneID, conv.MemberTwoID} {
		member, err := g.store.MemberByID(ctx, memberID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.Member{}, models.Conversation{}, apperror.Internal(err)
		}
		if member.ProfileID == profileID {
			return member, conv, nil
		}
	}

	return models.Member{}, models.Conversation{}, apperror.NotFound("conversation not found")
}

// Require evaluates the role matrix for the resolved member, Forbidden on
// denial.
func (g *Gate) Require(op permissions.Operation, callerRole models.Role, isOwner bool) error {
	if !permissions.Permits(op, callerRole, isOwner) {
		return apperror.Forbidden("you are not allowed to do that")
	}
	return nil
}

// RequireOnMember evaluates member-targeting operations, where acting on an
// ADMIN needs ADMIN.
func (g *Gate) RequireOnMember(op permissions.Operation, callerRole, targetRole models.Role) error {
	if !permissions.PermitsOnMember(op, callerRole, targetRole) {
		return apperror.Forbidden("you are not allowed to do that")
	}
	return nil
}
