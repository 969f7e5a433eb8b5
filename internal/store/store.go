package store

import (
	"context"
	"errors"

	"discreetx-backend/internal/models"
)

// ErrNotFound is returned by every point lookup that matches no row.
var ErrNotFound = errors.New("not found")

// Scope identifies where a message lives: a server channel or a direct
// conversation. Exactly one field is non-zero.
type Scope struct {
	ChannelID      int64
	ConversationID int64
}

func ChannelScope(channelID int64) Scope   { return Scope{ChannelID: channelID} }
func ConversationScope(convID int64) Scope { return Scope{ConversationID: convID} }
func (s Scope) IsConversation() bool       { return s.ConversationID != 0 }
func (s Scope) ID() int64 {
	if s.IsConversation() {
		return s.ConversationID
	}
	return s.ChannelID
}

// Store is the durable persistence collaborator. Methods whose name carries a
// condition (...IfNotDeleted, ...IfNoneActive, ...IfNotEnded, ...ExceptGeneral)
// enforce that condition in a single conditional statement: the invariant check
// and the write are atomic with respect to concurrent callers, never a separate
// read followed by a write. Such methods report whether the write applied.
type Store interface {
	CreateProfile(ctx context.Context, p models.Profile) error
	ProfileByID(ctx context.Context, id int64) (models.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (models.Profile, error)
	ProfileExists(ctx context.Context, id int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, displayName, picture string) error

	// CreateServer inserts the server, its owner as an ADMIN member and the
	// initial reserved channel in one transaction.
	CreateServer(ctx context.Context, srv models.Server, owner models.Member, general models.Channel) error
	ServerByID(ctx context.Context, id int64) (models.Server, error)
	ServersForProfile(ctx context.Context, profileID int64) ([]models.Server, error)
	RenameServer(ctx context.Context, id int64, name string) error
	DeleteServer(ctx context.Context, id int64) error

	AddMember(ctx context.Context, m models.Member) error
	MemberByID(ctx context.Context, id int64) (models.Member, error)
	MemberByProfile(ctx context.Context, serverID, profileID int64) (models.Member, error)
	MembersForServer(ctx context.Context, serverID int64) ([]models.Member, error)
	UpdateMemberRole(ctx context.Context, memberID int64, role models.Role) error
	RemoveMember(ctx context.Context, memberID int64) error

	CreateChannel(ctx context.Context, ch models.Channel) error
	ChannelByID(ctx context.Context, id int64) (models.Channel, error)
	ChannelsForServer(ctx context.Context, serverID int64) ([]models.Channel, error)
	RenameChannelExceptGeneral(ctx context.Context, id int64, name string) (bool, error)
	DeleteChannelExceptGeneral(ctx context.Context, id int64) (bool, error)

	// GetOrCreateConversation returns the conversation for the unordered member
	// pair, creating it under newID when absent. The pair-uniqueness invariant
	// is the table's unique constraint, concurrent creators converge on one row.
	GetOrCreateConversation(ctx context.Context, newID, serverID, memberA, memberB int64) (models.Conversation, error)
	ConversationByID(ctx context.Context, id int64) (models.Conversation, error)

	InsertMessage(ctx context.Context, scope Scope, m models.Message) error
	MessageByID(ctx context.Context, scope Scope, id int64) (models.Message, error)
	ListMessages(ctx context.Context, scope Scope) ([]models.Message, error)
	// UpdateMessageIfNotDeleted applies the edit only when the row is not
	// tombstoned, reporting false otherwise. Edits never resurrect a deleted row.
	UpdateMessageIfNotDeleted(ctx context.Context, scope Scope, id int64, content string, updatedAt int64) (bool, error)
	// TombstoneMessage is idempotent: re-deleting an already tombstoned row
	// rewrites the same terminal state.
	TombstoneMessage(ctx context.Context, scope Scope, id int64, tombstone string, updatedAt int64) error

	// CreateCallIfNoneActive admits the call only when the conversation has no
	// call with active=true, in one statement. Exactly one of N concurrent
	// creators wins.
	CreateCallIfNoneActive(ctx context.Context, c models.Call) (bool, error)
	CallByID(ctx context.Context, id int64) (models.Call, error)
	// UpdateCallIfNotEnded rejects writes to a terminal call, reporting false.
	UpdateCallIfNotEnded(ctx context.Context, id int64, answered, declined, cancelled, active, ended bool) (bool, error)
	// EndCall unconditionally forces active=false, ended=true. Idempotent.
	EndCall(ctx context.Context, id int64) error
}
