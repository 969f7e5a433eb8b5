package calls

import (
	"context"
	"errors"
	"time"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
)

// Coordinator drives the call lifecycle: Requested -> Active -> {Answered,
// Declined, Cancelled} -> Ended. Active is derived as !declined && !cancelled,
// Ended is terminal. At most one call per conversation is active at any
// instant, the store's conditional insert enforces that under concurrency.
type Coordinator struct {
	store  store.Store
	gate   *authz.Gate
	router *fanout.Router
}

func New(st store.Store, gate *authz.Gate, router *fanout.Router) *Coordinator {
	return &Coordinator{store: st, gate: gate, router: router}
}

// otherProfileID resolves the profile of the conversation member that is not
// the caller, the target of call lifecycle notifications.
func (c *Coordinator) otherProfileID(ctx context.Context, conv models.Conversation, callerMemberID int64) (int64, error) {
	otherMemberID := conv.MemberOneID
	if otherMemberID == callerMemberID {
		otherMemberID = conv.MemberTwoID
	}

	other, err := c.store.MemberByID(ctx, otherMemberID)
	if err != nil {
		return 0, apperror.Internal(err)
	}

	return other.ProfileID, nil
}

// Start admits a new call. The existence check and the insert are one atomic
// store operation: of N concurrent starters on a conversation exactly one
// wins, the rest fail with Conflict.
func (c *Coordinator) Start(ctx context.Context, profileID, conversationID int64, callType models.CallType) (models.Call, error) {
	if callType != models.CallAudio && callType != models.CallVideo {
		return models.Call{}, apperror.Validation(apperror.FieldError{Path: "type", Message: "must be AUDIO or VIDEO"})
	}

	member, conv, err := c.gate.MemberOfConversation(ctx, profileID, conversationID)
	if err != nil {
		return models.Call{}, err
	}

	id, err := snowflake.Generate()
	if err != nil {
		return models.Call{}, apperror.Internal(err)
	}

	call := models.Call{
		ID:             id,
		ConversationID: conversationID,
		MemberID:       member.ID,
		Type:           callType,
		Active:         true,
		CreatedAt:      time.Now().UnixMilli(),
	}

	created, err := c.store.CreateCallIfNoneActive(ctx, call)
	if err != nil {
		return models.Call{}, apperror.Internal(err)
	}
	if !created {
		return models.Call{}, apperror.Conflict("only one concurrent call allowed")
	}

	otherProfile, err := c.otherProfileID(ctx, conv, member.ID)
	if err != nil {
		return models.Call{}, err
	}

	caller, err := c.gate.Profile(ctx, profileID)
	if err != nil {
		return models.Call{}, err
	}

	c.router.CallEvent(ctx, conv.ServerID, otherProfile, fanout.CallAnswer, map[string]any{
		"from": models.Profile{ID: caller.ID, DisplayName: caller.DisplayName, Picture: caller.Picture},
		"call": call,
	})
	return call, nil
}

// Update applies answer/decline/cancel flags and recomputes the derived
// state. A call that has ended rejects every further update.
func (c *Coordinator) Update(ctx context.Context, profileID, callID int64, answered, declined, cancelled bool) (models.Call, error) {
	call, err := c.store.CallByID(ctx, callID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Call{}, apperror.NotFound("call not found")
	}
	if err != nil {
		return models.Call{}, apperror.Internal(err)
	}

	member, conv, err := c.gate.MemberOfConversation(ctx, profileID, call.ConversationID)
	if err != nil {
		return models.Call{}, err
	}

	if call.Ended {
		return models.Call{}, apperror.Conflict("call has already ended")
	}

	active := !declined && !cancelled
	ended := !active

	ok, err := c.store.UpdateCallIfNotEnded(ctx, callID, answered, declined, cancelled, active, ended)
	if err != nil {
		return models.Call{}, apperror.Internal(err)
	}
	if !ok {
		// ended between the read and the conditional write
		return models.Call{}, apperror.Conflict("call has already ended")
	}

	call.Answered = answered
	call.Declined = declined
	call.Cancelled = cancelled
	call.Active = active
	call.Ended = ended

	otherProfile, err := c.otherProfileID(ctx, conv, member.ID)
	if err != nil {
		return models.Call{}, err
	}

	c.router.CallEvent(ctx, conv.ServerID, otherProfile, fanout.CallEdited, call)
	return call, nil
}

// End forces the terminal state unconditionally, the explicit hangup.
// Idempotent on an already ended call.
func (c *Coordinator) End(ctx context.Context, profileID, callID int64) (models.Call, error) {
	call, err := c.store.CallByID(ctx, callID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Call{}, apperror.NotFound("call not found")
	}
	if err != nil {
		return models.Call{}, apperror.Internal(err)
	}

	member, conv, err := c.gate.MemberOfConversation(ctx, profileID, call.ConversationID)
	if err != nil {
		return models.Call{}, err
	}

	if err := c.store.EndCall(ctx, callID); err != nil {
		return models.Call{}, apperror.Internal(err)
	}

	call.Active = false
	call.Ended = true

	otherProfile, err := c.otherProfileID(ctx, conv, member.ID)
	if err != nil {
		return models.Call{}, err
	}

	c.router.CallEvent(ctx, conv.ServerID, otherProfile, fanout.CallEnded, call)
	return call, nil
}
