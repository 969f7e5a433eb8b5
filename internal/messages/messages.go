package messages

import (
	"context"
	"errors"
	"time"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/cipher"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
)

// Tombstone replaces the content of a soft-deleted message. Stored as-is, the
// read path never decrypts deleted rows.
const Tombstone = "This message has been deleted"

// Service owns create/edit/soft-delete for channel messages and direct
// messages. Content is encrypted before it reaches the store and hydrated back
// to plaintext on every return path, the fanout payload included.
type Service struct {
	store  store.Store
	gate   *authz.Gate
	cipher *cipher.Cipher
	router *fanout.Router
}

func New(st store.Store, gate *authz.Gate, c *cipher.Cipher, router *fanout.Router) *Service {
	return &Service{store: st, gate: gate, cipher: c, router: router}
}

// memberOf resolves the caller's membership for the scope: server membership
// for channel messages, conversation membership for direct messages.
func (s *Service) memberOf(ctx context.Context, profileID int64, scope store.Scope) (models.Member, error) {
	if scope.IsConversation() {
		member, _, err := s.gate.MemberOfConversation(ctx, profileID, scope.ConversationID)
		return member, err
	}

	channel, err := s.store.ChannelByID(ctx, scope.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Member{}, apperror.NotFound("channel not found")
	}
	if err != nil {
		return models.Member{}, apperror.Internal(err)
	}

	return s.gate.MemberOfServer(ctx, profileID, channel.ServerID)
}

func (s *Service) hydrateSender(ctx context.Context, msg *models.Message) error {
	member, err := s.store.MemberByID(ctx, msg.MemberID)
	if err != nil {
		return apperror.Internal(err)
	}
	profile, err := s.store.ProfileByID(ctx, member.ProfileID)
	if err != nil {
		return apperror.Internal(err)
	}
	msg.Sender = models.Profile{ID: profile.ID, DisplayName: profile.DisplayName, Picture: profile.Picture}
	return nil
}

func (s *Service) Post(ctx context.Context, profileID int64, scope store.Scope, content string, fileURL *string) (models.Message, error) {
	if content == "" {
		return models.Message{}, apperror.BadRequest("content is empty")
	}

	member, err := s.memberOf(ctx, profileID, scope)
	if err != nil {
		return models.Message{}, err
	}

	id, err := snowflake.Generate()
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	encrypted, err := s.cipher.Encrypt(content)
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	var encryptedFileURL *string
	if fileURL != nil {
		enc, err := s.cipher.Encrypt(*fileURL)
		if err != nil {
			return models.Message{}, apperror.Internal(err)
		}
		encryptedFileURL = &enc
	}

	now := time.Now().UnixMilli()
	msg := models.Message{
		ID:        id,
		MemberID:  member.ID,
		Content:   encrypted,
		FileURL:   encryptedFileURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if scope.IsConversation() {
		msg.ConversationID = scope.ConversationID
	} else {
		msg.ChannelID = scope.ChannelID
	}

	if err := s.store.InsertMessage(ctx, scope, msg); err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	// only the store holds ciphertext
	msg.Content = content
	msg.FileURL = fileURL
	if err := s.hydrateSender(ctx, &msg); err != nil {
		return models.Message{}, err
	}

	s.router.MessageCreated(ctx, scope, msg)
	return msg, nil
}

// Edit is owner-only: moderation may delete but never rewrite. Tombstoned
// messages cannot be edited, the conditional store update makes that hold even
// against a concurrent delete.
func (s *Service) Edit(ctx context.Context, profileID int64, scope store.Scope, messageID int64, newContent string) (models.Message, error) {
	if newContent == "" {
		return models.Message{}, apperror.Validation(apperror.FieldError{Path: "content", Message: "must not be empty"})
	}

	member, err := s.memberOf(ctx, profileID, scope)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.MessageByID(ctx, scope, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, apperror.NotFound("message not found")
	}
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}
	if msg.Deleted {
		return models.Message{}, apperror.NotFound("message not found")
	}

	if err := s.gate.Require(permissions.OpEditMessage, member.Role, msg.MemberID == member.ID); err != nil {
		return models.Message{}, err
	}

	encrypted, err := s.cipher.Encrypt(newContent)
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	now := time.Now().UnixMilli()
	ok, err := s.store.UpdateMessageIfNotDeleted(ctx, scope, messageID, encrypted, now)
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}
	if !ok {
		// deleted between the read and the conditional write
		return models.Message{}, apperror.NotFound("message not found")
	}

	msg.Content = newContent
	msg.Edited = true
	msg.UpdatedAt = now
	if msg.FileURL != nil {
		plain, err := s.cipher.Decrypt(*msg.FileURL)
		if err != nil {
			return models.Message{}, apperror.Internal(err)
		}
		msg.FileURL = &plain
	}

	s.router.MessageUpdated(ctx, scope, msg)
	return msg, nil
}

// SoftDelete tombstones the message. Idempotent: deleting an already deleted
// message succeeds and returns the same terminal record.
func (s *Service) SoftDelete(ctx context.Context, profileID int64, scope store.Scope, messageID int64) (models.Message, error) {
	member, err := s.memberOf(ctx, profileID, scope)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := s.store.MessageByID(ctx, scope, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Message{}, apperror.NotFound("message not found")
	}
	if err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	if err := s.gate.Require(permissions.OpDeleteMessage, member.Role, msg.MemberID == member.ID); err != nil {
		return models.Message{}, err
	}

	now := time.Now().UnixMilli()
	if !msg.Deleted {
		msg.UpdatedAt = now
	}
	if err := s.store.TombstoneMessage(ctx, scope, messageID, Tombstone, msg.UpdatedAt); err != nil {
		return models.Message{}, apperror.Internal(err)
	}

	msg.Deleted = true
	msg.Content = Tombstone
	msg.FileURL = nil

	s.router.MessageUpdated(ctx, scope, msg)
	return msg, nil
}

// List returns the scope's messages hydrated to plaintext, tombstones
// excepted: their content is already the fixed plaintext marker.
func (s *Service) List(ctx context.Context, profileID int64, scope store.Scope) ([]models.Message, error) {
	if _, err := s.memberOf(ctx, profileID, scope); err != nil {
		return nil, err
	}

	list, err := s.store.ListMessages(ctx, scope)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	for i := range list {
		if list[i].Deleted {
			continue
		}

		plain, err := s.cipher.Decrypt(list[i].Content)
		if err != nil {
			return nil, apperror.Internal(err)
		}
		list[i].Content = plain

		if list[i].FileURL != nil {
			plainURL, err := s.cipher.Decrypt(*list[i].FileURL)
			if err != nil {
				return nil, apperror.Internal(err)
			}
			list[i].FileURL = &plainURL
		}
	}

	return list, nil
}

// Typing publishes the caller's typing state, nothing is persisted.
func (s *Service) Typing(ctx context.Context, profileID int64, scope store.Scope, isTyping bool) error {
	member, err := s.memberOf(ctx, profileID, scope)
	if err != nil {
		return err
	}

	s.router.Typing(ctx, scope, member.ID, isTyping)
	return nil
}
