package messages_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/cipher"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/messages"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
	"discreetx-backend/internal/store/storetest"

	"go.uber.org/zap"
)

type captureBus struct {
	mutex  sync.Mutex
	topics []string
}

func (b *captureBus) Publish(_ context.Context, topic string, _ []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.topics = append(b.topics, topic)
	return nil
}

func (b *captureBus) published() []string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]string{}, b.topics...)
}

type fixture struct {
	store   *storetest.Fake
	service *messages.Service
	cipher  *cipher.Cipher
	bus     *captureBus
}

const (
	profileOwner    int64 = 1
	profileGuest    int64 = 2
	profileMod      int64 = 3
	profileOutsider int64 = 4

	serverID int64 = 10

	memberOwner int64 = 11
	memberGuest int64 = 12
	memberMod   int64 = 13

	channelGeneral int64 = 20
	channelRandom  int64 = 21

	conversationID int64 = 30
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_ = snowflake.Setup(1)

	fake := storetest.New()
	fake.Profiles[profileOwner] = models.Profile{ID: profileOwner, DisplayName: "owner"}
	fake.Profiles[profileGuest] = models.Profile{ID: profileGuest, DisplayName: "guest"}
	fake.Profiles[profileMod] = models.Profile{ID: profileMod, DisplayName: "mod"}
	fake.Profiles[profileOutsider] = models.Profile{ID: profileOutsider, DisplayName: "outsider"}

	fake.Servers[serverID] = models.Server{ID: serverID, OwnerID: profileOwner, Name: "test server"}
	fake.Members[memberOwner] = models.Member{ID: memberOwner, ServerID: serverID, ProfileID: profileOwner, Role: models.RoleAdmin}
	fake.Members[memberGuest] = models.Member{ID: memberGuest, ServerID: serverID, ProfileID: profileGuest, Role: models.RoleGuest}
	fake.Members[memberMod] = models.Member{ID: memberMod, ServerID: serverID, ProfileID: profileMod, Role: models.RoleModerator}

	fake.Channels[channelGeneral] = models.Channel{ID: channelGeneral, ServerID: serverID, Name: "general", Type: models.ChannelText}
	fake.Channels[channelRandom] = models.Channel{ID: channelRandom, ServerID: serverID, Name: "random", Type: models.ChannelText}

	fake.Conversations[conversationID] = models.Conversation{
		ID: conversationID, ServerID: serverID, MemberOneID: memberOwner, MemberTwoID: memberGuest,
	}

	c, err := cipher.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	bus := &captureBus{}
	router := fanout.NewRouter(bus, zap.NewNop().Sugar())
	gate := authz.New(fake)

	return &fixture{
		store:   fake,
		service: messages.New(fake, gate, c, router),
		cipher:  c,
		bus:     bus,
	}
}

func expectKind(t *testing.T, err error, kind apperror.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s failure, got nil", kind)
	}
	if got := apperror.KindOf(err); got != kind {
		t.Fatalf("failure kind = %s, want %s (err: %v)", got, kind, err)
	}
}

func TestPostMessageEndToEnd(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)

	msg, err := fx.service.Post(context.Background(), profileGuest, scope, "hi", nil)
	if err != nil {
		t.Fatal(err)
	}

	if msg.Content != "hi" {
		t.Errorf("returned content = %q, want plaintext %q", msg.Content, "hi")
	}
	if msg.Sender.DisplayName != "guest" {
		t.Errorf("sender = %q, want %q", msg.Sender.DisplayName, "guest")
	}

	stored := fx.store.Messages[msg.ID]
	if stored.Content == "hi" {
		t.Error("stored content is plaintext, want ciphertext")
	}
	if plain, err := fx.cipher.Decrypt(stored.Content); err != nil || plain != "hi" {
		t.Errorf("stored ciphertext does not decrypt back: %q, %v", plain, err)
	}

	topics := fx.bus.published()
	if len(topics) != 1 || topics[0] != "chat:21:messages" {
		t.Errorf("published topics = %v, want [chat:21:messages]", topics)
	}
}

func TestPostEncryptsFileURL(t *testing.T) {
	fx := newFixture(t)
	fileURL := "https://cdn.example.com/cat.png"

	msg, err := fx.service.Post(context.Background(), profileGuest, store.ChannelScope(channelRandom), "look", &fileURL)
	if err != nil {
		t.Fatal(err)
	}

	if msg.FileURL == nil || *msg.FileURL != fileURL {
		t.Errorf("returned fileUrl = %v, want plaintext", msg.FileURL)
	}
	stored := fx.store.Messages[msg.ID]
	if stored.FileURL == nil || *stored.FileURL == fileURL {
		t.Error("stored fileUrl should be ciphertext")
	}
}

func TestPostEmptyContent(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Post(context.Background(), profileGuest, store.ChannelScope(channelRandom), "", nil)
	expectKind(t, err, apperror.KindBadRequest)

	if len(fx.bus.published()) != 0 {
		t.Error("failure path must not publish")
	}
}

func TestPostOutsiderNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Post(context.Background(), profileOutsider, store.ChannelScope(channelRandom), "hi", nil)
	expectKind(t, err, apperror.KindNotFound)
}

func TestPostUnknownProfileUnauthenticated(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Post(context.Background(), 999, store.ChannelScope(channelRandom), "hi", nil)
	expectKind(t, err, apperror.KindUnauthenticated)
}

func TestPostMissingChannelNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Post(context.Background(), profileGuest, store.ChannelScope(777), "hi", nil)
	expectKind(t, err, apperror.KindNotFound)
}

func TestPostDirectMessage(t *testing.T) {
	fx := newFixture(t)
	scope := store.ConversationScope(conversationID)

	msg, err := fx.service.Post(context.Background(), profileOwner, scope, "psst", nil)
	if err != nil {
		t.Fatal(err)
	}
	if msg.ConversationID != conversationID {
		t.Errorf("conversationID = %d, want %d", msg.ConversationID, conversationID)
	}
	if _, ok := fx.store.Directs[msg.ID]; !ok {
		t.Error("direct message not stored in direct message table")
	}

	// mod is on the server but not in this conversation
	_, err = fx.service.Post(context.Background(), profileMod, scope, "intruding", nil)
	expectKind(t, err, apperror.KindNotFound)
}

func TestEditOwnMessage(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	posted, err := fx.service.Post(ctx, profileGuest, scope, "first", nil)
	if err != nil {
		t.Fatal(err)
	}

	edited, err := fx.service.Edit(ctx, profileGuest, scope, posted.ID, "second")
	if err != nil {
		t.Fatal(err)
	}

	if edited.Content != "second" || !edited.Edited {
		t.Errorf("edited message = %+v, want content=second edited=true", edited)
	}
	if stored := fx.store.Messages[posted.ID]; stored.Content == "second" {
		t.Error("edit stored plaintext, want ciphertext")
	}

	topics := fx.bus.published()
	if topics[len(topics)-1] != "chat:21:messages:update" {
		t.Errorf("edit published to %q, want chat:21:messages:update", topics[len(topics)-1])
	}
}

func TestEditOthersMessageForbidden(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	posted, err := fx.service.Post(ctx, profileGuest, scope, "mine", nil)
	if err != nil {
		t.Fatal(err)
	}

	// moderation can delete but never rewrite
	for _, caller := range []int64{profileMod, profileOwner} {
		_, err = fx.service.Edit(ctx, caller, scope, posted.ID, "hijacked")
		expectKind(t, err, apperror.KindForbidden)
	}
}

func TestEditDeletedMessageNotFound(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	posted, err := fx.service.Post(ctx, profileGuest, scope, "doomed", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.service.SoftDelete(ctx, profileGuest, scope, posted.ID); err != nil {
		t.Fatal(err)
	}

	_, err = fx.service.Edit(ctx, profileGuest, scope, posted.ID, "resurrected")
	expectKind(t, err, apperror.KindNotFound)
}

func TestEditMissingMessageNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Edit(context.Background(), profileGuest, store.ChannelScope(channelRandom), 999, "x")
	expectKind(t, err, apperror.KindNotFound)
}

func TestEditEmptyContentValidation(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.service.Edit(context.Background(), profileGuest, store.ChannelScope(channelRandom), 1, "")
	expectKind(t, err, apperror.KindValidation)
}

func TestSoftDeleteByModerator(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	posted, err := fx.service.Post(ctx, profileGuest, scope, "spam", nil)
	if err != nil {
		t.Fatal(err)
	}

	deleted, err := fx.service.SoftDelete(ctx, profileMod, scope, posted.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !deleted.Deleted || deleted.Content != messages.Tombstone {
		t.Errorf("deleted message = %+v, want tombstone", deleted)
	}
}

func TestSoftDeleteOthersByGuestForbidden(t *testing.T) {
	fx := newFixture(t)
	scope := store.ConversationScope(conversationID)
	ctx := context.Background()

	posted, err := fx.service.Post(ctx, profileOwner, scope, "keep out", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = fx.service.SoftDelete(ctx, profileGuest, scope, posted.ID)
	expectKind(t, err, apperror.KindForbidden)
}

func TestSoftDeleteIdempotent(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	fileURL := "https://cdn.example.com/file.png"
	posted, err := fx.service.Post(ctx, profileGuest, scope, "bye", &fileURL)
	if err != nil {
		t.Fatal(err)
	}

	first, err := fx.service.SoftDelete(ctx, profileGuest, scope, posted.ID)
	if err != nil {
		t.Fatal(err)
	}

	second, err := fx.service.SoftDelete(ctx, profileGuest, scope, posted.ID)
	if err != nil {
		t.Fatalf("double delete must succeed, got %v", err)
	}

	if second.Content != "This message has been deleted" {
		t.Errorf("tombstone content = %q", second.Content)
	}
	if second.FileURL != nil {
		t.Errorf("tombstone fileUrl = %v, want nil", *second.FileURL)
	}
	if first.UpdatedAt != second.UpdatedAt || first.ID != second.ID {
		t.Errorf("double delete returned a different record: %+v vs %+v", first, second)
	}
}

func TestListHydratesPlaintext(t *testing.T) {
	fx := newFixture(t)
	scope := store.ChannelScope(channelRandom)
	ctx := context.Background()

	kept, err := fx.service.Post(ctx, profileGuest, scope, "kept", nil)
	if err != nil {
		t.Fatal(err)
	}
	gone, err := fx.service.Post(ctx, profileGuest, scope, "gone", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.service.SoftDelete(ctx, profileGuest, scope, gone.ID); err != nil {
		t.Fatal(err)
	}

	list, err := fx.service.List(ctx, profileOwner, scope)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("list length = %d, want 2", len(list))
	}

	byID := map[int64]models.Message{}
	for _, m := range list {
		byID[m.ID] = m
	}
	if byID[kept.ID].Content != "kept" {
		t.Errorf("live message content = %q, want %q", byID[kept.ID].Content, "kept")
	}
	if byID[gone.ID].Content != messages.Tombstone {
		t.Errorf("deleted message content = %q, want tombstone", byID[gone.ID].Content)
	}
}

func TestTypingPublishesWithoutPersisting(t *testing.T) {
	fx := newFixture(t)
	scope := store.ConversationScope(conversationID)

	if err := fx.service.Typing(context.Background(), profileGuest, scope, true); err != nil {
		t.Fatal(err)
	}

	topics := fx.bus.published()
	if len(topics) != 1 || !strings.HasPrefix(topics[0], "chat:30:istyping:") {
		t.Errorf("typing topics = %v", topics)
	}
	if len(fx.store.Directs) != 0 {
		t.Error("typing must not persist anything")
	}
}
