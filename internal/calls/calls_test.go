package calls_test

import (
	"context"
	"sync"
	"testing"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/calls"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/snowflake"
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

const (
	profileCaller int64 = 1
	profileCallee int64 = 2
	profileOther  int64 = 3

	serverID       int64 = 10
	memberCaller   int64 = 11
	memberCallee   int64 = 12
	memberOther    int64 = 13
	conversationID int64 = 30
)

type fixture struct {
	store       *storetest.Fake
	coordinator *calls.Coordinator
	bus         *captureBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_ = snowflake.Setup(1)

	fake := storetest.New()
	fake.Profiles[profileCaller] = models.Profile{ID: profileCaller, DisplayName: "caller"}
	fake.Profiles[profileCallee] = models.Profile{ID: profileCallee, DisplayName: "callee"}
	fake.Profiles[profileOther] = models.Profile{ID: profileOther, DisplayName: "other"}

	fake.Servers[serverID] = models.Server{ID: serverID, OwnerID: profileCaller}
	fake.Members[memberCaller] = models.Member{ID: memberCaller, ServerID: serverID, ProfileID: profileCaller, Role: models.RoleAdmin}
	fake.Members[memberCallee] = models.Member{ID: memberCallee, ServerID: serverID, ProfileID: profileCallee, Role: models.RoleGuest}
	fake.Members[memberOther] = models.Member{ID: memberOther, ServerID: serverID, ProfileID: profileOther, Role: models.RoleGuest}

	fake.Conversations[conversationID] = models.Conversation{
		ID: conversationID, ServerID: serverID, MemberOneID: memberCaller, MemberTwoID: memberCallee,
	}

	bus := &captureBus{}
	router := fanout.NewRouter(bus, zap.NewNop().Sugar())

	return &fixture{
		store:       fake,
		coordinator: calls.New(fake, authz.New(fake), router),
		bus:         bus,
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

func TestStartCall(t *testing.T) {
	fx := newFixture(t)

	call, err := fx.coordinator.Start(context.Background(), profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}

	if !call.Active || call.Ended || call.Answered || call.Declined || call.Cancelled {
		t.Errorf("fresh call flags = %+v, want active only", call)
	}
	if call.MemberID != memberCaller {
		t.Errorf("initiator member = %d, want %d", call.MemberID, memberCaller)
	}

	topics := fx.bus.published()
	if len(topics) != 1 || topics[0] != "server:10:call:2:answer" {
		t.Errorf("published topics = %v, want [server:10:call:2:answer]", topics)
	}
}

func TestStartCallSecondConflicts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio); err != nil {
		t.Fatal(err)
	}

	_, err := fx.coordinator.Start(ctx, profileCallee, conversationID, models.CallVideo)
	expectKind(t, err, apperror.KindConflict)
}

func TestStartCallConcurrentSingleWinner(t *testing.T) {
	fx := newFixture(t)
	const n = 16

	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.coordinator.Start(context.Background(), profileCaller, conversationID, models.CallAudio)
		}(i)
	}
	wg.Wait()

	winners, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case apperror.KindOf(err) == apperror.KindConflict:
			conflicts++
		default:
			t.Errorf("unexpected failure: %v", err)
		}
	}

	if winners != 1 || conflicts != n-1 {
		t.Errorf("winners = %d, conflicts = %d, want 1 and %d", winners, conflicts, n-1)
	}
}

func TestStartCallAfterEndAdmitsAgain(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fx.coordinator.End(ctx, profileCaller, first.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := fx.coordinator.Start(ctx, profileCallee, conversationID, models.CallVideo); err != nil {
		t.Fatalf("new call after hangup should be admitted, got %v", err)
	}
}

func TestStartCallInvalidType(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coordinator.Start(context.Background(), profileCaller, conversationID, models.CallType("SMOKE_SIGNAL"))
	expectKind(t, err, apperror.KindValidation)
}

func TestStartCallNonParticipant(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coordinator.Start(context.Background(), profileOther, conversationID, models.CallAudio)
	expectKind(t, err, apperror.KindNotFound)
}

func TestStartCallMissingConversation(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coordinator.Start(context.Background(), profileCaller, 999, models.CallAudio)
	expectKind(t, err, apperror.KindNotFound)
}

func TestUpdateDeclinedEndsCall(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := fx.coordinator.Update(ctx, profileCallee, call.ID, false, true, false)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Active || !updated.Ended {
		t.Errorf("declined call = %+v, want active=false ended=true", updated)
	}

	// terminal state rejects every further update
	_, err = fx.coordinator.Update(ctx, profileCaller, call.ID, true, false, false)
	expectKind(t, err, apperror.KindConflict)
}

func TestUpdateAnsweredStaysActive(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallVideo)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := fx.coordinator.Update(ctx, profileCallee, call.ID, true, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Active || updated.Ended || !updated.Answered {
		t.Errorf("answered call = %+v, want active answered", updated)
	}

	topics := fx.bus.published()
	if topics[len(topics)-1] != "server:10:call:1:edited" {
		t.Errorf("update published to %q, want server:10:call:1:edited", topics[len(topics)-1])
	}
}

func TestUpdateRetrySameFlagsNotConflict(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallVideo)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := fx.coordinator.Update(ctx, profileCallee, call.ID, true, false, false); err != nil {
		t.Fatal(err)
	}

	// a client retry resends identical flags; the call is still live, so the
	// update must match even though it changes nothing
	updated, err := fx.coordinator.Update(ctx, profileCallee, call.ID, true, false, false)
	if err != nil {
		t.Fatalf("identical retry on a live call failed: %v", err)
	}
	if !updated.Active || updated.Ended || !updated.Answered {
		t.Errorf("retried call = %+v, want active answered", updated)
	}
}

func TestUpdateCancelledEndsCall(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := fx.coordinator.Update(ctx, profileCaller, call.ID, false, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Active || !updated.Ended || !updated.Cancelled {
		t.Errorf("cancelled call = %+v, want ended", updated)
	}
}

func TestUpdateMissingCallNotFound(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.coordinator.Update(context.Background(), profileCaller, 999, true, false, false)
	expectKind(t, err, apperror.KindNotFound)
}

func TestEndCallIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}

	first, err := fx.coordinator.End(ctx, profileCaller, call.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fx.coordinator.End(ctx, profileCallee, call.ID)
	if err != nil {
		t.Fatalf("ending an ended call must succeed, got %v", err)
	}

	if !first.Ended || !second.Ended || first.Active || second.Active {
		t.Errorf("ended call flags wrong: %+v / %+v", first, second)
	}

	stored, err := fx.store.CallByID(ctx, call.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.Ended || stored.Active {
		t.Errorf("stored call = %+v, want terminal", stored)
	}
}

func TestEndCallNonParticipant(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	call, err := fx.coordinator.Start(ctx, profileCaller, conversationID, models.CallAudio)
	if err != nil {
		t.Fatal(err)
	}

	_, err = fx.coordinator.End(ctx, profileOther, call.ID)
	expectKind(t, err, apperror.KindNotFound)
}
