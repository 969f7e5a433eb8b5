// Package storetest provides an in-memory Store with the same conditional
// semantics as the SQL implementation, for service tests. A single mutex
// makes every method atomic, so concurrency properties (call admission,
// edit-vs-delete races) hold the way they do against a real database.
package storetest

import (
	"context"
	"sync"

	"discreetx-backend/internal/models"
	"discreetx-backend/internal/store"
)

type Fake struct {
	mutex sync.Mutex

	Profiles      map[int64]models.Profile
	Servers       map[int64]models.Server
	Members       map[int64]models.Member
	Channels      map[int64]models.Channel
	Conversations map[int64]models.Conversation
	Messages      map[int64]models.Message // channel messages
	Directs       map[int64]models.Message // direct messages
	Calls         map[int64]models.Call
}

func New() *Fake {
	return &Fake{
		Profiles:      make(map[int64]models.Profile),
		Servers:       make(map[int64]models.Server),
		Members:       make(map[int64]models.Member),
		Channels:      make(map[int64]models.Channel),
		Conversations: make(map[int64]models.Conversation),
		Messages:      make(map[int64]models.Message),
		Directs:       make(map[int64]models.Message),
		Calls:         make(map[int64]models.Call),
	}
}

var _ store.Store = (*Fake)(nil)

func (f *Fake) messageTable(scope store.Scope) map[int64]models.Message {
	if scope.IsConversation() {
		return f.Directs
	}
	return f.Messages
}

// hydrateSender mirrors the join the SQL store does on reads.
func (f *Fake) hydrateSender(m models.Message) models.Message {
	if member, ok := f.Members[m.MemberID]; ok {
		m.Sender = f.Profiles[member.ProfileID]
	}
	return m
}

func (f *Fake) CreateProfile(_ context.Context, p models.Profile) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Profiles[p.ID] = p
	return nil
}

func (f *Fake) ProfileByID(_ context.Context, id int64) (models.Profile, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	p, ok := f.Profiles[id]
	if !ok {
		return models.Profile{}, store.ErrNotFound
	}
	return p, nil
}

func (f *Fake) ProfileByEmail(_ context.Context, email string) (models.Profile, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, p := range f.Profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return models.Profile{}, store.ErrNotFound
}

func (f *Fake) ProfileExists(_ context.Context, id int64) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	_, ok := f.Profiles[id]
	return ok, nil
}

func (f *Fake) UpdateProfile(_ context.Context, id int64, displayName, picture string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	p, ok := f.Profiles[id]
	if !ok {
		return store.ErrNotFound
	}
	p.DisplayName = displayName
	p.Picture = picture
	f.Profiles[id] = p
	return nil
}

func (f *Fake) CreateServer(_ context.Context, srv models.Server, owner models.Member, general models.Channel) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Servers[srv.ID] = srv
	f.Members[owner.ID] = owner
	f.Channels[general.ID] = general
	return nil
}

func (f *Fake) ServerByID(_ context.Context, id int64) (models.Server, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	srv, ok := f.Servers[id]
	if !ok {
		return models.Server{}, store.ErrNotFound
	}
	return srv, nil
}

func (f *Fake) ServersForProfile(_ context.Context, profileID int64) ([]models.Server, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	servers := []models.Server{}
	for _, m := range f.Members {
		if m.ProfileID == profileID {
			if srv, ok := f.Servers[m.ServerID]; ok {
				servers = append(servers, srv)
			}
		}
	}
	return servers, nil
}

func (f *Fake) RenameServer(_ context.Context, id int64, name string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if srv, ok := f.Servers[id]; ok {
		srv.Name = name
		f.Servers[id] = srv
	}
	return nil
}

func (f *Fake) DeleteServer(_ context.Context, id int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.Servers, id)
	return nil
}

func (f *Fake) AddMember(_ context.Context, m models.Member) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Members[m.ID] = m
	return nil
}

func (f *Fake) MemberByID(_ context.Context, id int64) (models.Member, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	m, ok := f.Members[id]
	if !ok {
		return models.Member{}, store.ErrNotFound
	}
	return m, nil
}

func (f *Fake) MemberByProfile(_ context.Context, serverID, profileID int64) (models.Member, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, m := range f.Members {
		if m.ServerID == serverID && m.ProfileID == profileID {
			return m, nil
		}
	}
	return models.Member{}, store.ErrNotFound
}

func (f *Fake) MembersForServer(_ context.Context, serverID int64) ([]models.Member, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	members := []models.Member{}
	for _, m := range f.Members {
		if m.ServerID == serverID {
			members = append(members, m)
		}
	}
	return members, nil
}

func (f *Fake) UpdateMemberRole(_ context.Context, memberID int64, role models.Role) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if m, ok := f.Members[memberID]; ok {
		m.Role = role
		f.Members[memberID] = m
	}
	return nil
}

func (f *Fake) RemoveMember(_ context.Context, memberID int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.Members, memberID)
	return nil
}

func (f *Fake) CreateChannel(_ context.Context, ch models.Channel) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Channels[ch.ID] = ch
	return nil
}

func (f *Fake) ChannelByID(_ context.Context, id int64) (models.Channel, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ch, ok := f.Channels[id]
	if !ok {
		return models.Channel{}, store.ErrNotFound
	}
	return ch, nil
}

func (f *Fake) ChannelsForServer(_ context.Context, serverID int64) ([]models.Channel, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	channels := []models.Channel{}
	for _, ch := range f.Channels {
		if ch.ServerID == serverID {
			channels = append(channels, ch)
		}
	}
	return channels, nil
}

func (f *Fake) RenameChannelExceptGeneral(_ context.Context, id int64, name string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ch, ok := f.Channels[id]
	if !ok || ch.Name == "general" {
		return false, nil
	}
	ch.Name = name
	f.Channels[id] = ch
	return true, nil
}

func (f *Fake) DeleteChannelExceptGeneral(_ context.Context, id int64) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ch, ok := f.Channels[id]
	if !ok || ch.Name == "general" {
		return false, nil
	}
	delete(f.Channels, id)
	return true, nil
}

func (f *Fake) GetOrCreateConversation(_ context.Context, newID, serverID, memberA, memberB int64) (models.Conversation, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	low, high := memberA, memberB
	if low > high {
		low, high = high, low
	}

	for _, conv := range f.Conversations {
		if conv.MemberOneID == low && conv.MemberTwoID == high {
			return conv, nil
		}
	}

	conv := models.Conversation{ID: newID, ServerID: serverID, MemberOneID: low, MemberTwoID: high}
	f.Conversations[newID] = conv
	return conv, nil
}

func (f *Fake) ConversationByID(_ context.Context, id int64) (models.Conversation, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	conv, ok := f.Conversations[id]
	if !ok {
		return models.Conversation{}, store.ErrNotFound
	}
	return conv, nil
}

func (f *Fake) InsertMessage(_ context.Context, scope store.Scope, m models.Message) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.messageTable(scope)[m.ID] = m
	return nil
}

func (f *Fake) MessageByID(_ context.Context, scope store.Scope, id int64) (models.Message, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	m, ok := f.messageTable(scope)[id]
	if !ok {
		return models.Message{}, store.ErrNotFound
	}
	return f.hydrateSender(m), nil
}

func (f *Fake) ListMessages(_ context.Context, scope store.Scope) ([]models.Message, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	list := []models.Message{}
	for _, m := range f.messageTable(scope) {
		if (scope.IsConversation() && m.ConversationID == scope.ConversationID) ||
			(!scope.IsConversation() && m.ChannelID == scope.ChannelID) {
			list = append(list, f.hydrateSender(m))
		}
	}
	return list, nil
}

func (f *Fake) UpdateMessageIfNotDeleted(_ context.Context, scope store.Scope, id int64, content string, updatedAt int64) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	table := f.messageTable(scope)
	m, ok := table[id]
	if !ok || m.Deleted {
		return false, nil
	}
	m.Content = content
	m.Edited = true
	m.UpdatedAt = updatedAt
	table[id] = m
	return true, nil
}

func (f *Fake) TombstoneMessage(_ context.Context, scope store.Scope, id int64, tombstone string, updatedAt int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	table := f.messageTable(scope)
	if m, ok := table[id]; ok {
		m.Deleted = true
		m.Content = tombstone
		m.FileURL = nil
		m.UpdatedAt = updatedAt
		table[id] = m
	}
	return nil
}

func (f *Fake) CreateCallIfNoneActive(_ context.Context, c models.Call) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, existing := range f.Calls {
		if existing.ConversationID == c.ConversationID && existing.Active {
			return false, nil
		}
	}
	f.Calls[c.ID] = c
	return true, nil
}

func (f *Fake) CallByID(_ context.Context, id int64) (models.Call, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	c, ok := f.Calls[id]
	if !ok {
		return models.Call{}, store.ErrNotFound
	}
	return c, nil
}

func (f *Fake) UpdateCallIfNotEnded(_ context.Context, id int64, answered, declined, cancelled, active, ended bool) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	c, ok := f.Calls[id]
	if !ok || c.Ended {
		return false, nil
	}
	c.Answered = answered
	c.Declined = declined
	c.Cancelled = cancelled
	c.Active = active
	c.Ended = ended
	f.Calls[id] = c
	return true, nil
}

func (f *Fake) EndCall(_ context.Context, id int64) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if c, ok := f.Calls[id]; ok {
		c.Active = false
		c.Ended = true
		f.Calls[id] = c
	}
	return nil
}
