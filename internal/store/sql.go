package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"discreetx-backend/internal/models"

	"github.com/go-sql-driver/mysql"
)

// SQL implements Store over database/sql, mysql in production and sqlite in
// self-contained mode. Both dialects share every query except the two
// conditional inserts, which mysql spells with FROM DUAL.
type SQL struct {
	db              *sql.DB
	callAdmitInsert string
	convAdmitInsert string
}

func NewSQL(db *sql.DB, selfContained bool) *SQL {
	fromDual := " FROM DUAL"
	if selfContained {
		fromDual = ""
	}

	return &SQL{
		db: db,
		callAdmitInsert: fmt.Sprintf(`
			INSERT INTO calls (id, conversation_id, member_id, type, active, answered, declined, cancelled, ended, created_at)
			SELECT ?, ?, ?, ?, TRUE, FALSE, FALSE, FALSE, FALSE, ?%s
			WHERE NOT EXISTS (SELECT 1 FROM calls WHERE conversation_id = ? AND active)`, fromDual),
		convAdmitInsert: fmt.Sprintf(`
			INSERT INTO conversations (id, server_id, member_low, member_high)
			SELECT ?, ?, ?, ?%s
			WHERE NOT EXISTS (SELECT 1 FROM conversations WHERE member_low = ? AND member_high = ?)`, fromDual),
	}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *SQL) CreateProfile(ctx context.Context, p models.Profile) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (id, email, display_name, picture, password) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Email, p.DisplayName, p.Picture, p.Password)
	return err
}

func (s *SQL) ProfileByID(ctx context.Context, id int64) (models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, picture, password FROM profiles WHERE id = ?", id).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.Picture, &p.Password)
	return p, notFound(err)
}

func (s *SQL) ProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	var p models.Profile
	err := s.db.QueryRowContext(ctx,
		"SELECT id, email, display_name, picture, password FROM profiles WHERE email = ?", email).
		Scan(&p.ID, &p.Email, &p.DisplayName, &p.Picture, &p.Password)
	return p, notFound(err)
}

func (s *SQL) ProfileExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM profiles WHERE id = ?)", id).Scan(&exists)
	return exists, err
}

func (s *SQL) UpdateProfile(ctx context.Context, id int64, displayName, picture string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE profiles SET display_name = ?, picture = ? WHERE id = ?",
		displayName, picture, id)
	return err
}

func (s *SQL) CreateServer(ctx context.Context, srv models.Server, owner models.Member, general models.Channel) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO servers (id, owner_id, name, picture) VALUES (?, ?, ?, ?)",
		srv.ID, srv.OwnerID, srv.Name, srv.Picture)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO members (id, server_id, profile_id, role) VALUES (?, ?, ?, ?)",
		owner.ID, owner.ServerID, owner.ProfileID, owner.Role)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO channels (id, server_id, name, type) VALUES (?, ?, ?, ?)",
		general.ID, general.ServerID, general.Name, general.Type)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQL) ServerByID(ctx context.Context, id int64) (models.Server, error) {
	var srv models.Server
	err := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, picture FROM servers WHERE id = ?", id).
		Scan(&srv.ID, &srv.OwnerID, &srv.Name, &srv.Picture)
	return srv, notFound(err)
}

func (s *SQL) ServersForProfile(ctx context.Context, profileID int64) ([]models.Server, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT s.id, s.owner_id, s.name, s.picture FROM servers s JOIN members m ON s.id = m.server_id WHERE m.profile_id = ?",
		profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	servers := []models.Server{}
	for rows.Next() {
		var srv models.Server
		if err := rows.Scan(&srv.ID, &srv.OwnerID, &srv.Name, &srv.Picture); err != nil {
			return nil, err
		}
		servers = append(servers, srv)
	}
	return servers, rows.Err()
}

func (s *SQL) RenameServer(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE servers SET name = ? WHERE id = ?", name, id)
	return err
}

func (s *SQL) DeleteServer(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM servers WHERE id = ?", id)
	return err
}

func (s *SQL) AddMember(ctx context.Context, m models.Member) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO members (id, server_id, profile_id, role) VALUES (?, ?, ?, ?)",
		m.ID, m.ServerID, m.ProfileID, m.Role)
	return err
}

func (s *SQL) MemberByID(ctx context.Context, id int64) (models.Member, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx,
		"SELECT id, server_id, profile_id, role FROM members WHERE id = ?", id).
		Scan(&m.ID, &m.ServerID, &m.ProfileID, &m.Role)
	return m, notFound(err)
}

func (s *SQL) MemberByProfile(ctx context.Context, serverID, profileID int64) (models.Member, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx,
		"SELECT id, server_id, profile_id, role FROM members WHERE server_id = ? AND profile_id = ?",
		serverID, profileID).
		Scan(&m.ID, &m.ServerID, &m.ProfileID, &m.Role)
	return m, notFound(err)
}

func (s *SQL) MembersForServer(ctx context.Context, serverID int64) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, server_id, profile_id, role FROM members WHERE server_id = ?", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.ServerID, &m.ProfileID, &m.Role); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQL) UpdateMemberRole(ctx context.Context, memberID int64, role models.Role) error {
	_, err := s.db.ExecContext(ctx, "UPDATE members SET role = ? WHERE id = ?", role, memberID)
	return err
}

func (s *SQL) RemoveMember(ctx context.Context, memberID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM members WHERE id = ?", memberID)
	return err
}

func (s *SQL) CreateChannel(ctx context.Context, ch models.Channel) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO channels (id, server_id, name, type) VALUES (?, ?, ?, ?)",
		ch.ID, ch.ServerID, ch.Name, ch.Type)
	return err
}

func (s *SQL) ChannelByID(ctx context.Context, id int64) (models.Channel, error) {
	var ch models.Channel
	err := s.db.QueryRowContext(ctx,
		"SELECT id, server_id, name, type FROM channels WHERE id = ?", id).
		Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Type)
	return ch, notFound(err)
}

func (s *SQL) ChannelsForServer(ctx context.Context, serverID int64) ([]models.Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, server_id, name, type FROM channels WHERE server_id = ?", serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		var ch models.Channel
		if err := rows.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Type); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (s *SQL) RenameChannelExceptGeneral(ctx context.Context, id int64, name string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE channels SET name = ? WHERE id = ? AND name <> 'general'", name, id)
	if err != nil {
		return false, err
	}
	return applied(result)
}

func (s *SQL) DeleteChannelExceptGeneral(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM channels WHERE id = ? AND name <> 'general'", id)
	if err != nil {
		return false, err
	}
	return applied(result)
}

func (s *SQL) GetOrCreateConversation(ctx context.Context, newID, serverID, memberA, memberB int64) (models.Conversation, error) {
	low, high := memberA, memberB
	if low > high {
		low, high = high, low
	}

	_, err := s.db.ExecContext(ctx, s.convAdmitInsert,
		newID, serverID, low, high, low, high)
	if err != nil && !isDuplicateKey(err) {
		return models.Conversation{}, err
	}

	var conv models.Conversation
	err = s.db.QueryRowContext(ctx,
		"SELECT id, server_id, member_low, member_high FROM conversations WHERE member_low = ? AND member_high = ?",
		low, high).
		Scan(&conv.ID, &conv.ServerID, &conv.MemberOneID, &conv.MemberTwoID)
	return conv, notFound(err)
}

func (s *SQL) ConversationByID(ctx context.Context, id int64) (models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, server_id, member_low, member_high FROM conversations WHERE id = ?", id).
		Scan(&conv.ID, &conv.ServerID, &conv.MemberOneID, &conv.MemberTwoID)
	return conv, notFound(err)
}

func (sc Scope) table() string {
	if sc.IsConversation() {
		return "direct_messages"
	}
	return "messages"
}

func (sc Scope) column() string {
	if sc.IsConversation() {
		return "conversation_id"
	}
	return "channel_id"
}

func (s *SQL) InsertMessage(ctx context.Context, scope Scope, m models.Message) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (id, %s, member_id, content, file_url, deleted, edited, created_at, updated_at) VALUES (?, ?, ?, ?, ?, FALSE, FALSE, ?, ?)",
		scope.table(), scope.column())
	_, err := s.db.ExecContext(ctx, query,
		m.ID, scope.ID(), m.MemberID, m.Content, m.FileURL, m.CreatedAt, m.UpdatedAt)
	return err
}

func (s *SQL) scanMessage(row interface{ Scan(...any) error }, scope Scope) (models.Message, error) {
	var m models.Message
	var scopeID int64
	var fileURL sql.NullString

	err := row.Scan(&m.ID, &scopeID, &m.MemberID, &m.Content, &fileURL, &m.Deleted, &m.Edited,
		&m.CreatedAt, &m.UpdatedAt, &m.Sender.ID, &m.Sender.DisplayName, &m.Sender.Picture)
	if err != nil {
		return m, err
	}

	if scope.IsConversation() {
		m.ConversationID = scopeID
	} else {
		m.ChannelID = scopeID
	}
	if fileURL.Valid {
		m.FileURL = &fileURL.String
	}
	return m, nil
}

func (s *SQL) messageSelect(scope Scope) string {
	return fmt.Sprintf(`
		SELECT m.id, m.%s, m.member_id, m.content, m.file_url, m.deleted, m.edited, m.created_at, m.updated_at,
		       p.id, p.display_name, p.picture
		FROM %s m
		JOIN members mb ON m.member_id = mb.id
		JOIN profiles p ON mb.profile_id = p.id`, scope.column(), scope.table())
}

func (s *SQL) MessageByID(ctx context.Context, scope Scope, id int64) (models.Message, error) {
	query := s.messageSelect(scope) + fmt.Sprintf(" WHERE m.id = ? AND m.%s = ?", scope.column())
	m, err := s.scanMessage(s.db.QueryRowContext(ctx, query, id, scope.ID()), scope)
	return m, notFound(err)
}

func (s *SQL) ListMessages(ctx context.Context, scope Scope) ([]models.Message, error) {
	query := s.messageSelect(scope) + fmt.Sprintf(" WHERE m.%s = ? ORDER BY m.id", scope.column())

	rows, err := s.db.QueryContext(ctx, query, scope.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := s.scanMessage(rows, scope)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQL) UpdateMessageIfNotDeleted(ctx context.Context, scope Scope, id int64, content string, updatedAt int64) (bool, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET content = ?, edited = TRUE, updated_at = ? WHERE id = ? AND NOT deleted",
		scope.table())
	result, err := s.db.ExecContext(ctx, query, content, updatedAt, id)
	if err != nil {
		return false, err
	}
	return applied(result)
}

func (s *SQL) TombstoneMessage(ctx context.Context, scope Scope, id int64, tombstone string, updatedAt int64) error {
	query := fmt.Sprintf(
		"UPDATE %s SET deleted = TRUE, content = ?, file_url = NULL, updated_at = ? WHERE id = ?",
		scope.table())
	_, err := s.db.ExecContext(ctx, query, tombstone, updatedAt, id)
	return err
}

func (s *SQL) CreateCallIfNoneActive(ctx context.Context, c models.Call) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.callAdmitInsert,
		c.ID, c.ConversationID, c.MemberID, c.Type, c.CreatedAt, c.ConversationID)
	if err != nil {
		// a concurrent starter that slipped past NOT EXISTS loses on the
		// one_active_call_per_conversation unique key instead
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return applied(result)
}

func (s *SQL) CallByID(ctx context.Context, id int64) (models.Call, error) {
	var c models.Call
	err := s.db.QueryRowContext(ctx,
		"SELECT id, conversation_id, member_id, type, active, answered, declined, cancelled, ended, created_at FROM calls WHERE id = ?", id).
		Scan(&c.ID, &c.ConversationID, &c.MemberID, &c.Type, &c.Active, &c.Answered, &c.Declined, &c.Cancelled, &c.Ended, &c.CreatedAt)
	return c, notFound(err)
}

func (s *SQL) UpdateCallIfNotEnded(ctx context.Context, id int64, answered, declined, cancelled, active, ended bool) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE calls SET answered = ?, declined = ?, cancelled = ?, active = ?, ended = ? WHERE id = ? AND NOT ended",
		answered, declined, cancelled, active, ended, id)
	if err != nil {
		return false, err
	}
	return applied(result)
}

func (s *SQL) EndCall(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE calls SET active = FALSE, ended = TRUE WHERE id = ?", id)
	return err
}

// applied reports whether a conditional statement found a row to act on. The
// mysql DSN sets clientFoundRows so RowsAffected counts matched rows, not
// changed rows, otherwise an update writing identical values would read as a
// failed condition.
func applied(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ER_DUP_ENTRY
func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
