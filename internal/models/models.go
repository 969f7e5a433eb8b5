package models

type Role string

const (
	RoleGuest     Role = "GUEST"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

// Rank orders roles for permission checks, GUEST < MODERATOR < ADMIN.
// Unknown roles rank below GUEST.
func (r Role) Rank() int {
	switch r {
	case RoleGuest:
		return 0
	case RoleModerator:
		return 1
	case RoleAdmin:
		return 2
	default:
		return -1
	}
}

func (r Role) AtLeast(other Role) bool {
	return r.Rank() != -1 && r.Rank() >= other.Rank()
}

func ValidRole(r Role) bool {
	return r.Rank() != -1
}

type ChannelType string

const (
	ChannelText  ChannelType = "TEXT"
	ChannelAudio ChannelType = "AUDIO"
	ChannelVideo ChannelType = "VIDEO"
)

type CallType string

const (
	CallAudio CallType = "AUDIO"
	CallVideo CallType = "VIDEO"
)

type Profile struct {
	ID          int64  `json:"id,string"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName"`
	Picture     string `json:"picture"`
	Password    []byte `json:"-"`
}

type Server struct {
	ID      int64  `json:"id,string"`
	OwnerID int64  `json:"ownerID,string"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Member struct {
	ID        int64 `json:"id,string"`
	ServerID  int64 `json:"serverID,string"`
	ProfileID int64 `json:"profileID,string"`
	Role      Role  `json:"role"`
}

type Channel struct {
	ID       int64       `json:"id,string"`
	ServerID int64       `json:"serverID,string"`
	Name     string      `json:"name"`
	Type     ChannelType `json:"type"`
}

// Conversation is the direct-message scope between two members. The pair is
// unordered; the store keeps at most one row per pair.
type Conversation struct {
	ID          int64 `json:"id,string"`
	ServerID    int64 `json:"serverID,string"`
	MemberOneID int64 `json:"memberOneID,string"`
	MemberTwoID int64 `json:"memberTwoID,string"`
}

// Message content and file URL are stored as ciphertext; every wire
// representation carries plaintext. ChannelID and ConversationID are mutually
// exclusive, exactly one is non-zero.
type Message struct {
	ID             int64   `json:"id,string"`
	ChannelID      int64   `json:"channelID,string,omitempty"`
	ConversationID int64   `json:"conversationID,string,omitempty"`
	MemberID       int64   `json:"memberID,string"`
	Content        string  `json:"content"`
	FileURL        *string `json:"fileUrl"`
	Deleted        bool    `json:"deleted"`
	Edited         bool    `json:"edited"`
	CreatedAt      int64   `json:"createdAt"`
	UpdatedAt      int64   `json:"updatedAt"`

	Sender Profile `json:"sender"`
}

// Call carries voice/video call metadata only, media transport lives outside
// this backend. Active is derived as !declined && !cancelled. Ended is terminal.
type Call struct {
	ID             int64    `json:"id,string"`
	ConversationID int64    `json:"conversationID,string"`
	MemberID       int64    `json:"memberID,string"`
	Type           CallType `json:"type"`
	Active         bool     `json:"active"`
	Answered       bool     `json:"answered"`
	Declined       bool     `json:"declined"`
	Cancelled      bool     `json:"cancelled"`
	Ended          bool     `json:"ended"`
	CreatedAt      int64    `json:"createdAt"`
}

type ConfigFile struct {
	Address           string
	Port              string
	BehindNginx       bool
	TlsCert           string
	TlsKey            string
	Cors              bool
	PrintHttpRequests bool
	LogToFile         bool
	LogLevel          string
	JwtSecret         string
	CipherSecret      string
	SnowflakeWorkerID int64
	SelfContained     bool
	DbUser            string
	DbPassword        string
	DbAddress         string
	DbPort            string
	DbDatabase        string
	RedisAddress      string
	RedisPassword     string
}
