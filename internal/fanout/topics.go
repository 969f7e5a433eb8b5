package fanout

import "fmt"

// Topic scheme. These are the only topic shapes the backend ever publishes to,
// clients subscribe to the same strings. Pure functions of their inputs.

func ServerTopic(serverID int64) string {
	return fmt.Sprintf("server:%d", serverID)
}

func MessagesTopic(scopeID int64) string {
	return fmt.Sprintf("chat:%d:messages", scopeID)
}

func MessagesUpdateTopic(scopeID int64) string {
	return fmt.Sprintf("chat:%d:messages:update", scopeID)
}

func TypingTopic(scopeID, memberID int64) string {
	return fmt.Sprintf("chat:%d:istyping:%d", scopeID, memberID)
}

func CallTopic(serverID, otherProfileID int64, suffix string) string {
	return fmt.Sprintf("server:%d:call:%d:%s", serverID, otherProfileID, suffix)
}

// Call lifecycle suffixes.
const (
	CallAnswer = "answer"
	CallEdited = "edited"
	CallEnded  = "ended"
)

// Structural event types carried on the server topic.
const (
	EventServerDeleted  = "server:deleted"
	EventServerLeave    = "server:leave"
	EventServerUpdated  = "server:updated"
	EventChannelCreated = "channel:created"
	EventChannelUpdated = "channel:updated"
	EventChannelDeleted = "channel:deleted"
	EventMemberAdded    = "member:added"
	EventMemberUpdated  = "member:updated"
	EventMemberDeleted  = "member:deleted"
)
