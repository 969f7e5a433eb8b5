package hub

import (
	"fmt"

	"discreetx-backend/internal/fanout"
)

// A client watches one chat scope and one server at a time. Switching swaps
// the old topic subscriptions for the new ones; the bus keeps publishing to
// everyone else untouched.

func subscribe(client *Client, topics ...string) error {
	if selfContained {
		for _, topic := range topics {
			localBus.Subscribe(topic, client.SessionID, client.Local)
		}
		return nil
	}
	return client.PubSub.Subscribe(client.Ctx, topics...)
}

func unsubscribe(client *Client, topics ...string) error {
	if len(topics) == 0 {
		return nil
	}
	if selfContained {
		for _, topic := range topics {
			localBus.Unsubscribe(topic, client.SessionID)
		}
		return nil
	}
	return client.PubSub.Unsubscribe(client.Ctx, topics...)
}

// SwitchChat points the session at a chat scope (channel or conversation).
// memberIDs are the members whose typing indicators the client should see.
func SwitchChat(sessionID int64, scopeID int64, memberIDs []int64) error {
	client, exists := GetClient(sessionID)
	if !exists {
		return fmt.Errorf("session ID [%d] tried to watch chat [%d] but isn't connected to hub", sessionID, scopeID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.CurrentChatID != 0 {
		old := []string{
			fanout.MessagesTopic(client.CurrentChatID),
			fanout.MessagesUpdateTopic(client.CurrentChatID),
		}
		for _, memberID := range client.typingMembers {
			old = append(old, fanout.TypingTopic(client.CurrentChatID, memberID))
		}
		if err := unsubscribe(client, old...); err != nil {
			return err
		}
	}

	topics := []string{
		fanout.MessagesTopic(scopeID),
		fanout.MessagesUpdateTopic(scopeID),
	}
	for _, memberID := range memberIDs {
		topics = append(topics, fanout.TypingTopic(scopeID, memberID))
	}
	if err := subscribe(client, topics...); err != nil {
		return err
	}

	client.CurrentChatID = scopeID
	client.typingMembers = memberIDs

	sugar.Debugf("Session ID [%d] now watching chat [%d]", sessionID, scopeID)
	return nil
}

// SwitchServer points the session at a server: structural events plus the
// session's own call notifications on that server.
func SwitchServer(sessionID int64, serverID int64) error {
	client, exists := GetClient(sessionID)
	if !exists {
		return fmt.Errorf("session ID [%d] tried to watch server [%d] but isn't connected to hub", sessionID, serverID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.CurrentServerID != 0 {
		if err := unsubscribe(client, serverTopics(client.CurrentServerID, client.ProfileID)...); err != nil {
			return err
		}
	}

	if err := subscribe(client, serverTopics(serverID, client.ProfileID)...); err != nil {
		return err
	}

	client.CurrentServerID = serverID

	sugar.Debugf("Session ID [%d] now watching server [%d]", sessionID, serverID)
	return nil
}

func serverTopics(serverID, profileID int64) []string {
	return []string{
		fanout.ServerTopic(serverID),
		fanout.CallTopic(serverID, profileID, fanout.CallAnswer),
		fanout.CallTopic(serverID, profileID, fanout.CallEdited),
		fanout.CallTopic(serverID, profileID, fanout.CallEnded),
	}
}
