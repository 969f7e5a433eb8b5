package hub

import (
	"context"
	"net/http"
	"sync"

	"discreetx-backend/internal/fanout"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The hub keeps one Client per authenticated session and forwards bus traffic
// to its websocket. In redis mode each client owns a redis PubSub, in
// self-contained mode it owns a channel on the local bus. Wire frames are
// {topic, data} JSON text messages.

type Client struct {
	ProfileID int64
	SessionID int64
	Conn      *websocket.Conn

	// exactly one of these is live, depending on the mode
	PubSub *redis.PubSub
	Local  chan fanout.Envelope

	// chat/server the client currently watches, swapped by SwitchChat and
	// SwitchServer
	CurrentChatID   int64
	CurrentServerID int64
	typingMembers   []int64

	Ctx   context.Context
	mutex sync.Mutex
}

var clients = make(map[int64]*Client)
var clientsMutex sync.Mutex

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var localBus *fanout.LocalBus
var selfContained = true

func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _localBus *fanout.LocalBus, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	localBus = _localBus
	selfContained = _selfContained
}

func HandleClient(profileID int64, sessionID int64, w http.ResponseWriter, r *http.Request) {
	sugar.Debugf("Connecting profile ID [%d] to WebSocket as session [%d]", profileID, sessionID)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sugar.Error(err)
		return
	}
	defer conn.Close()

	clientCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := &Client{
		ProfileID: profileID,
		SessionID: sessionID,
		Conn:      conn,
		Ctx:       clientCtx,
	}

	if selfContained {
		client.Local = make(chan fanout.Envelope, 64)
	} else {
		client.PubSub = redisClient.Subscribe(clientCtx)
		defer client.PubSub.Close()
	}

	setClient(sessionID, client)
	defer func() {
		if selfContained {
			localBus.UnsubscribeAll(sessionID)
		}
		deleteClient(sessionID)
	}()

	go client.forwardBusTraffic()

	// drain incoming frames, the client never sends anything meaningful
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			sugar.Debugf("Session [%d] disconnected: %v", sessionID, err)
			return
		}
	}
}

func (c *Client) forwardBusTraffic() {
	if selfContained {
		for {
			select {
			case <-c.Ctx.Done():
				return
			case envelope := <-c.Local:
				c.writeFrame(envelope.Topic, envelope.Payload)
			}
		}
	}

	msgCh := c.PubSub.Channel()
	for {
		select {
		case <-c.Ctx.Done():
			return
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			c.writeFrame(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (c *Client) writeFrame(topic string, payload []byte) {
	frame, err := EncodeFrame(topic, payload)
	if err != nil {
		sugar.Error(err)
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		sugar.Debugf("Write to session [%d] failed: %v", c.SessionID, err)
	}
}

func setClient(sessionID int64, client *Client) {
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	clients[sessionID] = client
}

func deleteClient(sessionID int64) {
	sugar.Debugf("Removing session ID [%d] from clients", sessionID)
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	delete(clients, sessionID)
}

func GetClient(sessionID int64) (*Client, bool) {
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	client, exists := clients[sessionID]
	return client, exists
}
