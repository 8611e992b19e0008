package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/voysta/game-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WSTransport talks the socket protocol over a gorilla websocket dial.
type WSTransport struct {
	url    string
	conn   *websocket.Conn
	mu     sync.Mutex // guards writes
	events chan Event
}

func NewWSTransport(url string) *WSTransport {
	return &WSTransport{
		url:    url,
		events: make(chan Event, 64),
	}
}

func (t *WSTransport) Connect(ctx context.Context) (<-chan Event, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, err
	}
	t.conn = conn

	go t.readLoop()
	return t.events, nil
}

func (t *WSTransport) Send(ctx context.Context, msgType string, payload interface{}) error {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		data = raw
	}

	env := &comm.WSMessage{Type: msgType, Data: data}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(env)
}

func (t *WSTransport) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

func (t *WSTransport) readLoop() {
	defer close(t.events)

	for {
		_, raw, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Errorf("websocket read failed: %v", err)
			}
			return
		}

		env := &comm.WSMessage{}
		if err := json.Unmarshal(raw, env); err != nil {
			log.Errorf("malformed server envelope: %v", err)
			continue
		}

		ev, ok := decodeEvent(env)
		if !ok {
			continue
		}
		t.events <- ev
	}
}

func decodeEvent(env *comm.WSMessage) (Event, bool) {
	switch env.Type {
	case comm.TypeJoined, comm.TypeAck, comm.TypeError:
		ack := &comm.Ack{}
		if err := json.Unmarshal(env.Data, ack); err != nil {
			log.Errorf("malformed ack payload: %v", err)
			return Event{}, false
		}
		return Event{Type: env.Type, Ack: ack}, true

	case comm.TypeStateUpdate:
		state := &comm.StateUpdate{}
		if err := json.Unmarshal(env.Data, state); err != nil {
			log.Errorf("malformed state payload: %v", err)
			return Event{}, false
		}
		return Event{Type: env.Type, State: state}, true

	case comm.TypeReward:
		reward := &comm.RewardNotice{}
		if err := json.Unmarshal(env.Data, reward); err != nil {
			log.Errorf("malformed reward payload: %v", err)
			return Event{}, false
		}
		return Event{Type: env.Type, Reward: reward}, true

	default:
		log.Warnf("unknown server event: %s", env.Type)
		return Event{}, false
	}
}
