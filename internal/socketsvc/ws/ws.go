package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/coordinator"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// client wraps a websocket connection with a write lock; acks from the
// read loop and room broadcasts land on the same connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
	roomMap sync.Map // to keep track of socketId with roomId
	Coord   *coordinator.Coordinator
}

func NewWs(coord *coordinator.Coordinator) *Ws {
	return &Ws{Coord: coord}
}

// handle socket message from game clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	ctx := context.Background()

	switch message.Type {
	case comm.TypeJoin:
		req := &comm.JoinRequest{}
		if err := json.Unmarshal(message.Data, req); err != nil {
			log.Errorf("malformed join payload from %s: %v", socketId, err)
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed join payload"))
			return
		}
		if oerr := s.Coord.Join(ctx, socketId, req); oerr != nil {
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(oerr.Code, oerr.Message))
			return
		}
		s.roomMap.Store(socketId, req.RoomId)
		s.sendAck(socketId, comm.TypeJoined, comm.OkAck())

	case comm.TypeStart:
		req := &comm.StartRequest{}
		if err := json.Unmarshal(message.Data, req); err != nil {
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed start payload"))
			return
		}
		s.ack(socketId, s.Coord.Start(ctx, socketId, req))

	case comm.TypeAction:
		req := &comm.ActionRequest{}
		if err := json.Unmarshal(message.Data, req); err != nil {
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed action payload"))
			return
		}
		s.ack(socketId, s.Coord.Action(ctx, socketId, req))

	case comm.TypeEnd:
		req := &comm.EndRequest{}
		if err := json.Unmarshal(message.Data, req); err != nil {
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed end payload"))
			return
		}
		s.ack(socketId, s.Coord.End(ctx, socketId, req))

	case comm.TypeGiftPlay:
		req := &comm.GiftPlayRequest{}
		if err := json.Unmarshal(message.Data, req); err != nil {
			s.sendAck(socketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed gift_play payload"))
			return
		}
		s.ack(socketId, s.Coord.GiftPlay(ctx, socketId, req))

	case comm.TypeLeave:
		s.Coord.Leave(socketId)
		s.roomMap.Delete(socketId)
		s.sendAck(socketId, comm.TypeAck, comm.OkAck())

	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) ack(socketId string, oerr *coordinator.OpError) {
	if oerr != nil {
		s.sendAck(socketId, comm.TypeError, comm.ErrorAck(oerr.Code, oerr.Message))
		return
	}
	s.sendAck(socketId, comm.TypeAck, comm.OkAck())
}

func (s *Ws) sendAck(socketId, msgType string, ack *comm.Ack) {
	c, ok := s.getClient(socketId)
	if !ok {
		return
	}
	data, err := json.Marshal(ack)
	if err != nil {
		log.Errorf("unable to marshal ack for %s: %v", socketId, err)
		return
	}
	env := &comm.WSMessage{Type: msgType, Data: data, SocketId: socketId}
	if err := c.writeJSON(env); err != nil {
		log.Errorf("failed to send %s to socket %s: %v", msgType, socketId, err)
	}
}

// Broadcast fans the envelope out to every socket joined to the room.
// Implements coordinator.Sink; write failures are logged, not retried.
func (s *Ws) Broadcast(roomId string, env *comm.WSMessage) error {
	var lastErr error
	for _, socketId := range s.GetRoomSockets(roomId) {
		c, ok := s.getClient(socketId)
		if !ok {
			continue
		}
		if err := c.writeJSON(env); err != nil {
			log.Errorf("broadcast write to socket %s failed: %v", socketId, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

func (s *Ws) getClient(socketId string) (*client, bool) {
	v, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return v.(*client), true
}

func (s *Ws) GetRoom(socketId string) (string, bool) {
	room, ok := s.roomMap.Load(socketId)
	if !ok {
		return "", false
	}
	return room.(string), true
}

func (s *Ws) GetRoomSockets(roomId string) []string {
	var sockets []string

	s.roomMap.Range(func(key, value interface{}) bool {
		if value.(string) == roomId {
			sockets = append(sockets, key.(string))
		}
		return true // continue iterating
	})

	return sockets
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.roomMap.Delete(socketId)
	s.Coord.Disconnect(socketId)
}
