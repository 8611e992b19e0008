package broker

import (
	"context"
	"encoding/json"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/coordinator"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Topics of the data-channel transport. The media service relays
// everything published on a room topic onto that room's data channel and
// forwards client events to the ingress topic; this broker is the only
// contract between the game and the media plane.
const (
	TopicIngress    = "game.ingress"
	TopicEgress     = "game.egress"
	TopicRoomPrefix = "game.room."
)

// Broker adapts the coordinator to the NATS data channel. Inbound
// envelopes are keyed by the client id the media service assigned; that
// id doubles as the coordinator's connection id.
type Broker struct {
	Conn  *nats.Conn
	Coord *coordinator.Coordinator
}

func NewBroker(nc *nats.Conn, coord *coordinator.Coordinator) *Broker {
	return &Broker{Conn: nc, Coord: coord}
}

// handleMessage processes one client event from the media relay.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNat.Data, &msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	if msg.SocketId == "" {
		log.Warnf("ingress event %s without client id dropped", msg.Type)
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case comm.TypeJoin:
		req := &comm.JoinRequest{}
		if err := json.Unmarshal(msg.Data, req); err != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed join payload"))
			return
		}
		if oerr := b.Coord.Join(ctx, msg.SocketId, req); oerr != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(oerr.Code, oerr.Message))
			return
		}
		b.publishAck(msg.SocketId, comm.TypeJoined, comm.OkAck())

	case comm.TypeStart:
		req := &comm.StartRequest{}
		if err := json.Unmarshal(msg.Data, req); err != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed start payload"))
			return
		}
		b.ack(msg.SocketId, b.Coord.Start(ctx, msg.SocketId, req))

	case comm.TypeAction:
		req := &comm.ActionRequest{}
		if err := json.Unmarshal(msg.Data, req); err != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed action payload"))
			return
		}
		b.ack(msg.SocketId, b.Coord.Action(ctx, msg.SocketId, req))

	case comm.TypeEnd:
		req := &comm.EndRequest{}
		if err := json.Unmarshal(msg.Data, req); err != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed end payload"))
			return
		}
		b.ack(msg.SocketId, b.Coord.End(ctx, msg.SocketId, req))

	case comm.TypeGiftPlay:
		req := &comm.GiftPlayRequest{}
		if err := json.Unmarshal(msg.Data, req); err != nil {
			b.publishAck(msg.SocketId, comm.TypeError, comm.ErrorAck(comm.CodeActionInvalid, "malformed gift_play payload"))
			return
		}
		b.ack(msg.SocketId, b.Coord.GiftPlay(ctx, msg.SocketId, req))

	case comm.TypeLeave:
		b.Coord.Leave(msg.SocketId)
		b.publishAck(msg.SocketId, comm.TypeAck, comm.OkAck())

	default:
		log.Error("Unknown message")
		return
	}
}

func (b *Broker) ack(clientId string, oerr *coordinator.OpError) {
	if oerr != nil {
		b.publishAck(clientId, comm.TypeError, comm.ErrorAck(oerr.Code, oerr.Message))
		return
	}
	b.publishAck(clientId, comm.TypeAck, comm.OkAck())
}

func (b *Broker) publishAck(clientId, msgType string, ack *comm.Ack) {
	data, err := json.Marshal(ack)
	if err != nil {
		log.Errorf("unable to marshal ack for client %s", clientId)
		return
	}

	msg := &comm.WSMessage{
		Type:     msgType,
		Data:     data,
		SocketId: clientId,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	if err := b.Publish(TopicEgress, payload); err != nil {
		log.Errorf("failed to publish ack for client %s: %v", clientId, err)
	}
}

// Broadcast implements coordinator.Sink over the per-room egress topic.
func (b *Broker) Broadcast(roomId string, env *comm.WSMessage) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.Publish(TopicRoomPrefix+roomId, payload)
}

// consume client events from the media relay (Queue)
func (b *Broker) QueueSubscribeIngress(queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(TopicIngress, queueGroup, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// consume client events from the media relay
func (b *Broker) SubscribeIngress() (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(TopicIngress, b.handleMessage)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
