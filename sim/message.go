package sim

import (
	"github.com/kadsim/kadsim/sim/kad"
)

// MessageType identifies the protocol step a message belongs to.
type MessageType string

const (
	// Iterative lookup
	MsgRoute    MessageType = "ROUTE"    // probe: "who do you know near this target?"
	MsgResponse MessageType = "RESPONSE" // answer to ROUTE: up to K known ids

	// Store placement
	MsgStoreSpaceReq  MessageType = "STORE_SPACE_REQ"
	MsgStoreSpaceResp MessageType = "STORE_SPACE_RESP"
	MsgStore          MessageType = "STORE"
	MsgStoreResp      MessageType = "STORE_RESP"

	// Value retrieval
	MsgFindValue            MessageType = "FINDVALUE"
	MsgReturnValue          MessageType = "RETURNVALUE"
	MsgReturnValueFromCache MessageType = "RETURNVALUE_FROM_CACHE"
)

// Message is one protocol message in flight between two nodes.
type Message struct {
	ID          uint64
	AckID       uint64 // ID of the message this one answers; 0 for requests
	Type        MessageType
	Src         kad.NodeID
	Dest        kad.NodeID
	OperationID uint64 // FindOperation the exchange belongs to, owned by the initiator
	SentAt      int64
	Hops        int // operation hop count when the request left; replies echo it
	Body        Body
}

// Reply builds an answer to m travelling in the opposite direction.
func (m *Message) Reply(t MessageType, body Body) *Message {
	return &Message{
		AckID:       m.ID,
		Type:        t,
		Src:         m.Dest,
		Dest:        m.Src,
		OperationID: m.OperationID,
		Hops:        m.Hops,
		Body:        body,
	}
}

// Body is the payload carried by a Message. The set of variants is closed.
type Body interface {
	isBody()
}

// NodeLookup asks for the nodes nearest to Target.
type NodeLookup struct {
	Target kad.NodeID
}

// StoreRequest places Value under Key on the K nodes with the most free space among the closest set.
type StoreRequest struct {
	Key     kad.NodeID
	Keyword string
	Value   ResultSet
	Size    int64 // storage units
}

// KeyQuery asks for the value stored or cached under Key, which covers Keywords.
type KeyQuery struct {
	Key      kad.NodeID
	Keywords []string
	Parent   kad.NodeID // conjunctive key of the whole query
}

// KeyQueryResult answers a KeyQuery.
type KeyQueryResult struct {
	Key   kad.NodeID
	Value ResultSet
	Found bool
}

// Neighbours carries the ids returned for a ROUTE probe.
type Neighbours struct {
	IDs []kad.NodeID
}

// SpaceOffer reports a node's remaining storage.
type SpaceOffer struct {
	Free int64
}

// StoreAck reports whether a STORE was accepted.
type StoreAck struct {
	Key kad.NodeID
	OK  bool
}

func (NodeLookup) isBody()     {}
func (StoreRequest) isBody()   {}
func (KeyQuery) isBody()       {}
func (KeyQueryResult) isBody() {}
func (Neighbours) isBody()     {}
func (SpaceOffer) isBody()     {}
func (StoreAck) isBody()       {}

// bodyKey returns the keyspace position a body is looked up at.
func bodyKey(b Body) kad.NodeID {
	switch v := b.(type) {
	case NodeLookup:
		return v.Target
	case StoreRequest:
		return v.Key
	case KeyQuery:
		return v.Key
	case KeyQueryResult:
		return v.Key
	case StoreAck:
		return v.Key
	default:
		return 0
	}
}
