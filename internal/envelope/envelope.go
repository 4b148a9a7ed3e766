// Package envelope defines the wire message shape exchanged between the
// session server and its clients, and the monotonic sequence counters used
// to order and acknowledge them.
package envelope

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Kind enumerates the closed set of message types the transport understands.
type Kind string

const (
	KindJoinLobby             Kind = "JoinLobby"
	KindJoinLobbyResponse     Kind = "JoinLobbyResponse"
	KindLobbyState            Kind = "LobbyState"
	KindReadyUp               Kind = "ReadyUp"
	KindStartRound            Kind = "StartRound"
	KindPhaseChanged          Kind = "PhaseChanged"
	KindPlayerStateUpdate     Kind = "PlayerStateUpdate"
	KindOtherPlayerInfo       Kind = "OtherPlayerInfo"
	KindShopRefreshed         Kind = "ShopRefreshed"
	KindBuyEcho               Kind = "BuyEcho"
	KindSellEcho              Kind = "SellEcho"
	KindRefreshShop           Kind = "RefreshShop"
	KindBuyXP                 Kind = "BuyXP"
	KindPositionEcho          Kind = "PositionEcho"
	KindRemoveFromBoard       Kind = "RemoveFromBoard"
	KindEchoFused             Kind = "EchoFused"
	KindCombatStarted         Kind = "CombatStarted"
	KindCombatUpdate          Kind = "CombatUpdate"
	KindCombatEnded           Kind = "CombatEnded"
	KindUseIntervention       Kind = "UseIntervention"
	KindInterventionActivated Kind = "InterventionActivated"
	KindEnergyUpdate          Kind = "EnergyUpdate"
	KindFeaturedMatch         Kind = "FeaturedMatch"
	KindPlayerEliminated      Kind = "PlayerEliminated"
	KindGameEnded             Kind = "GameEnded"
	KindActionRejected        Kind = "ActionRejected"
	KindPing                  Kind = "Ping"
	KindPong                  Kind = "Pong"
	KindAck                   Kind = "Ack"
)

// Envelope is the only wire form exchanged over the framed transport. Field
// names and casing match the contract in the external interfaces section:
// {"Type":..., "PayloadJson":..., "SequenceId":..., "RequiresAck":...}.
type Envelope struct {
	Type        Kind   `json:"Type"`
	PayloadJson string `json:"PayloadJson"`
	SequenceId  uint32 `json:"SequenceId"`
	RequiresAck bool   `json:"RequiresAck"`
}

// Encode marshals a payload struct into an Envelope of the given kind.
func Encode(kind Kind, seq uint32, requiresAck bool, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return Envelope{
		Type:        kind,
		PayloadJson: string(raw),
		SequenceId:  seq,
		RequiresAck: requiresAck,
	}, nil
}

// Decode unmarshals the envelope's payload into dst.
func (e Envelope) Decode(dst any) error {
	if e.PayloadJson == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(e.PayloadJson), dst); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// SequenceCounter is an atomic, monotonically increasing generator of
// envelope sequence ids. One process-wide counter drives direct sends;
// broadcasts that must clone a message per recipient draw from a disjoint
// counter so cloned sequence ids never collide with the sender's own.
type SequenceCounter struct {
	next uint32
}

// NewSequenceCounter starts counting from the provided floor (0 is fine).
func NewSequenceCounter(start uint32) *SequenceCounter {
	return &SequenceCounter{next: start}
}

// Next returns the next sequence id in the series.
func (c *SequenceCounter) Next() uint32 {
	return atomic.AddUint32(&c.next, 1)
}

// DisjointBroadcastCounter returns a counter whose range never intersects a
// direct-send counter built from start, by offsetting into the counter's
// upper half. This satisfies the "disjoint counter space" requirement for
// reliable broadcast clones.
func DisjointBroadcastCounter() *SequenceCounter {
	return NewSequenceCounter(1 << 31)
}
