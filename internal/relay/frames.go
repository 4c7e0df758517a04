package relay

import (
	"encoding/json"
	"fmt"
)

// Frame types on the wire. Inbound frames decode into the closed set below;
// anything else is rejected at the decode boundary.
const (
	TypeMessage     = "MESSAGE"
	TypeDeliveryAck = "DELIVERY_ACK"
	TypeError       = "ERROR"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InboundFrame is the sealed set of frames a client may send: MessagePayload
// or DeliveryAckPayload.
type InboundFrame interface {
	inbound()
}

// MessagePayload carries one end-to-end encrypted message envelope. The same
// shape is used outbound for direct relay and for the pending-drain replay.
type MessagePayload struct {
	MessageID   string `json:"messageId"`
	SenderID    string `json:"senderId,omitempty"`
	RecipientID string `json:"recipientId"`
	Payload     []byte `json:"payload"`
	MessageType string `json:"messageType"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

func (*MessagePayload) inbound() {}

// DeliveryAckPayload acknowledges that the sending client has durably received
// the identified message.
type DeliveryAckPayload struct {
	MessageID string `json:"messageId"`
}

func (*DeliveryAckPayload) inbound() {}

// ErrorPayload is outbound only.
type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
}

// DecodeInbound parses a raw websocket text frame into one of the two inbound
// payload types.
func DecodeInbound(data []byte) (InboundFrame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	switch frame.Type {
	case TypeMessage:
		var payload MessagePayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid MESSAGE payload: %w", err)
		}
		return &payload, nil
	case TypeDeliveryAck:
		var payload DeliveryAckPayload
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			return nil, fmt.Errorf("invalid DELIVERY_ACK payload: %w", err)
		}
		return &payload, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", frame.Type)
	}
}

// EncodeFrame marshals an outbound frame.
func EncodeFrame(frameType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return json.Marshal(Frame{Type: frameType, Payload: raw})
}
