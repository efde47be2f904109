package streaming

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type MessageType string

const (
	MessageTypeUpdate   MessageType = "update"
	MessageTypeRollback MessageType = "rollback"
	MessageTypeControl  MessageType = "control"
)

// Message carries one encoded contract call to the transaction submitter.
// Data is the complete call payload, selector included.
type Message struct {
	Type      MessageType   `json:"type"`
	Contract  string        `json:"contract"`
	Method    string        `json:"method"`
	Data      hexutil.Bytes `json:"data"`
	Items     int           `json:"items"`
	FromBlock uint64        `json:"from_block,omitempty"`
	ToBlock   uint64        `json:"to_block,omitempty"`
	TraceID   string        `json:"trace_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

func Encode(msg Message) ([]byte, error) {
	if err := validate(msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if err := validate(msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func validate(msg Message) error {
	if msg.Type == "" {
		return errors.New("message type is required")
	}
	if msg.Contract == "" || msg.Method == "" {
		return errors.New("contract and method are required")
	}
	if len(msg.Data) < 4 {
		return errors.New("call data is missing")
	}
	return nil
}
