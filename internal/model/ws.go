package model

import "encoding/json"

type MessageType string

const (
	MessageTypeRegister       MessageType = "register"
	MessageTypeRegistered     MessageType = "registered"
	MessageTypeUnregister     MessageType = "unregister"
	MessageTypePing           MessageType = "ping"
	MessageTypePong           MessageType = "pong"
	MessageTypePrintOrder     MessageType = "print_order"
	MessageTypePrinted        MessageType = "printed"
	MessageTypePrintDuplicate MessageType = "print_duplicate"
	MessageTypePrintFailed    MessageType = "print_failed"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type     MessageType     `json:"type"`
	AgentKey string          `json:"agent_key,omitempty"`
	Request  json.RawMessage `json:"request,omitempty"` // Keep raw so the dispatcher decodes it strictly
	OrderID  string          `json:"order_id,omitempty"`
	JobID    string          `json:"job_id,omitempty"`
	Error    string          `json:"error,omitempty"`
}
