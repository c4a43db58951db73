package autosave

import "encoding/json"

type Message struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"projectId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeWelcome  = "welcome"
	TypeReplaced = "session.replaced"
	TypeError    = "error"

	TypeDocSave  = "doc.save"
	TypeSaveAck  = "save.ack"
	TypeSaveNack = "save.nack"
)

// SavePayload is the payload of doc.save: the whole project document.
type SavePayload struct {
	Document json.RawMessage `json:"document"`
}

// AckPayload confirms that the document with Seq was accepted and will be
// written at the next flush.
type AckPayload struct {
	Seq int64 `json:"seq"`
}

type NackPayload struct {
	Seq    int64  `json:"seq"`
	Reason string `json:"reason"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	// FlushIntervalMs is how long accepted documents may wait before they
	// are written.
	FlushIntervalMs int64 `json:"flushIntervalMs"`
}
