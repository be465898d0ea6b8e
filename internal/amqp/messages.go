package amqp

import (
	"encoding/json"
	"time"
)

// PushRequestMessage asks a worker to push a stored snapshot to its
// spreadsheet. It carries only the snapshot ID and addressing; the
// worker fetches the table from the snapshot store.
type PushRequestMessage struct {
	SnapshotID int64     `json:"snapshot_id"`
	Title      string    `json:"title"`
	Worksheet  int       `json:"worksheet"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewPushRequestMessage creates a push request for a snapshot.
func NewPushRequestMessage(snapshotID int64, title string, worksheet int) *PushRequestMessage {
	return &PushRequestMessage{
		SnapshotID: snapshotID,
		Title:      title,
		Worksheet:  worksheet,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *PushRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PushRequestMessageFromJSON creates a message from JSON bytes.
func PushRequestMessageFromJSON(data []byte) (*PushRequestMessage, error) {
	var msg PushRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
