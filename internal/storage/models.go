// Package storage provides the durable job store backing asynchronous
// extraction tickets.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

// JobStatus tracks a ticket through its lifecycle. A status is terminal once
// it leaves JobStatusPending; records never move backwards.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobPayload is the work captured at submission time. PDF bytes are stored
// hex-encoded for binary safety in the TEXT column.
type JobPayload struct {
	Filename   string `json:"filename"`
	PDFContent string `json:"pdf_content"`
	MaxPages   int    `json:"max_pages"`
}

// SetContent stores raw PDF bytes hex-encoded.
func (p *JobPayload) SetContent(data []byte) {
	p.PDFContent = hex.EncodeToString(data)
}

// DecodeContent returns the raw PDF bytes.
func (p *JobPayload) DecodeContent() ([]byte, error) {
	return hex.DecodeString(p.PDFContent)
}

// JobRecord is one durable unit of asynchronous work, keyed by ticket id.
// Payload is write-once at creation; Result is write-once on the transition
// out of pending.
type JobRecord struct {
	ID        string          `json:"id"`
	Status    JobStatus       `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// EncodeJobPayload serializes a payload for storage.
func EncodeJobPayload(p *JobPayload) (json.RawMessage, error) {
	return json.Marshal(p)
}

// DecodeJobPayload deserializes a stored payload. A nil raw message yields a
// nil payload without error; callers decide whether that is acceptable.
func DecodeJobPayload(raw json.RawMessage) (*JobPayload, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var p JobPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
