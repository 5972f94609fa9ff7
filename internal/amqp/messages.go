package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// UploadIngestedMessage announces a committed upload. It carries ids only;
// consumers load the rows from the database.
type UploadIngestedMessage struct {
	BatchID    string    `json:"batch_id"`
	ExpenseIDs []int64   `json:"expense_ids"`
	Inserted   int       `json:"inserted"`
	Rejected   int       `json:"rejected"`
	Timestamp  time.Time `json:"timestamp"`
}

var errMissingBatchID = errors.New("message has no batch id")

func NewUploadIngestedMessage(batchID string, ids []int64, rejected int) *UploadIngestedMessage {
	return &UploadIngestedMessage{
		BatchID:    batchID,
		ExpenseIDs: ids,
		Inserted:   len(ids),
		Rejected:   rejected,
		Timestamp:  time.Now().UTC(),
	}
}

func (m *UploadIngestedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadIngestedMessageFromJSON decodes and sanity-checks a message body.
func UploadIngestedMessageFromJSON(data []byte) (*UploadIngestedMessage, error) {
	var msg UploadIngestedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.BatchID == "" {
		return nil, errMissingBatchID
	}
	return &msg, nil
}
