package indexer

import (
	"encoding/base64"
	"time"

	"xstaking/internal/model"
)

func buildLogRecords(programID string, signature string, slot uint64, blockTime int64, payloads [][]byte, ingestedAt time.Time) []model.LogRecord {
	records := make([]model.LogRecord, 0, len(payloads))
	for i, data := range payloads {
		records = append(records, model.LogRecord{
			Slot:       slot,
			BlockTime:  blockTime,
			Signature:  signature,
			LogIndex:   uint64(i),
			ProgramID:  programID,
			Data:       base64.StdEncoding.EncodeToString(data),
			IngestedAt: ingestedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return records
}
