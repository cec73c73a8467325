package decoder

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"xstaking/internal/events"
	"xstaking/internal/model"
)

// Decoder turns raw program data records into typed events.
type Decoder struct {
	programID string
}

// New builds a decoder. When programID is set, records from other programs are
// rejected.
func New(programID string) *Decoder {
	return &Decoder{programID: programID}
}

// Payload returns the raw bytes of a record.
func Payload(record model.LogRecord) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(record.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// CanDecode reports whether the record carries one of this program's events.
func (d *Decoder) CanDecode(record model.LogRecord) bool {
	if d.programID != "" && record.ProgramID != d.programID {
		return false
	}
	data, err := Payload(record)
	if err != nil {
		// Let Decode surface the error.
		return true
	}
	return events.IsKnown(data)
}

// Decode converts a LogRecord into a TypedEvent.
func (d *Decoder) Decode(record model.LogRecord) (*model.TypedEvent, error) {
	if d.programID != "" && record.ProgramID != d.programID {
		return nil, fmt.Errorf("unexpected program id: %s", record.ProgramID)
	}
	data, err := Payload(record)
	if err != nil {
		return nil, err
	}
	ev, err := events.Decode(data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	var treasury string
	switch e := ev.(type) {
	case events.TreasuryCreated:
		treasury = e.Treasury.String()
		decoded = model.TreasuryCreatedData{
			Treasury:      treasury,
			Authority:     e.Authority.String(),
			TreasuryMint:  e.TreasuryMint.String(),
			TreasuryVault: e.TreasuryVault.String(),
			PosMint:       e.PosMint.String(),
			Slot:          e.Slot,
			UnixTimestamp: e.UnixTimestamp,
		}
	case events.Deposited:
		treasury = e.Treasury.String()
		decoded = model.DepositedEventData{
			Treasury:        treasury,
			Depositor:       e.Depositor.String(),
			Amount:          formatAmount(e.Amount),
			TreasuryBalance: formatAmount(e.TreasuryBalance),
			DepositorStake:  formatAmount(e.DepositorStake),
			Slot:            e.Slot,
			UnixTimestamp:   e.UnixTimestamp,
		}
	case events.Claimed:
		treasury = e.Treasury.String()
		decoded = model.ClaimedEventData{
			Treasury:        treasury,
			Claimant:        e.Claimant.String(),
			Amount:          formatAmount(e.Amount),
			TreasuryBalance: formatAmount(e.TreasuryBalance),
			ClaimantStake:   formatAmount(e.ClaimantStake),
			Slot:            e.Slot,
			UnixTimestamp:   e.UnixTimestamp,
		}
	default:
		return nil, fmt.Errorf("unsupported event: %s", ev.EventName())
	}

	return &model.TypedEvent{
		Slot:      record.Slot,
		BlockTime: record.BlockTime,
		Signature: record.Signature,
		LogIndex:  record.LogIndex,
		ProgramID: record.ProgramID,
		EventName: ev.EventName(),
		Treasury:  treasury,
		Decoded:   decoded,
		Raw:       &model.RawLogRef{Data: record.Data},
	}, nil
}

// ErrorFromRecord builds the decode error row for record.
func ErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		Slot:      record.Slot,
		Signature: record.Signature,
		LogIndex:  record.LogIndex,
		ProgramID: record.ProgramID,
		Error:     err.Error(),
	}
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
