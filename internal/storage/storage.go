package storage

import "xstaking/internal/model"

// Storage receives committed log records in stream order.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}
