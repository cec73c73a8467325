package indexer

import "fmt"

// SplitBatches splits items into consecutive batches of at most batchSize,
// preserving order.
func SplitBatches(items []string, batchSize int) ([][]string, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}

	batches := make([][]string, 0, (len(items)+batchSize-1)/batchSize)
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches, nil
}
