package matcher

import (
	"strings"

	"ledger-reconciliation-service/internal/models"
)

// ReferenceIndex groups sales positions by upper-cased reference. Each
// bucket keeps sales order, so scanning a bucket front to back finds the
// same record a full scan of the sales list would.
type ReferenceIndex struct {
	buckets map[string][]int
}

// NewReferenceIndex indexes records with a non-empty reference.
func NewReferenceIndex(records []*models.TransactionRecord) *ReferenceIndex {
	idx := &ReferenceIndex{buckets: make(map[string][]int)}
	for i, r := range records {
		key := referenceKey(r.Reference)
		if key == "" {
			continue
		}
		idx.buckets[key] = append(idx.buckets[key], i)
	}
	return idx
}

// Lookup returns the positions sharing reference, in sales order.
func (idx *ReferenceIndex) Lookup(reference string) []int {
	key := referenceKey(reference)
	if key == "" {
		return nil
	}
	return idx.buckets[key]
}

// Size returns the number of distinct references.
func (idx *ReferenceIndex) Size() int {
	return len(idx.buckets)
}

func referenceKey(reference string) string {
	return strings.ToUpper(reference)
}
