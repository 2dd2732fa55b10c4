// Package delta detects records not yet present in the persisted table.
package delta

import (
	"context"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

// ExistingKeys loads the prior table's document_url set for one source
// type. An absent table yields an empty set.
func ExistingKeys(ctx context.Context, store harvest.RecordStore, st harvest.SourceType) (map[string]bool, error) {
	return store.ExistingKeys(ctx, st)
}

// FilterNew keeps exactly the records whose document URL is non-empty
// and unseen, preserving input order. Records without a document URL are
// excluded from delta-download; the caller may still append them as
// metadata.
func FilterNew(records []harvest.Record, existing map[string]bool) []harvest.Record {
	var fresh []harvest.Record
	for _, record := range records {
		if record.DocumentURL == "" {
			continue
		}
		if existing[record.DocumentURL] {
			continue
		}
		fresh = append(fresh, record)
	}
	return fresh
}
