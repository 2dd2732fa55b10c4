package harvest

import (
	"context"
)

// RecordStore appends records to the durable per-source-type table and
// exposes the document_url column for delta detection.
type RecordStore interface {
	// Append writes records for one source type. When appendMode is
	// false the table is truncated first. Returns rows written.
	Append(ctx context.Context, st SourceType, records []Record, appendMode bool) (int, error)
	// ExistingKeys returns the set of non-empty document_url values
	// already present, or an empty set when the table does not exist.
	ExistingKeys(ctx context.Context, st SourceType) (map[string]bool, error)
}

// ObjectStore is an S3-compatible remote file store.
type ObjectStore interface {
	// Upload transfers a local file under key and returns its public URL.
	Upload(ctx context.Context, localPath, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
