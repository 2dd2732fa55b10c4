package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/scraper"
)

// CSVStore appends records to one CSV file per source type under
// dataDir/metadata. It is the default RecordStore.
type CSVStore struct {
	metadataDir string
}

// NewCSVStore roots table files at dataDir/metadata.
func NewCSVStore(dataDir string) *CSVStore {
	return &CSVStore{metadataDir: filepath.Join(dataDir, "metadata")}
}

// TablePath returns the CSV file for a source type.
func (s *CSVStore) TablePath(st harvest.SourceType) string {
	return filepath.Join(s.metadataDir, scraper.Schemas[st].TableName+".csv")
}

// Append writes records, emitting the header exactly once when the file
// is newly created or truncated.
func (s *CSVStore) Append(_ context.Context, st harvest.SourceType, records []harvest.Record, appendMode bool) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	if err := os.MkdirAll(s.metadataDir, 0o750); err != nil {
		return 0, &harvest.StorageError{Op: "mkdir", Key: s.metadataDir, Err: err}
	}

	path := s.TablePath(st)
	info, err := os.Stat(path)
	exists := err == nil && info.Size() > 0

	flags := os.O_CREATE | os.O_WRONLY
	writeHeader := true
	if appendMode && exists {
		flags |= os.O_APPEND
		writeHeader = false
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o600) // #nosec G304 -- path derived from the static schema table name
	if err != nil {
		return 0, &harvest.StorageError{Op: "open", Key: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	columns := tableColumns(st)

	if writeHeader {
		if err := w.Write(columns); err != nil {
			return 0, &harvest.StorageError{Op: "write header", Key: path, Err: err}
		}
	}

	written := 0
	for _, record := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = columnValue(record, col)
		}
		if err := w.Write(row); err != nil {
			return written, &harvest.StorageError{Op: "write row", Key: path, Err: err}
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return written, &harvest.StorageError{Op: "flush", Key: path, Err: err}
	}
	return written, nil
}

// ExistingKeys loads the document_url column from a prior table, or an
// empty set when the table is absent.
func (s *CSVStore) ExistingKeys(_ context.Context, st harvest.SourceType) (map[string]bool, error) {
	keys := make(map[string]bool)

	path := s.TablePath(st)
	f, err := os.Open(path) // #nosec G304 -- path derived from the static schema table name
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, &harvest.StorageError{Op: "open", Key: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return keys, nil
		}
		return nil, &harvest.StorageError{Op: "read header", Key: path, Err: err}
	}
	urlCol := -1
	for i, name := range header {
		if name == scraper.ColDocumentURL {
			urlCol = i
			break
		}
	}
	if urlCol < 0 {
		return keys, nil
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &harvest.StorageError{Op: "read row", Key: path, Err: err}
		}
		if urlCol < len(row) && row[urlCol] != "" {
			keys[row[urlCol]] = true
		}
	}
	return keys, nil
}

// Count reports the number of data rows in a table.
func (s *CSVStore) Count(st harvest.SourceType) (int, error) {
	path := s.TablePath(st)
	f, err := os.Open(path) // #nosec G304 -- path derived from the static schema table name
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open table %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	count := -1 // header
	for {
		if _, err := r.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, fmt.Errorf("read table %s: %w", path, err)
		}
		count++
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}
