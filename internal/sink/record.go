// Package sink persists scraped records to durable tabular stores.
package sink

import (
	"time"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/scraper"
)

// columnValue renders one table column for a record. Missing fields
// render as empty strings; attributes outside the declared column set
// are dropped.
func columnValue(record harvest.Record, column string) string {
	switch column {
	case scraper.ColArchiveStatus:
		return record.ArchiveStatus
	case scraper.ColDocumentURL:
		return record.DocumentURL
	case scraper.ColDocumentFilename:
		return record.DocumentFilename
	case scraper.ColLocalFilePath:
		return record.LocalFilePath
	case scraper.ColRemoteURL:
		return record.RemoteURL
	case scraper.ColScrapedAt:
		if record.ScrapedAt.IsZero() {
			return ""
		}
		return record.ScrapedAt.UTC().Format(time.RFC3339)
	default:
		return record.Fields[column]
	}
}

// tableColumns returns the declared column set plus the capture
// timestamp appended last.
func tableColumns(st harvest.SourceType) []string {
	schema := scraper.Schemas[st]
	columns := make([]string, 0, len(schema.Columns)+1)
	columns = append(columns, schema.Columns...)
	return append(columns, scraper.ColScrapedAt)
}
