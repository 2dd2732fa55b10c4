// Package scraper fetches portal listing pages and extracts product
// records through per-source-type column mappings.
package scraper

import (
	"context"
	"iter"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/telemetry"
)

// Scraper drives page-by-page extraction for a single source type.
type Scraper struct {
	fetcher    *PageFetcher
	parser     *TableParser
	schema     PageSchema
	logger     *zap.Logger
	totalPages int
}

// New builds a Scraper for one source type's listing page.
func New(fetcher *PageFetcher, schema PageSchema, logger *zap.Logger) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		parser:  NewTableParser(fetcher.cfg.BaseURL),
		schema:  schema,
		logger:  logger,
	}
}

// Schema returns the scraper's extraction strategy.
func (s *Scraper) Schema() PageSchema { return s.schema }

// TotalPages computes the page count once from the first page: the
// portal's "of N results" figure divided (ceiling) by items per page,
// falling back to the highest page index referenced by pagination links.
func (s *Scraper) TotalPages(ctx context.Context) (int, error) {
	if s.totalPages > 0 {
		return s.totalPages, nil
	}
	doc, err := s.fetcher.FetchPage(ctx, s.schema.URLPath, 1)
	if err != nil {
		return 0, err
	}
	if total := s.parser.TotalResults(doc); total > 0 {
		per := s.fetcher.cfg.ItemsPerPage
		s.totalPages = (total + per - 1) / per
	} else {
		s.totalPages = s.parser.MaxPaginationPage(doc)
	}
	return s.totalPages, nil
}

// ExtractRecords pulls every product row out of a listing page document.
// Rows shorter than the schema minimum are silently skipped; other
// per-row failures are logged and contained.
func (s *Scraper) ExtractRecords(doc *goquery.Document) []harvest.Record {
	table := s.parser.FindDataTable(doc)
	if table == nil {
		s.logger.Warn("no data table found on page",
			zap.String("source_type", string(s.schema.SourceType)))
		return nil
	}

	var records []harvest.Record
	for _, row := range s.parser.TableRows(table) {
		record, ok := s.extractRow(row)
		if ok {
			records = append(records, record)
		}
	}
	telemetry.AddRecordsExtracted(string(s.schema.SourceType), len(records))
	return records
}

func (s *Scraper) extractRow(row *goquery.Selection) (harvest.Record, bool) {
	cells := s.parser.Cells(row)
	if len(cells) < s.schema.MinColumns {
		return harvest.Record{}, false
	}

	record := harvest.Record{
		SourceType:    s.schema.SourceType,
		Fields:        make(map[string]string, len(s.schema.FieldMappings)),
		ArchiveStatus: s.parser.ArchiveStatus(row),
		ScrapedAt:     time.Now().UTC(),
	}

	for _, fm := range s.schema.FieldMappings {
		if fm.Cell >= len(cells) {
			continue
		}
		text := s.parser.CellText(cells[fm.Cell])
		if fm.Field == ColArchiveStatus {
			if text != "" {
				record.ArchiveStatus = text
			}
			continue
		}
		record.Fields[fm.Field] = text
	}

	if s.schema.RequiredField != "" && record.Fields[s.schema.RequiredField] == "" {
		return harvest.Record{}, false
	}

	for _, idx := range s.schema.DocumentCells {
		if idx < 0 {
			idx += len(cells)
		}
		if idx < 0 || idx >= len(cells) {
			continue
		}
		url, filename := s.parser.DocumentLink(cells[idx])
		if url != "" {
			record.DocumentURL = url
			record.DocumentFilename = filename
			break
		}
	}
	// Records with no discoverable document link still pass through as
	// metadata; they are never selected for download.
	return record, true
}

// ScrapePage fetches and extracts a single page.
func (s *Scraper) ScrapePage(ctx context.Context, page int) ([]harvest.Record, error) {
	doc, err := s.fetcher.FetchPage(ctx, s.schema.URLPath, page)
	if err != nil {
		telemetry.IncPageScraped(string(s.schema.SourceType), "error")
		return nil, err
	}
	telemetry.IncPageScraped(string(s.schema.SourceType), "ok")
	return s.ExtractRecords(doc), nil
}

// Pages yields (page, records) sequentially from start through end.
// Per-page failures are logged and yielded as an empty record set; the
// caller decides whether that means exhaustion or skip-and-continue.
func (s *Scraper) Pages(ctx context.Context, start, end int) iter.Seq2[int, []harvest.Record] {
	return func(yield func(int, []harvest.Record) bool) {
		for page := start; page <= end; page++ {
			if ctx.Err() != nil {
				return
			}
			records, err := s.ScrapePage(ctx, page)
			if err != nil {
				s.logger.Error("page scrape failed",
					zap.String("source_type", string(s.schema.SourceType)),
					zap.Int("page", page),
					zap.Error(err))
				records = nil
			}
			if !yield(page, records) {
				return
			}
		}
	}
}
