package scraper

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	totalResultsRe = regexp.MustCompile(`(?i)of\s+([\d,]+)\s+results?`)
	curPageRe      = regexp.MustCompile(`_cur=(\d+)`)
	windowOpenRe   = regexp.MustCompile(`window\.open\(['"]([^'"]+)['"]`)
	urlFilenameRe  = regexp.MustCompile(`(?i)/([^/]+\.(pdf|xlsx|xls))`)
)

// documentPathHints mark hrefs that point at downloadable documents.
var documentPathHints = []string{".pdf", ".xlsx", ".xls", "/documents/"}

// TableParser extracts structured data from the portal's Liferay-rendered
// listing tables.
type TableParser struct {
	baseURL string
}

// NewTableParser returns a parser resolving relative links against baseURL.
func NewTableParser(baseURL string) *TableParser {
	return &TableParser{baseURL: strings.TrimRight(baseURL, "/")}
}

// FindDataTable locates the single data table on a listing page: any
// table carrying a table-style class, or a table inside a portlet
// container.
func (p *TableParser) FindDataTable(doc *goquery.Document) *goquery.Selection {
	var found *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if strings.Contains(strings.ToLower(class), "table") {
			found = s
			return false
		}
		return true
	})
	if found != nil {
		return found
	}
	doc.Find("div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		if !strings.Contains(strings.ToLower(class), "portlet") {
			return true
		}
		table := s.Find("table").First()
		if table.Length() > 0 {
			found = table
			return false
		}
		return true
	})
	return found
}

// TableRows returns the data rows of a table, header excluded.
func (p *TableParser) TableRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	tbody := table.Find("tbody").First()
	if tbody.Length() > 0 {
		tbody.ChildrenFiltered("tr").Each(func(_ int, s *goquery.Selection) {
			// The html parser hoists header rows written without a thead
			// into the tbody; th-only rows are headers, not data.
			if s.Find("td").Length() == 0 {
				return
			}
			rows = append(rows, s)
		})
		return rows
	}
	table.Find("tr").Each(func(_ int, s *goquery.Selection) {
		rows = append(rows, s)
	})
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows
}

// Cells returns all td/th cells of a row.
func (p *TableParser) Cells(row *goquery.Selection) []*goquery.Selection {
	var cells []*goquery.Selection
	row.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		cells = append(cells, s)
	})
	return cells
}

// CellText extracts whitespace-normalized text from a cell.
func (p *TableParser) CellText(cell *goquery.Selection) string {
	text := whitespaceRe.ReplaceAllString(cell.Text(), " ")
	return strings.TrimSpace(text)
}

// DocumentLink scans a cell for an anchor pointing at a document-like
// path, falling back to window.open(...) inline handlers. Returns the
// absolute URL and a filename, both empty when no link is found.
func (p *TableParser) DocumentLink(cell *goquery.Selection) (string, string) {
	var docURL, filename string
	cell.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		for _, hint := range documentPathHints {
			if strings.Contains(lower, hint) {
				docURL = p.absoluteURL(href)
				filename = strings.TrimSpace(a.Text())
				if len(filename) < 3 {
					filename = filenameFromURL(href)
				}
				return false
			}
		}
		return true
	})
	if docURL != "" {
		return docURL, filename
	}

	cell.Find("[onclick]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		onclick, _ := s.Attr("onclick")
		if m := windowOpenRe.FindStringSubmatch(onclick); m != nil {
			docURL = p.absoluteURL(m[1])
			filename = filenameFromURL(docURL)
			return false
		}
		return true
	})
	return docURL, filename
}

// ArchiveStatus classifies a row as archived or not from its classes and
// leading cell text.
func (p *TableParser) ArchiveStatus(row *goquery.Selection) string {
	class, _ := row.Attr("class")
	if strings.Contains(strings.ToLower(class), "archive") {
		return "Archived"
	}
	cells := p.Cells(row)
	if len(cells) > 0 {
		first := strings.ToLower(p.CellText(cells[0]))
		switch {
		case strings.Contains(first, "non-archived"), strings.Contains(first, "non archived"):
			return "Non-Archived"
		case strings.Contains(first, "archived"):
			return "Archived"
		}
	}
	return "Non-Archived"
}

// TotalResults reads the "Showing X - Y of Z results" figure from a page,
// returning 0 when it is absent.
func (p *TableParser) TotalResults(doc *goquery.Document) int {
	m := totalResultsRe.FindStringSubmatch(doc.Text())
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0
	}
	return n
}

// MaxPaginationPage scans pagination links for the highest referenced
// page index, defaulting to 1.
func (p *TableParser) MaxPaginationPage(doc *goquery.Document) int {
	maxPage := 1
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if m := curPageRe.FindStringSubmatch(href); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > maxPage {
				maxPage = n
			}
		}
	})
	return maxPage
}

func (p *TableParser) absoluteURL(href string) string {
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func filenameFromURL(raw string) string {
	if m := urlFilenameRe.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	parts := strings.Split(raw, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.Contains(parts[i], ".") {
			return strings.SplitN(parts[i], "?", 2)[0]
		}
	}
	return ""
}
