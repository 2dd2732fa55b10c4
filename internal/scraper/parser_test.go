package scraper

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestFindDataTable(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	t.Run("TableClass", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>
			<table class="table table-striped"><tbody><tr><td>x</td></tr></tbody></table>
		</body></html>`)
		assert.NotNil(t, parser.FindDataTable(doc))
	})

	t.Run("PortletContainer", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>
			<div class="portlet-body"><table><tr><td>x</td></tr></table></div>
		</body></html>`)
		assert.NotNil(t, parser.FindDataTable(doc))
	})

	t.Run("NoTable", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body><p>nothing here</p></body></html>`)
		assert.Nil(t, parser.FindDataTable(doc))
	})
}

func TestTableRows(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	t.Run("WithTbody", func(t *testing.T) {
		doc := docFromHTML(t, `<table class="table">
			<thead><tr><th>h</th></tr></thead>
			<tbody><tr><td>1</td></tr><tr><td>2</td></tr></tbody>
		</table>`)
		rows := parser.TableRows(parser.FindDataTable(doc))
		assert.Len(t, rows, 2)
	})

	t.Run("WithoutTbodySkipsHeader", func(t *testing.T) {
		doc := docFromHTML(t, `<table class="table">
			<tr><th>h</th></tr><tr><td>1</td></tr><tr><td>2</td></tr>
		</table>`)
		rows := parser.TableRows(parser.FindDataTable(doc))
		assert.Len(t, rows, 2)
	})
}

func TestCellText(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")
	doc := docFromHTML(t, `<table class="table"><tbody><tr>
		<td>  ULIP   Savings
		Plan  </td>
	</tr></tbody></table>`)
	cells := parser.Cells(parser.TableRows(parser.FindDataTable(doc))[0])
	require.Len(t, cells, 1)
	assert.Equal(t, "ULIP Savings Plan", parser.CellText(cells[0]))
}

func TestDocumentLink(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	cellFor := func(t *testing.T, inner string) *goquery.Selection {
		doc := docFromHTML(t, `<table class="table"><tbody><tr><td>`+inner+`</td></tr></tbody></table>`)
		cells := parser.Cells(parser.TableRows(parser.FindDataTable(doc))[0])
		require.Len(t, cells, 1)
		return cells[0]
	}

	t.Run("RelativePDFAnchor", func(t *testing.T) {
		url, name := parser.DocumentLink(cellFor(t, `<a href="/documents/plan-brochure.pdf">Plan Brochure</a>`))
		assert.Equal(t, "https://irdai.gov.in/documents/plan-brochure.pdf", url)
		assert.Equal(t, "Plan Brochure", name)
	})

	t.Run("FilenameFromURLWhenTextShort", func(t *testing.T) {
		url, name := parser.DocumentLink(cellFor(t, `<a href="/documents/12345/brochure.xlsx">DL</a>`))
		assert.Equal(t, "https://irdai.gov.in/documents/12345/brochure.xlsx", url)
		assert.Equal(t, "brochure.xlsx", name)
	})

	t.Run("WindowOpenHandler", func(t *testing.T) {
		url, name := parser.DocumentLink(cellFor(t,
			`<span onclick="window.open('/documents/55/policy.pdf','_blank')">view</span>`))
		assert.Equal(t, "https://irdai.gov.in/documents/55/policy.pdf", url)
		assert.Equal(t, "policy.pdf", name)
	})

	t.Run("NonDocumentAnchorIgnored", func(t *testing.T) {
		url, name := parser.DocumentLink(cellFor(t, `<a href="/about-us">About</a>`))
		assert.Empty(t, url)
		assert.Empty(t, name)
	})
}

func TestArchiveStatus(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	rowFor := func(t *testing.T, html string) *goquery.Selection {
		doc := docFromHTML(t, `<table class="table"><tbody>`+html+`</tbody></table>`)
		rows := parser.TableRows(parser.FindDataTable(doc))
		require.Len(t, rows, 1)
		return rows[0]
	}

	assert.Equal(t, "Archived",
		parser.ArchiveStatus(rowFor(t, `<tr class="archive-row"><td>x</td></tr>`)))
	assert.Equal(t, "Archived",
		parser.ArchiveStatus(rowFor(t, `<tr><td>Archived</td></tr>`)))
	assert.Equal(t, "Non-Archived",
		parser.ArchiveStatus(rowFor(t, `<tr><td>Non-Archived</td></tr>`)))
	assert.Equal(t, "Non-Archived",
		parser.ArchiveStatus(rowFor(t, `<tr><td>ULIP</td></tr>`)))
}

func TestTotalResults(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	t.Run("WithCommas", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>Showing 1 - 60 of 7,543 results.</body></html>`)
		assert.Equal(t, 7543, parser.TotalResults(doc))
	})

	t.Run("Absent", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>no counter here</body></html>`)
		assert.Equal(t, 0, parser.TotalResults(doc))
	})
}

func TestMaxPaginationPage(t *testing.T) {
	parser := NewTableParser("https://irdai.gov.in")

	t.Run("HighestLinkWins", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body>
			<a href="/p?x_cur=2&d=60">2</a>
			<a href="/p?x_cur=17&d=60">17</a>
			<a href="/p?x_cur=5&d=60">5</a>
		</body></html>`)
		assert.Equal(t, 17, parser.MaxPaginationPage(doc))
	})

	t.Run("DefaultsToOne", func(t *testing.T) {
		doc := docFromHTML(t, `<html><body><a href="/other">link</a></body></html>`)
		assert.Equal(t, 1, parser.MaxPaginationPage(doc))
	})
}
