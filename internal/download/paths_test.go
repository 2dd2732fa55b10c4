package download

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

func TestTaskFor(t *testing.T) {
	b := NewPathBuilder("/data")

	t.Run("LifeHierarchy", func(t *testing.T) {
		task, ok := b.TaskFor(harvest.Record{
			SourceType:  harvest.SourceLife,
			DocumentURL: "https://irdai.gov.in/documents/plan.pdf",
			Fields: map[string]string{
				"financial_year": "2023-24",
				"insurer":        "Acme Life",
				"uin":            "UIN001",
				"product_name":   "Shield Plan",
			},
		})
		require.True(t, ok)
		assert.Equal(t,
			filepath.Join("/data", "downloads", "life", "2023-24", "Acme-Life", "UIN001_Shield-Plan.pdf"),
			task.Destination)
		assert.NotEmpty(t, task.CorrelationID)
	})

	t.Run("LifeListFlat", func(t *testing.T) {
		task, ok := b.TaskFor(harvest.Record{
			SourceType:       harvest.SourceLifeList,
			DocumentURL:      "https://irdai.gov.in/documents/list.xlsx",
			DocumentFilename: "Q3 Product List.xlsx",
			Fields:           map[string]string{"short_description": "ignored"},
		})
		require.True(t, ok)
		assert.Equal(t,
			filepath.Join("/data", "downloads", "life_list", "Q3-Product-List.xlsx"),
			task.Destination)
	})

	t.Run("LifeListFallsBackToDescription", func(t *testing.T) {
		task, ok := b.TaskFor(harvest.Record{
			SourceType:  harvest.SourceLifeList,
			DocumentURL: "https://irdai.gov.in/documents/list.xlsx",
			Fields:      map[string]string{"short_description": "Withdrawn Products 2024"},
		})
		require.True(t, ok)
		assert.Equal(t, "Withdrawn-Products-2024.xlsx", filepath.Base(task.Destination))
	})

	t.Run("MissingFieldsUseFallbacks", func(t *testing.T) {
		task, ok := b.TaskFor(harvest.Record{
			SourceType:  harvest.SourceHealth,
			DocumentURL: "https://irdai.gov.in/documents/plan.pdf",
		})
		require.True(t, ok)
		assert.Equal(t,
			filepath.Join("/data", "downloads", "health", "unknown-fy", "unknown-insurer", "unknown_product.pdf"),
			task.Destination)
	})

	t.Run("NoDocumentURL", func(t *testing.T) {
		_, ok := b.TaskFor(harvest.Record{SourceType: harvest.SourceLife})
		assert.False(t, ok)
	})
}

func TestRelativePath(t *testing.T) {
	b := NewPathBuilder("/data")
	rel, err := b.RelativePath(harvest.SourceLife,
		filepath.Join("/data", "downloads", "life", "2023-24", "Acme", "UIN001_plan.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "2023-24/Acme/UIN001_plan.pdf", rel)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c", SanitizeFilename(`a/b\c`))
	assert.Equal(t, "Shield-Plan-v2", SanitizeFilename("Shield   Plan - v2"))
	assert.Equal(t, "unknown", SanitizeFilename("  "))
	assert.Equal(t, "unknown", SanitizeFilename(`<>:"?*`))

	long := SanitizeFilename(strings.Repeat("x", 400))
	assert.Len(t, long, 100)
}

func TestExtensionFromURL(t *testing.T) {
	assert.Equal(t, ".pdf", ExtensionFromURL("https://x/documents/a.pdf"))
	assert.Equal(t, ".xlsx", ExtensionFromURL("https://x/documents/list.XLSX?v=2"))
	assert.Equal(t, ".xls", ExtensionFromURL("https://x/documents/old.xls"))
	assert.Equal(t, ".xlsx", ExtensionFromURL("https://x/export?format=xls-sheet"))
	assert.Equal(t, ".pdf", ExtensionFromURL("https://x/documents/12345"))
}
