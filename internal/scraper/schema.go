package scraper

import (
	"github.com/openinsure/irdai-harvester/internal/harvest"
)

// Universal column names shared by every table schema.
const (
	ColArchiveStatus    = "archive_status"
	ColDocumentURL      = "document_url"
	ColDocumentFilename = "document_filename"
	ColLocalFilePath    = "local_file_path"
	ColRemoteURL        = "remote_url"
	ColScrapedAt        = "scraped_at"
)

// FieldMapping binds one table cell index to a record field.
// Cell 0 is the portal's checkbox column on every listing page.
type FieldMapping struct {
	Cell  int
	Field string
}

// PageSchema is the data-driven extraction strategy for one source type:
// where the page lives, how many cells a real row has, which cell feeds
// which field, and where the document link hides.
type PageSchema struct {
	SourceType harvest.SourceType
	URLPath    string
	// MinColumns is the minimum cell count of a data row. The portal
	// renders structurally inconsistent filler rows at page boundaries;
	// shorter rows are skipped, not errors.
	MinColumns int
	// RequiredField names a business field that must be non-empty for
	// the row to count as a product (placeholder rows leave it blank).
	RequiredField string
	FieldMappings []FieldMapping
	// DocumentCells are candidate cell indices for the document link,
	// tried in order. Negative values index from the end of the row.
	DocumentCells []int
	// Columns is the persisted table's column order.
	Columns    []string
	FileFormat string
	TableName  string
}

// Schemas maps each source type to its extraction strategy. Cell layouts
// mirror the portal's rendered tables, checkbox column included.
var Schemas = map[harvest.SourceType]PageSchema{
	harvest.SourceLife: {
		SourceType:    harvest.SourceLife,
		URLPath:       "/life-insurance-products",
		MinColumns:    13,
		RequiredField: "uin",
		FieldMappings: []FieldMapping{
			{Cell: 1, Field: ColArchiveStatus},
			{Cell: 2, Field: "financial_year"},
			{Cell: 3, Field: "insurer"},
			{Cell: 4, Field: "product_name"},
			{Cell: 5, Field: "uin"},
			{Cell: 6, Field: "type_of_product"},
			{Cell: 7, Field: "launch_modification_date"},
			{Cell: 8, Field: "closing_withdrawal_date"},
			{Cell: 9, Field: "protection_savings_retirement"},
			{Cell: 10, Field: "par_nonpar"},
			{Cell: 11, Field: "individual_group"},
			{Cell: 12, Field: "remarks"},
		},
		DocumentCells: []int{-1},
		Columns: []string{
			ColArchiveStatus,
			"financial_year",
			"insurer",
			"product_name",
			"uin",
			"type_of_product",
			"launch_modification_date",
			"closing_withdrawal_date",
			"protection_savings_retirement",
			"par_nonpar",
			"individual_group",
			"remarks",
			ColDocumentURL,
			ColDocumentFilename,
			ColLocalFilePath,
			ColRemoteURL,
		},
		FileFormat: "pdf",
		TableName:  "life_insurance_products",
	},
	harvest.SourceLifeList: {
		SourceType:    harvest.SourceLifeList,
		URLPath:       "/list-of-life-products",
		MinColumns:    5,
		RequiredField: "short_description",
		FieldMappings: []FieldMapping{
			{Cell: 1, Field: ColArchiveStatus},
			{Cell: 2, Field: "short_description"},
			{Cell: 3, Field: "last_updated"},
			{Cell: 4, Field: "sub_title"},
		},
		DocumentCells: []int{-1},
		Columns: []string{
			ColArchiveStatus,
			"short_description",
			"last_updated",
			"sub_title",
			ColDocumentURL,
			ColDocumentFilename,
			ColLocalFilePath,
			ColRemoteURL,
		},
		FileFormat: "xlsx",
		TableName:  "life_products_list",
	},
	harvest.SourceNonLife: {
		SourceType: harvest.SourceNonLife,
		URLPath:    "/non-life-insurance-products",
		MinColumns: 9,
		FieldMappings: []FieldMapping{
			{Cell: 1, Field: ColArchiveStatus},
			{Cell: 2, Field: "s_no"},
			{Cell: 3, Field: "financial_year"},
			{Cell: 4, Field: "insurer"},
			{Cell: 5, Field: "product_name"},
			{Cell: 6, Field: "type_of_product"},
			{Cell: 7, Field: "uin"},
			{Cell: 8, Field: "date_of_approval"},
		},
		DocumentCells: []int{-1},
		Columns: []string{
			"s_no",
			"financial_year",
			"insurer",
			"product_name",
			"type_of_product",
			"uin",
			"date_of_approval",
			ColDocumentURL,
			ColDocumentFilename,
			ColLocalFilePath,
			ColRemoteURL,
			ColArchiveStatus,
		},
		FileFormat: "pdf",
		TableName:  "nonlife_insurance_products",
	},
	harvest.SourceHealth: {
		SourceType: harvest.SourceHealth,
		URLPath:    "/health-insurance-products",
		MinColumns: 8,
		FieldMappings: []FieldMapping{
			{Cell: 1, Field: ColArchiveStatus},
			{Cell: 2, Field: "financial_year"},
			{Cell: 3, Field: "insurer"},
			{Cell: 4, Field: "uin"},
			{Cell: 5, Field: "product_name"},
			{Cell: 6, Field: "date_of_approval"},
			{Cell: 8, Field: "type_of_product"},
		},
		// The documents column sits second to last on the health page.
		DocumentCells: []int{-2, -1},
		Columns: []string{
			"financial_year",
			"insurer",
			"uin",
			"product_name",
			"date_of_approval",
			ColDocumentURL,
			ColDocumentFilename,
			ColLocalFilePath,
			ColRemoteURL,
			"type_of_product",
			ColArchiveStatus,
		},
		FileFormat: "pdf",
		TableName:  "health_insurance_products",
	},
}
