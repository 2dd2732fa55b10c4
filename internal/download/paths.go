package download

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

const maxFilenameLength = 100

var invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
var dashRuns = regexp.MustCompile(`[-\s]+`)

// PathBuilder derives deterministic destination paths for document
// downloads under the data directory.
type PathBuilder struct {
	downloadsDir string
}

// NewPathBuilder roots download paths at dataDir/downloads.
func NewPathBuilder(dataDir string) *PathBuilder {
	return &PathBuilder{downloadsDir: filepath.Join(dataDir, "downloads")}
}

// DownloadsDir returns the root downloads directory.
func (b *PathBuilder) DownloadsDir() string { return b.downloadsDir }

// SourceDir returns the downloads subdirectory for one source type.
func (b *PathBuilder) SourceDir(st harvest.SourceType) string {
	return filepath.Join(b.downloadsDir, string(st))
}

// TaskFor builds the download task for a record, or false when the
// record carries no document link.
func (b *PathBuilder) TaskFor(record harvest.Record) (harvest.DownloadTask, bool) {
	if record.DocumentURL == "" {
		return harvest.DownloadTask{}, false
	}
	return harvest.DownloadTask{
		URL:           record.DocumentURL,
		Destination:   b.destination(record),
		SourceType:    record.SourceType,
		CorrelationID: uuid.NewString(),
	}, true
}

func (b *PathBuilder) destination(record harvest.Record) string {
	ext := ExtensionFromURL(record.DocumentURL)

	if record.SourceType == harvest.SourceLifeList {
		name := SanitizeFilename(record.Field("short_description"))
		if record.DocumentFilename != "" {
			name = SanitizeFilename(record.DocumentFilename)
		}
		if !strings.HasSuffix(name, ext) {
			name += ext
		}
		return filepath.Join(b.SourceDir(record.SourceType), name)
	}

	fy := sanitizeOr(record.Field("financial_year"), "unknown-fy")
	insurer := sanitizeOr(record.Field("insurer"), "unknown-insurer")
	uin := sanitizeOr(record.Field("uin"), "unknown")
	product := sanitizeOr(record.Field("product_name"), "product")
	filename := fmt.Sprintf("%s_%s%s", uin, product, ext)
	return filepath.Join(b.SourceDir(record.SourceType), fy, insurer, filename)
}

// RelativePath returns a download destination relative to the source
// type's directory, slash-separated for use as an object storage key.
func (b *PathBuilder) RelativePath(st harvest.SourceType, destination string) (string, error) {
	rel, err := filepath.Rel(b.SourceDir(st), destination)
	if err != nil {
		return "", fmt.Errorf("relative path for %s: %w", destination, err)
	}
	return filepath.ToSlash(rel), nil
}

// SanitizeFilename strips characters unusable in file names, collapses
// whitespace and dash runs, and truncates overlong names.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "-")
	name = dashRuns.ReplaceAllString(name, "-")
	name = strings.Trim(name, "- ")
	if name == "" {
		return "unknown"
	}
	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}
	return name
}

func sanitizeOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return SanitizeFilename(fallback)
	}
	return SanitizeFilename(value)
}

// ExtensionFromURL infers a document extension, defaulting to .pdf.
func ExtensionFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		if p, err := url.PathUnescape(u.Path); err == nil {
			path = p
		} else {
			path = u.Path
		}
	}
	lower := strings.ToLower(path)
	for _, ext := range []string{".pdf", ".xlsx", ".xls"} {
		if strings.Contains(lower, ext) {
			return ext
		}
	}
	if strings.Contains(strings.ToLower(raw), "xls") {
		return ".xlsx"
	}
	return ".pdf"
}
