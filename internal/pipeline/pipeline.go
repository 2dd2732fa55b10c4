// Package pipeline wires scraping, delta detection, downloading and
// persistence into the harvest workflows.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/config"
	"github.com/openinsure/irdai-harvester/internal/delta"
	"github.com/openinsure/irdai-harvester/internal/download"
	"github.com/openinsure/irdai-harvester/internal/harvest"
	"github.com/openinsure/irdai-harvester/internal/objstore"
	"github.com/openinsure/irdai-harvester/internal/scraper"
	"github.com/openinsure/irdai-harvester/internal/state"
	"github.com/openinsure/irdai-harvester/internal/telemetry"
)

// Options tune one pipeline invocation.
type Options struct {
	// StartPage overrides the resume cursor when positive.
	StartPage int
	// EndPage overrides pagination discovery when positive.
	EndPage int
	// MetadataOnly skips downloads and uploads.
	MetadataOnly bool
}

// Pipeline orchestrates the harvest for all source types.
type Pipeline struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *scraper.PageFetcher
	engine  *download.Engine
	paths   *download.PathBuilder
	states  *state.Store
	records harvest.RecordStore
	objects harvest.ObjectStore
}

// New builds a Pipeline. objects may be nil for local-only storage.
func New(
	cfg config.Config,
	states *state.Store,
	records harvest.RecordStore,
	objects harvest.ObjectStore,
	logger *zap.Logger,
) *Pipeline {
	fetcher := scraper.NewPageFetcher(scraper.Config{
		BaseURL:            cfg.Portal.BaseURL,
		PortletID:          cfg.Portal.PortletID,
		ItemsPerPage:       cfg.Portal.ItemsPerPage,
		UserAgent:          cfg.Portal.UserAgent,
		PageTimeout:        cfg.Portal.PageTimeout(),
		InsecureSkipVerify: cfg.Portal.InsecureSkipVerify,
	}, logger)

	engine := download.NewEngine(download.Config{
		MaxConcurrency:     cfg.Download.Concurrency,
		RateLimit:          cfg.Download.RateLimit,
		RetryAttempts:      cfg.Download.RetryAttempts,
		RetryDelay:         cfg.Download.RetryDelay(),
		RequestTimeout:     cfg.Download.Timeout(),
		UserAgent:          cfg.Portal.UserAgent,
		InsecureSkipVerify: cfg.Portal.InsecureSkipVerify,
	}, logger)

	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		engine:  engine,
		paths:   download.NewPathBuilder(cfg.DataDir),
		states:  states,
		records: records,
		objects: objects,
	}
}

// HarvestSource runs the resumable page-by-page scrape for one source
// type: fetch, extract, download new documents, append records, advance
// the page cursor. Interrupting after page k resumes at k+1.
func (p *Pipeline) HarvestSource(ctx context.Context, st harvest.SourceType, opts Options) (harvest.Summary, error) {
	summary := harvest.Summary{SourceType: st}

	session, err := p.states.StartSession(st)
	if err != nil {
		return summary, fmt.Errorf("start session: %w", err)
	}
	start := session.LastCompletedPage + 1
	if opts.StartPage > 0 {
		start = opts.StartPage
	}

	sc := scraper.New(p.fetcher, scraper.Schemas[st], p.logger)
	end := opts.EndPage
	if end <= 0 {
		end, err = sc.TotalPages(ctx)
		if err != nil {
			if ferr := p.states.FailSession(st, err.Error()); ferr != nil {
				p.logger.Error("fail session", zap.Error(ferr))
			}
			return summary, fmt.Errorf("discover pagination for %s: %w", st, err)
		}
	}

	if start > 1 {
		p.logger.Info("resuming session",
			zap.String("source_type", string(st)),
			zap.Int("page", start))
	}

	for page, records := range sc.Pages(ctx, start, end) {
		if len(records) > 0 {
			if !opts.MetadataOnly {
				downloaded, failed, uploaded := p.transferDocuments(ctx, st, records, true)
				summary.FilesDownloaded += downloaded
				summary.FilesFailed += failed
				summary.FilesUploaded += uploaded
			}
			appended, err := p.records.Append(ctx, st, records, true)
			if err != nil {
				if ferr := p.states.FailSession(st, err.Error()); ferr != nil {
					p.logger.Error("fail session", zap.Error(ferr))
				}
				return summary, fmt.Errorf("append records: %w", err)
			}
			summary.RecordsSeen += len(records)
			summary.RecordsAppended += appended
		}
		if err := p.states.UpdatePageProgress(st, page); err != nil {
			return summary, fmt.Errorf("update page progress: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		if ferr := p.states.FailSession(st, err.Error()); ferr != nil {
			p.logger.Error("fail session", zap.Error(ferr))
		}
		return summary, err
	}
	if err := p.states.CompleteSession(st, summary.RecordsSeen); err != nil {
		return summary, fmt.Errorf("complete session: %w", err)
	}
	return summary, nil
}

// DeltaSource scrapes all metadata for one source type, filters against
// the persisted table's document URLs and processes only unseen records.
// This path relies solely on the table for dedup; the session-level
// completed-download set is deliberately not consulted.
func (p *Pipeline) DeltaSource(ctx context.Context, st harvest.SourceType, opts Options) (harvest.Summary, error) {
	summary := harvest.Summary{SourceType: st}

	existing, err := delta.ExistingKeys(ctx, p.records, st)
	if err != nil {
		return summary, fmt.Errorf("load existing keys: %w", err)
	}
	p.logger.Info("loaded existing records",
		zap.String("source_type", string(st)),
		zap.Int("count", len(existing)))

	sc := scraper.New(p.fetcher, scraper.Schemas[st], p.logger)
	start := 1
	if opts.StartPage > 0 {
		start = opts.StartPage
	}
	end := opts.EndPage
	if end <= 0 {
		end, err = sc.TotalPages(ctx)
		if err != nil {
			return summary, fmt.Errorf("discover pagination for %s: %w", st, err)
		}
	}

	var all []harvest.Record
	for page, records := range sc.Pages(ctx, start, end) {
		all = append(all, records...)
		p.logger.Debug("page scraped",
			zap.String("source_type", string(st)),
			zap.Int("page", page),
			zap.Int("records", len(all)))
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	summary.RecordsSeen = len(all)

	fresh := delta.FilterNew(all, existing)
	if len(fresh) == 0 {
		p.logger.Info("no new records", zap.String("source_type", string(st)))
		return summary, nil
	}

	if !opts.MetadataOnly {
		downloaded, failed, uploaded := p.transferDocuments(ctx, st, fresh, false)
		summary.FilesDownloaded = downloaded
		summary.FilesFailed = failed
		summary.FilesUploaded = uploaded
	}

	appended, err := p.records.Append(ctx, st, fresh, true)
	if err != nil {
		return summary, fmt.Errorf("append records: %w", err)
	}
	summary.RecordsAppended = appended
	return summary, nil
}

// RetryFailed re-attempts every recorded failed download, clearing
// entries that now succeed.
func (p *Pipeline) RetryFailed(ctx context.Context) (succeeded, failed int, err error) {
	pending := p.states.FailedDownloads()
	if len(pending) == 0 {
		return 0, 0, nil
	}

	tasks := make([]harvest.DownloadTask, 0, len(pending))
	for _, fd := range pending {
		name := download.SanitizeFilename(filepath.Base(fd.URL))
		if ext := download.ExtensionFromURL(fd.URL); !strings.HasSuffix(name, ext) {
			name += ext
		}
		tasks = append(tasks, harvest.DownloadTask{
			URL:         fd.URL,
			Destination: filepath.Join(p.paths.DownloadsDir(), "retry", "file_"+name),
		})
	}

	for _, result := range p.engine.Batch(ctx, tasks) {
		if result.Success {
			succeeded++
			if err := p.states.MarkDownloadCompleted(result.URL); err != nil {
				return succeeded, failed, err
			}
			if err := p.states.ClearFailedDownload(result.URL); err != nil {
				return succeeded, failed, err
			}
		} else {
			failed++
			if err := p.states.MarkDownloadFailed(result.URL, result.Err); err != nil {
				return succeeded, failed, err
			}
		}
	}
	return succeeded, failed, nil
}

// transferDocuments downloads the documents for a record batch and hands
// finished files to object storage per the configured mode. Records gain
// LocalFilePath and RemoteURL in place. When trackState is set, the
// resume dedup set guards and records each URL.
func (p *Pipeline) transferDocuments(
	ctx context.Context,
	st harvest.SourceType,
	records []harvest.Record,
	trackState bool,
) (downloaded, failed, uploaded int) {
	byURL := make(map[string][]int)
	var tasks []harvest.DownloadTask
	for i := range records {
		url := records[i].DocumentURL
		if url == "" {
			continue
		}
		if trackState && p.states.IsDownloadCompleted(url) {
			continue
		}
		if _, seen := byURL[url]; !seen {
			task, ok := p.paths.TaskFor(records[i])
			if !ok {
				continue
			}
			tasks = append(tasks, task)
		}
		byURL[url] = append(byURL[url], i)
	}
	if len(tasks) == 0 {
		return 0, 0, 0
	}

	results := p.engine.Batch(ctx, tasks)
	for _, result := range results {
		indexes := byURL[result.URL]
		if !result.Success {
			failed++
			if trackState {
				if err := p.states.MarkDownloadFailed(result.URL, result.Err); err != nil {
					p.logger.Error("record failed download", zap.Error(err))
				}
			}
			p.logger.Warn("download failed",
				zap.String("url", result.URL),
				zap.String("error", result.Err))
			continue
		}

		downloaded++
		if trackState {
			if err := p.states.MarkDownloadCompleted(result.URL); err != nil {
				p.logger.Error("record completed download", zap.Error(err))
			}
		}

		localPath := result.Path
		remoteURL := ""
		if p.storeRemotely() {
			url, err := p.uploadDocument(ctx, st, result.Path)
			if err != nil {
				telemetry.IncUpload("error")
				p.logger.Error("object storage upload failed",
					zap.String("path", result.Path),
					zap.Error(err))
			} else {
				telemetry.IncUpload("ok")
				uploaded++
				remoteURL = url
				if p.cfg.Storage.Mode == config.StorageRemote {
					// Local copy is only deleted after a verified upload.
					if err := os.Remove(result.Path); err != nil && !os.IsNotExist(err) {
						p.logger.Warn("remove local copy", zap.Error(err))
					}
					localPath = ""
				}
			}
		}

		for _, i := range indexes {
			records[i].LocalFilePath = localPath
			records[i].RemoteURL = remoteURL
		}
	}
	return downloaded, failed, uploaded
}

func (p *Pipeline) storeRemotely() bool {
	return p.objects != nil &&
		(p.cfg.Storage.Mode == config.StorageRemote || p.cfg.Storage.Mode == config.StorageBoth)
}

func (p *Pipeline) uploadDocument(ctx context.Context, st harvest.SourceType, localPath string) (string, error) {
	rel, err := p.paths.RelativePath(st, localPath)
	if err != nil {
		return "", err
	}
	return p.objects.Upload(ctx, localPath, objstore.Key(st, rel))
}
