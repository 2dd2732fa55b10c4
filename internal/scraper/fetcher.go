package scraper

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/openinsure/irdai-harvester/internal/harvest"
)

// Config controls portal access.
type Config struct {
	BaseURL      string
	PortletID    string
	ItemsPerPage int
	UserAgent    string
	PageTimeout  time.Duration
	// InsecureSkipVerify disables TLS verification. The portal host
	// serves a known-defective certificate chain.
	InsecureSkipVerify bool
}

// PageFetcher retrieves listing pages through a Colly collector.
type PageFetcher struct {
	base   *colly.Collector
	cfg    Config
	logger *zap.Logger
}

// NewPageFetcher constructs a configured Colly-based fetcher.
func NewPageFetcher(cfg Config, logger *zap.Logger) *PageFetcher {
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.PageTimeout,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, // #nosec G402 -- portal certificate defect
	})
	base.SetRequestTimeout(cfg.PageTimeout)

	return &PageFetcher{base: base, cfg: cfg, logger: logger}
}

// PageURL builds the portlet pagination URL for a page index.
func (f *PageFetcher) PageURL(urlPath string, page int) string {
	return fmt.Sprintf(
		"%s%s?p_p_id=%s&_%s_cur=%d&_%s_delta=%d",
		f.cfg.BaseURL, urlPath,
		f.cfg.PortletID,
		f.cfg.PortletID, page,
		f.cfg.PortletID, f.cfg.ItemsPerPage,
	)
}

// FetchPage retrieves one listing page and returns its parsed document.
// Network, timeout and non-2xx failures surface as TransportError; no
// inline retry, the caller recovers by resuming the session.
func (f *PageFetcher) FetchPage(ctx context.Context, urlPath string, page int) (*goquery.Document, error) {
	pageURL := f.PageURL(urlPath, page)

	collector := f.base.Clone()
	type fetchResult struct {
		body   []byte
		status int
		err    error
	}
	resultCh := make(chan fetchResult, 1)
	send := func(res fetchResult) {
		select {
		case resultCh <- res:
		default:
		}
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{body: append([]byte{}, r.Body...), status: r.StatusCode})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		send(fetchResult{status: status, err: err})
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, &harvest.TransportError{URL: pageURL, Err: err}
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, &harvest.TransportError{URL: pageURL, StatusCode: res.status, Err: res.err}
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.body))
		if err != nil {
			return nil, &harvest.ParseError{Detail: fmt.Sprintf("page %d markup", page), Err: err}
		}
		return doc, nil
	default:
		return nil, &harvest.TransportError{URL: pageURL, Err: errors.New("fetch produced no result")}
	}
}
