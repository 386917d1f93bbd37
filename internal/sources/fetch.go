package sources

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html/charset"
)

// fetchResult is the normalized outcome of fetching one URL: whatever the
// content type, Markdown carries the text an adapter should emit.
type fetchResult struct {
	FinalURL string
	Title    string
	Markdown string
}

var pageUserAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:102.0) Gecko/20100101 Firefox/102.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.0.0",
}

// pageFetcher is a hardened HTTP client shared by the web_url, website and
// sitemap adapters.
type pageFetcher struct {
	client   *http.Client
	maxBytes int64
	uaSeed   int
}

func newPageFetcher() *pageFetcher {
	dialer := &net.Dialer{Timeout: 7 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   7 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	checkRedirect := func(req *http.Request, via []*http.Request) error {
		if len(via) > 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	}
	return &pageFetcher{
		client:   &http.Client{Transport: transport, CheckRedirect: checkRedirect, Timeout: 20 * time.Second},
		maxBytes: 8 * 1000 * 1000,
	}
}

func (f *pageFetcher) fetch(ctx context.Context, rawURL string) (*fetchResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	f.uaSeed++
	req.Header.Set("User-Agent", pageUserAgents[f.uaSeed%len(pageUserAgents)])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	ct, cs := parsePageContentType(resp.Header.Get("Content-Type"))

	limited := io.LimitReader(resp.Body, f.maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("response exceeds max bytes (%d)", f.maxBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", rawURL, resp.Status)
	}

	utf8Body, err := toUTF8Bytes(body, cs)
	if err != nil {
		return nil, fmt.Errorf("charset decode: %w", err)
	}

	switch {
	case isHTMLContentType(ct):
		return htmlToResult(finalURL, string(utf8Body))
	case strings.HasPrefix(ct, "text/"), ct == "application/json", strings.HasSuffix(ct, "+json"):
		return &fetchResult{FinalURL: finalURL, Markdown: string(utf8Body)}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q for %s", ct, rawURL)
	}
}

func htmlToResult(finalURL, html string) (*fetchResult, error) {
	var articleHTML, title string
	base, _ := url.Parse(finalURL)
	if art, err := readability.FromReader(strings.NewReader(html), base); err == nil && strings.TrimSpace(art.Content) != "" {
		articleHTML = art.Content
		title = strings.TrimSpace(art.Title)
	} else {
		articleHTML = html
	}

	md, err := htmltomarkdown.ConvertString(articleHTML, converter.WithDomain(pageOrigin(finalURL)))
	if err != nil {
		return nil, fmt.Errorf("html to markdown: %w", err)
	}
	md = strings.TrimSpace(md)
	if title != "" && !strings.HasPrefix(strings.TrimLeft(md, "\n"), "# ") {
		md = "# " + title + "\n\n" + md
	}
	return &fetchResult{FinalURL: finalURL, Title: title, Markdown: md}, nil
}

func parsePageContentType(h string) (ctype, charsetLabel string) {
	if h == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(h)
	if err != nil {
		return h, ""
	}
	return strings.ToLower(mt), strings.ToLower(params["charset"])
}

func isHTMLContentType(ct string) bool {
	return ct == "text/html" || ct == "application/xhtml+xml" || strings.HasSuffix(ct, "html")
}

func toUTF8Bytes(b []byte, charsetLabel string) ([]byte, error) {
	if charsetLabel == "" || strings.EqualFold(charsetLabel, "utf-8") || strings.EqualFold(charsetLabel, "utf8") {
		return b, nil
	}
	r, err := charset.NewReaderLabel(charsetLabel, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

func pageOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
