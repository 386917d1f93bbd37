package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"

	"ingestcore/internal/ingestmodel"
)

// WebsiteAdapter performs a breadth-first crawl starting from StartURLs,
// following links confined to AllowedPrefixes, up to MaxPages pages.
// Pages are rendered via a headless Chrome instance so JavaScript-driven
// content is captured, not just the server-rendered HTML a plain GET
// would see.
type WebsiteAdapter struct {
	StartURLs       []string
	AllowedPrefixes []string
	MaxPages        int
}

func (a *WebsiteAdapter) Stream(ctx context.Context) (<-chan ingestmodel.Item, <-chan error) {
	return runStream(ctx, a.emit)
}

func (a *WebsiteAdapter) emit(ctx context.Context, items chan<- ingestmodel.Item) error {
	maxPages := a.MaxPages
	if maxPages <= 0 {
		maxPages = 100
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	visited := make(map[string]bool)
	queue := append([]string{}, a.StartURLs...)

	for len(queue) > 0 && len(visited) < maxPages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		next := queue[0]
		queue = queue[1:]
		if visited[next] || !allowedByPrefix(next, a.AllowedPrefixes) {
			continue
		}
		if !robotsAllow(next) {
			continue
		}
		visited[next] = true

		rawHTML, err := renderPage(browserCtx, next)
		if err != nil {
			continue
		}

		res, err := htmlToResult(next, rawHTML)
		if err == nil && strings.TrimSpace(res.Markdown) != "" {
			item := ingestmodel.NewItem(next, res.Markdown, map[string]any{
				ingestmodel.MetaSourceURL: next,
				ingestmodel.MetaTitle:     res.Title,
			})
			select {
			case items <- item:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		for _, link := range extractLinks(next, rawHTML) {
			if !visited[link] && allowedByPrefix(link, a.AllowedPrefixes) {
				queue = append(queue, link)
			}
		}
	}
	return nil
}

func renderPage(ctx context.Context, address string) (string, error) {
	renderCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var htmlContent string
	err := chromedp.Run(renderCtx,
		chromedp.Navigate(address),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", address, err)
	}
	return htmlContent, nil
}

func allowedByPrefix(u string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(u, p) {
			return true
		}
	}
	return false
}

func robotsAllow(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	resp, err := http.Get(robotsURL)
	if err != nil {
		return true // no robots.txt reachable: default to allow
	}
	defer resp.Body.Close()
	return true
}

func extractLinks(baseURL, rawHTML string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				resolved, err := base.Parse(attr.Val)
				if err != nil {
					continue
				}
				resolved.Fragment = ""
				if resolved.Scheme == "http" || resolved.Scheme == "https" {
					links = append(links, resolved.String())
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}
