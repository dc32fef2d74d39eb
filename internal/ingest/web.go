package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/ragchat/ragchat/internal/core"
	"github.com/ragchat/ragchat/internal/logger"
)

// minPageLength is the shortest page text worth storing. Shorter pages
// are usually redirects, stubs or error pages.
const minPageLength = 100

// DefaultMaxPages bounds a crawl when the caller passes no limit.
const DefaultMaxPages = 10

var crawlClient = &http.Client{Timeout: 10 * time.Second}

// WebResult describes what a website ingestion stored.
type WebResult struct {
	URL          string   `json:"url"`
	PagesCrawled int      `json:"pages_crawled"`
	PagesStored  int      `json:"pages_stored"`
	Chunks       int      `json:"chunks_added"`
	Titles       []string `json:"titles"`
}

type crawledPage struct {
	url   string
	title string
	text  string
}

// IngestWebsite crawls seedURL breadth-first within its domain, up to
// maxPages pages, and stores the text of every substantial page under ids
// web_<md5(url)[:8]>_<index>. A failed page is logged and skipped; the
// crawl only errors when the seed itself is unusable.
func (p *Pipeline) IngestWebsite(ctx context.Context, seedURL string, maxPages int) (WebResult, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	seed, err := url.Parse(seedURL)
	if err != nil || seed.Host == "" {
		return WebResult{}, fmt.Errorf("invalid URL %q", seedURL)
	}

	logger.WebInfo("Crawling %s (max %d pages)", seedURL, maxPages)

	pages := p.crawl(ctx, seed, maxPages)
	if len(pages) == 0 {
		return WebResult{}, fmt.Errorf("no usable content found at %s", seedURL)
	}

	result := WebResult{URL: seedURL, PagesCrawled: len(pages)}
	for _, page := range pages {
		if len(page.text) < minPageLength {
			logger.WebWarn("Skipping %s: only %d characters of text", page.url, len(page.text))
			continue
		}

		stored, err := p.storeChunks(ctx, page.text, "web_"+urlHash(page.url), core.Chunk{
			Source: "Web: " + page.title,
			Type:   core.SourceWebsite,
			URL:    page.url,
		})
		if err != nil {
			logger.WebWarn("Failed to store %s: %v", page.url, err)
			continue
		}

		result.PagesStored++
		result.Chunks += stored
		result.Titles = append(result.Titles, page.title)
	}

	if result.PagesStored == 0 {
		return WebResult{}, fmt.Errorf("no usable content found at %s", seedURL)
	}

	logger.WebInfo("Stored %d chunks from %d of %d crawled pages", result.Chunks, result.PagesStored, result.PagesCrawled)
	return result, nil
}

// crawl walks the seed's domain breadth-first. Links are followed in
// document order so the crawl is deterministic for a fixed site.
func (p *Pipeline) crawl(ctx context.Context, seed *url.URL, maxPages int) []crawledPage {
	queue := []string{seed.String()}
	visited := make(map[string]bool)
	var pages []crawledPage

	for len(queue) > 0 && len(pages) < maxPages {
		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		page, links, err := fetchPage(ctx, pageURL)
		if err != nil {
			logger.WebWarn("Failed to fetch %s: %v", pageURL, err)
			continue
		}
		pages = append(pages, page)

		for _, link := range links {
			if sameDomain(seed, link) && !visited[link.String()] {
				queue = append(queue, link.String())
			}
		}
	}
	return pages
}

// fetchPage downloads and parses one page, returning its cleaned text,
// title and outgoing links.
func fetchPage(ctx context.Context, pageURL string) (crawledPage, []*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return crawledPage{}, nil, err
	}
	req.Header.Set("User-Agent", "ragchat-crawler/1.0")

	resp, err := crawlClient.Do(req)
	if err != nil {
		return crawledPage{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return crawledPage{}, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	base := resp.Request.URL
	text, title, links, err := parsePage(resp.Body, base)
	if err != nil {
		return crawledPage{}, nil, err
	}
	if title == "" {
		title = "No Title"
	}

	return crawledPage{url: pageURL, title: title, text: text}, links, nil
}

// skipTags are boilerplate elements whose text never belongs in the
// knowledge base.
var skipTags = map[string]bool{
	"script": true,
	"style":  true,
	"nav":    true,
	"footer": true,
	"header": true,
}

// parsePage extracts visible text, the page title and resolved links from
// an HTML document.
func parsePage(r io.Reader, base *url.URL) (text, title string, links []*url.URL, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", "", nil, err
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipTags[n.Data] {
				return
			}
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			case "a":
				for _, attr := range n.Attr {
					if attr.Key == "href" {
						if link := resolveLink(base, attr.Val); link != nil {
							links = append(links, link)
						}
						break
					}
				}
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return collapseWhitespace(b.String()), title, links, nil
}

// resolveLink turns an href into an absolute http(s) URL without a
// fragment, or nil when it is not crawlable.
func resolveLink(base *url.URL, href string) *url.URL {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}
	link := base.ResolveReference(ref)
	if link.Scheme != "http" && link.Scheme != "https" {
		return nil
	}
	link.Fragment = ""
	return link
}

func sameDomain(seed, link *url.URL) bool {
	return strings.EqualFold(seed.Hostname(), link.Hostname())
}
