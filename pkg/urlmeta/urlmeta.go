// Package urlmeta extracts preview metadata (Open Graph and plain meta tags)
// from a product page so gift items can be prefilled from a pasted link.
package urlmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

const (
	userAgent    = "Mozilla/5.0 (compatible; GiftingApp/1.0)"
	maxBodyBytes = 2 << 20
)

var (
	ErrInvalidURL  = errors.New("url must be absolute http or https")
	ErrFetchFailed = errors.New("failed to fetch url")
)

// Metadata is the preview information found on a page. Empty fields were not present.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// IsValidURL reports whether raw is an absolute http(s) URL.
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads raw and parses its metadata.
func Fetch(ctx context.Context, client *http.Client, raw string) (*Metadata, error) {
	if !IsValidURL(raw) {
		return nil, ErrInvalidURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	base := resp.Request.URL
	return Parse(io.LimitReader(resp.Body, maxBodyBytes), base)
}

// Parse extracts metadata from an HTML document. Relative image URLs are resolved against base.
func Parse(r io.Reader, base *url.URL) (*Metadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	p := &page{meta: make(map[string]string)}
	p.walk(doc)

	md := &Metadata{
		Title:       firstNonEmpty(p.meta["og:title"], p.meta["twitter:title"], p.title),
		Description: firstNonEmpty(p.meta["og:description"], p.meta["description"], p.meta["twitter:description"]),
		SiteName:    p.meta["og:site_name"],
	}

	if img := firstNonEmpty(p.meta["og:image"], p.meta["twitter:image"], p.firstImg); img != "" {
		md.Image = resolve(img, base)
	}
	return md, nil
}

type page struct {
	meta     map[string]string // keyed by lower-cased property or name
	title    string
	firstImg string
}

func (p *page) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "meta":
			p.addMeta(n)
		case "title":
			if p.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				p.title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "img":
			if p.firstImg == "" {
				p.firstImg = attr(n, "src")
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func (p *page) addMeta(n *html.Node) {
	content := strings.TrimSpace(attr(n, "content"))
	if content == "" {
		return
	}
	for _, key := range []string{attr(n, "property"), attr(n, "name")} {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, seen := p.meta[key]; !seen {
			p.meta[key] = content
		}
	}
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}

func resolve(ref string, base *url.URL) string {
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
