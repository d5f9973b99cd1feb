package urlqueue

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
)

// URLQueue is a FIFO frontier that refuses URLs it has already seen.
// Seen URLs are keyed by NormalizeURL; the queue keeps them as added.
// It is owned by a single crawl invocation.
type URLQueue struct {
	URLs     map[string]bool
	Queue    []string
	MaxPages int
}

func NewURLQueue(maxPages int) *URLQueue {
	return &URLQueue{
		URLs:     make(map[string]bool),
		Queue:    make([]string, 0),
		MaxPages: maxPages,
	}
}

func (q *URLQueue) Add(urlStr string) bool {
	urlStr = strings.TrimSpace(urlStr)
	normalized := NormalizeURL(urlStr)
	if q.URLs[normalized] {
		return false
	}
	q.URLs[normalized] = true
	q.Queue = append(q.Queue, urlStr)
	return true
}

func (q *URLQueue) Get() (string, bool) {
	if len(q.Queue) == 0 {
		return "", false
	}
	u := q.Queue[0]
	q.Queue = q.Queue[1:]
	return u, true
}

func (q *URLQueue) Size() int {
	return len(q.Queue)
}

// NormalizeURL drops the fragment and a leading "www." and defaults the
// scheme so equivalent links compare equal.
func NormalizeURL(urlStr string) string {
	parsed, err := url.Parse(strings.TrimSpace(urlStr))
	if err != nil {
		return urlStr
	}

	parsed.Fragment = ""
	parsed.Host = strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	return parsed.String()
}

var (
	reHref        = regexp.MustCompile(`href=["']([^"']+)["']`)
	reAbsoluteURL = regexp.MustCompile(`https?://[^\s"'<>()\[\]]+`)
)

// ExtractLinksFromHTML returns every href in the document resolved against
// baseURL, in document order and without duplicates.
func ExtractLinksFromHTML(htmlContent, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	for _, match := range reHref.FindAllStringSubmatch(htmlContent, -1) {
		link := strings.TrimSpace(strings.ReplaceAll(match[1], "&amp;", "&"))
		if link == "" || strings.HasPrefix(link, "#") || strings.HasPrefix(link, "mailto:") || strings.HasPrefix(link, "javascript:") {
			continue
		}
		ref, err := url.Parse(link)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		s := abs.String()
		if !seen[s] {
			seen[s] = true
			links = append(links, s)
		}
	}
	return links
}

// ExtractAbsoluteURLs pulls bare http(s) URLs out of free text such as
// crawl API markdown.
func ExtractAbsoluteURLs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range reAbsoluteURL.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?*_")
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// ComputeContentHash returns the hex SHA-256 of content.
func ComputeContentHash(content string) string {
	return ComputeBytesHash([]byte(content))
}

func ComputeBytesHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Patterns is a compiled set of URL regular expressions.
type Patterns []*regexp.Regexp

func CompilePatterns(patterns []string) (Patterns, error) {
	out := make(Patterns, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func MustCompilePatterns(patterns ...string) Patterns {
	out, err := CompilePatterns(patterns)
	if err != nil {
		panic(err)
	}
	return out
}

func (p Patterns) MatchAny(urlStr string) bool {
	for _, re := range p {
		if re.MatchString(urlStr) {
			return true
		}
	}
	return false
}

// URLShouldBeFollowed applies exclusions first; an empty follow list
// follows everything that is not excluded.
func URLShouldBeFollowed(urlStr string, follow, exclude Patterns) bool {
	if exclude.MatchAny(urlStr) {
		return false
	}
	if len(follow) == 0 {
		return true
	}
	return follow.MatchAny(urlStr)
}

// StripQuery removes query and fragment, used for product URLs whose
// tracking parameters would defeat de-duplication.
func StripQuery(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
