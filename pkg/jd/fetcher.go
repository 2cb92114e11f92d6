// Package jd reads job description text from a file or a job posting URL.
package jd

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// maxBodyBytes caps how much of a job posting page is read.
const maxBodyBytes = 5 << 20

// Fetch retrieves job description from file or URL.
func Fetch(input string) (content string, err error) {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	content, err = FetchWithContext(ctx, input)
	return content, err
}

// FetchWithContext retrieves job description with context.
func FetchWithContext(ctx context.Context, input string) (content string, err error) {
	// Check if input is a URL
	parsedURL, urlErr := url.Parse(input)
	if urlErr == nil && (parsedURL.Scheme == "http" || parsedURL.Scheme == "https") {
		content, err = fetchFromURL(ctx, input)
		if err != nil {
			err = errors.Wrapf(err, "failed to fetch JD from URL: %s", input)
			return content, err
		}
		return content, err
	}

	content, err = fetchFromFile(input)
	if err != nil {
		err = errors.Wrapf(err, "failed to fetch JD from file: %s", input)
		return content, err
	}

	return content, err
}

// fetchFromFile reads job description from a file. HTML files are reduced to text.
func fetchFromFile(path string) (content string, err error) {
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read file: %s", path)
		return content, err
	}

	content = string(data)
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".html") || strings.HasSuffix(lower, ".htm") {
		content, err = HTMLToText(content)
		if err != nil {
			return content, err
		}
	}

	if strings.TrimSpace(content) == "" {
		err = errors.New("file is empty")
		return content, err
	}

	return content, err
}

// fetchFromURL retrieves job description from a URL.
func fetchFromURL(ctx context.Context, urlStr string) (content string, err error) {
	var req *http.Request
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to create HTTP request")
		return content, err
	}

	req.Header.Set("User-Agent", "resumelm/1.0")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	var resp *http.Response
	resp, err = client.Do(req)
	if err != nil {
		err = errors.Wrap(err, "HTTP request failed")
		return content, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = errors.Errorf("HTTP request failed with status: %d", resp.StatusCode)
		return content, err
	}

	var bodyBytes []byte
	bodyBytes, err = io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		err = errors.Wrap(err, "failed to read response body")
		return content, err
	}

	content = string(bodyBytes)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		content, err = HTMLToText(content)
		if err != nil {
			return content, err
		}
	}

	if strings.TrimSpace(content) == "" {
		err = errors.New("fetched content is empty after processing")
		return content, err
	}

	return content, err
}

//nolint:gochecknoglobals // page chrome that never belongs to a posting
var chromeSelectors = strings.Join([]string{
	"script", "style", "noscript", "iframe", "svg",
	"header", "footer", "nav", "aside", "form",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}, ", ")

//nolint:gochecknoglobals // block elements that end a line of text
var blockSelectors = "p, div, li, h1, h2, h3, h4, h5, h6, section, article, tr, dt, dd"

//nolint:gochecknoglobals // compiled once
var (
	spaceRun = regexp.MustCompile(`[ \t\f\v\r\x{00a0}]+`)
)

// HTMLToText reduces an HTML page to the readable text of its main content, one block per line.
func HTMLToText(html string) (text string, err error) {
	var doc *goquery.Document
	doc, err = goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		err = errors.Wrap(err, "failed to parse HTML")
		return text, err
	}

	doc.Find(chromeSelectors).Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelectors).AppendHtml("\n")

	contentSel := doc.Find("article, main, [class*=job-description], [id*=job-description], .content, #content").First()
	if contentSel.Length() == 0 {
		contentSel = doc.Find("body")
	}

	lines := strings.Split(contentSel.Text(), "\n")
	cleanLines := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			cleanLines = append(cleanLines, line)
		}
	}

	text = strings.Join(cleanLines, "\n")
	return text, err
}
