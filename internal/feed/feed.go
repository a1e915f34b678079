// Package feed fetches podcast RSS feeds and downloads episode audio.
// It enforces its own timeouts; callers treat failures as recoverable and
// retry on the next scheduled cycle.
package feed

import (
	"context"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Item is one episode descriptor from a feed, newest first.
type Item struct {
	Title    string
	GUID     string
	AudioURL string
}

// Fetcher retrieves feeds and episode audio over HTTP.
type Fetcher struct {
	rssClient      *http.Client
	downloadClient *http.Client
}

// NewFetcher creates a fetcher with separate timeouts for feed requests and
// audio downloads.
func NewFetcher(rssTimeout, downloadTimeout time.Duration) *Fetcher {
	return &Fetcher{
		rssClient:      &http.Client{Timeout: rssTimeout},
		downloadClient: &http.Client{Timeout: downloadTimeout},
	}
}

type rss struct {
	XMLName xml.Name `xml:"rss"`
	Channel channel  `xml:"channel"`
}

type channel struct {
	Title string `xml:"title"`
	Items []item `xml:"item"`
}

type item struct {
	Title     string    `xml:"title"`
	GUID      string    `xml:"guid"`
	Enclosure enclosure `xml:"enclosure"`
}

type enclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// Fetch downloads and parses the feed at rssURL, returning up to count
// episode descriptors in feed order (newest first by RSS convention).
// Items without an audio enclosure are skipped.
func (f *Fetcher) Fetch(ctx context.Context, rssURL string, count int) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rssURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}

	resp, err := f.rssClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	var doc rss
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Item, 0, count)
	for _, it := range doc.Channel.Items {
		if it.Enclosure.URL == "" {
			continue
		}
		guid := it.GUID
		if guid == "" {
			guid = it.Enclosure.URL
		}
		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = "Untitled"
		}
		items = append(items, Item{Title: title, GUID: guid, AudioURL: it.Enclosure.URL})
		if len(items) >= count {
			break
		}
	}
	return items, nil
}

// Download fetches the item's audio into dir and returns the local filename.
// Already-downloaded episodes are detected by filename and skipped. A failed
// download leaves no partial file behind.
func (f *Fetcher) Download(ctx context.Context, it Item, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create episode dir: %w", err)
	}

	filename := Filename(it.GUID, it.AudioURL)
	dest := filepath.Join(dir, filename)
	if _, err := os.Stat(dest); err == nil {
		return filename, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, it.AudioURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := f.downloadClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize download: %w", err)
	}

	return filename, nil
}

// Filename derives a stable, filesystem-safe episode filename from the GUID,
// keeping the audio URL's extension when it has one.
func Filename(guid, audioURL string) string {
	sum := sha256.Sum256([]byte(guid))
	ext := ".mp3"
	if u, err := url.Parse(audioURL); err == nil {
		if e := path.Ext(u.Path); len(e) > 1 && len(e) <= 5 {
			ext = e
		}
	}
	return fmt.Sprintf("episode_%x%s", sum[:6], ext)
}
