// Package browser drives a controlled Chrome session to fetch media files
// the public site only serves to a real browser.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"ttharvest/pkg/logger"
	"ttharvest/pkg/tiktok"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// pageSettle is how long the player page gets to hydrate before the
	// video element is queried.
	pageSettle = 5 * time.Second
)

// Agent downloads one video per call through a fresh headless Chrome
// context, resolving the media URL from the player page and streaming the
// bytes with the session's cookies attached.
type Agent struct {
	execPath string
	timeout  time.Duration
	logger   logger.Logger
}

// NewAgent creates a browser download agent. execPath may be empty to use
// the default Chrome binary.
func NewAgent(execPath string, timeout time.Duration, log logger.Logger) *Agent {
	if log == nil {
		log = logger.GetLogger()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Agent{
		execPath: execPath,
		timeout:  timeout,
		logger:   log,
	}
}

// Download navigates to the share URL, extracts the video source and
// session cookies, then streams the media to destDir. Returns the path of
// the written file.
func (a *Agent) Download(ctx context.Context, shareURL, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create video directory: %w", err)
	}

	username, id, err := parseShareURL(shareURL)
	if err != nil {
		return "", err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if a.execPath != "" {
		opts = append(opts, chromedp.ExecPath(a.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, a.timeout)
	defer cancelRun()

	var videoURL string
	var cookies []*network.Cookie
	err = chromedp.Run(runCtx,
		chromedp.Navigate(shareURL),
		chromedp.Sleep(pageSettle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var currentURL string
			if err := chromedp.Location(&currentURL).Do(ctx); err != nil {
				return err
			}
			if strings.Contains(currentURL, "login") || strings.Contains(currentURL, "signup") {
				return fmt.Errorf("redirected to login page for %s", shareURL)
			}
			return nil
		}),
		chromedp.Evaluate(`(function() {
			const video = document.querySelector('video source') || document.querySelector('video');
			return video ? (video.src || video.getAttribute('src') || "") : "";
		})()`, &videoURL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", fmt.Errorf("browser session failed for %s: %w", shareURL, err)
	}
	if videoURL == "" {
		return "", fmt.Errorf("no video source found on %s", shareURL)
	}

	a.logger.DebugWithFields("resolved video source", map[string]interface{}{
		"share_url": shareURL,
		"video_url": videoURL,
	})

	destPath := filepath.Join(destDir, tiktok.VideoFilename(username, id))
	if err := a.streamToFile(ctx, videoURL, shareURL, cookies, destPath); err != nil {
		return "", err
	}

	return destPath, nil
}

// streamToFile fetches the resolved media URL with the browser session's
// cookies and writes it atomically.
func (a *Agent) streamToFile(ctx context.Context, videoURL, referer string, cookies []*network.Cookie, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", videoURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create media request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", referer)

	var pairs []string
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	if len(pairs) > 0 {
		req.Header.Set("Cookie", strings.Join(pairs, "; "))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("media request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media request returned status %d", resp.StatusCode)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create video file: %w", err)
	}

	_, err = io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write video data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close video file: %w", closeErr)
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename video file: %w", err)
	}

	return nil
}

// parseShareURL extracts the username and video id from a canonical share
// URL of the form https://www.tiktok.com/@user/video/<id>?...
func parseShareURL(shareURL string) (username, id string, err error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid share URL %s: %w", shareURL, err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) != 3 || !strings.HasPrefix(parts[0], "@") || parts[1] != "video" {
		return "", "", fmt.Errorf("unexpected share URL format: %s", shareURL)
	}

	return strings.TrimPrefix(parts[0], "@"), parts[2], nil
}
