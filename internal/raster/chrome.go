package raster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// FindChrome looks for google-chrome or chromium on PATH, then in the usual
// install locations.
func FindChrome() (string, bool) {
	for _, bin := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(bin); err == nil {
			return path, true
		}
	}
	for _, path := range commonChromePaths() {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

func commonChromePaths() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "linux":
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// ChromeVersion runs the browser with --version.
func ChromeVersion(path string) string {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(out))
}

// Screenshotter turns an HTML page into a PNG.
type Screenshotter interface {
	Screenshot(ctx context.Context, html string, width int) ([]byte, error)
}

// Chrome renders pages in a headless browser.
type Chrome struct {
	// ExecPath is the browser binary; chromedp's own lookup is used when empty.
	ExecPath string
	// Settle is how long the page gets to lay out before the capture.
	Settle time.Duration
}

func (c Chrome) Screenshot(ctx context.Context, html string, width int) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(width, 800),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	settle := c.Settle
	if settle <= 0 {
		settle = 300 * time.Millisecond
	}

	var png []byte
	err := chromedp.Run(cdpCtx,
		chromedp.EmulateViewport(int64(width), 800),
		chromedp.Navigate("data:text/html,"+urlEncode(html)),
		chromedp.Sleep(settle),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().
				WithCaptureBeyondViewport(true). // capture full height
				Do(ctx)
			if err != nil {
				return err
			}
			png = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating image: %w", err)
	}
	return png, nil
}
