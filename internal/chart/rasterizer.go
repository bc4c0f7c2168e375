package chart

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/minyeamer/gspread/internal/logger"
)

// Page is a self-contained chart page to capture at Width x Height.
type Page struct {
	HTML        []byte
	Width       int
	Height      int
	Transparent bool
	Settle      time.Duration
}

// Rasterizer turns a chart page into PNG bytes synchronously.
type Rasterizer interface {
	Rasterize(ctx context.Context, page Page) ([]byte, error)
}

const defaultCaptureTimeout = 20 * time.Second

// HeadlessRasterizer drives one shared headless Chrome; each capture gets its own tab.
type HeadlessRasterizer struct {
	ExecPath string
	Timeout  time.Duration

	mu            sync.Mutex
	browser       context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
}

var _ Rasterizer = (*HeadlessRasterizer)(nil)

func NewHeadlessRasterizer(execPath string, timeout time.Duration) *HeadlessRasterizer {
	if timeout <= 0 {
		timeout = defaultCaptureTimeout
	}
	return &HeadlessRasterizer{ExecPath: execPath, Timeout: timeout}
}

func (h *HeadlessRasterizer) ensureBrowser() (context.Context, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser != nil && h.browser.Err() == nil {
		return h.browser, nil
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.DisableGPU, chromedp.Flag("hide-scrollbars", true))
	if h.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(h.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browser, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browser); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start headless chrome: %w", err)
	}
	h.browser, h.cancelAlloc, h.cancelBrowser = browser, cancelAlloc, cancelBrowser
	logger.Infof("chart: headless chrome started")
	return browser, nil
}

// Available starts the browser if needed and reports whether it runs.
func (h *HeadlessRasterizer) Available() error {
	_, err := h.ensureBrowser()
	return err
}

func (h *HeadlessRasterizer) Rasterize(ctx context.Context, page Page) ([]byte, error) {
	if len(page.HTML) == 0 {
		return nil, errors.New("empty page")
	}
	browser, err := h.ensureBrowser()
	if err != nil {
		return nil, err
	}
	tab, cancelTab := chromedp.NewContext(browser)
	defer cancelTab()
	tab, cancelTimeout := context.WithTimeout(tab, h.Timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(page.HTML)
	var shot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(page.Width), int64(page.Height)),
	}
	if page.Transparent {
		tasks = append(tasks, emulation.SetDefaultBackgroundColorOverride().
			WithColor(&cdp.RGBA{R: 0, G: 0, B: 0, A: 0}))
	}
	tasks = append(tasks,
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("#"+chartID, chromedp.ByQuery),
		chromedp.Sleep(page.Settle),
		chromedp.Screenshot("#"+chartID, &shot, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err := chromedp.Run(tab, tasks...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return shot, nil
}

func (h *HeadlessRasterizer) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelBrowser != nil {
		h.cancelBrowser()
	}
	if h.cancelAlloc != nil {
		h.cancelAlloc()
	}
	h.browser = nil
	return nil
}
