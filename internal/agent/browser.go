package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserOptions configures the Chrome instance
type BrowserOptions struct {
	// Headless runs Chrome without a window
	Headless bool
	// UserDataDir reuses a Chrome profile, e.g. one that is already signed in
	UserDataDir string
	// WindowWidth and WindowHeight size the viewport used for question screenshots
	WindowWidth  int
	WindowHeight int
}

// BrowserManager manages browser lifecycle and navigation
type BrowserManager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewBrowserManager creates a new browser manager
func NewBrowserManager(opts BrowserOptions) (*BrowserManager, error) {
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1280, 900
	}

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless), // Only disable GPU in headless mode
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)
	if opts.UserDataDir != "" {
		execOpts = append(execOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), execOpts...)

	// Create browser context
	ctx, cancel := chromedp.NewContext(allocCtx)

	// Start the browser now so launch failures surface here instead of on first use
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, NewBrowserError("failed to start browser", err)
	}

	return &BrowserManager{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Close shuts down the browser and cleans up resources
func (bm *BrowserManager) Close() {
	if bm.cancel != nil {
		bm.cancel()
	}
	if bm.allocCancel != nil {
		bm.allocCancel()
	}
}

// Run executes chromedp actions bounded by timeout
func (bm *BrowserManager) Run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(bm.ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, actions...)
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(fmt.Sprintf("timeout after %v", timeout), err)
	}
	return err
}

// NavigateWithTimeout navigates to url and waits for the body to be ready
func (bm *BrowserManager) NavigateWithTimeout(url string, timeout time.Duration) error {
	err := bm.Run(timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return NewNetworkError(fmt.Sprintf("failed to navigate to %s", url), err)
	}
	return nil
}

// Reload reloads the current page and waits for the body to be ready
func (bm *BrowserManager) Reload(timeout time.Duration) error {
	err := bm.Run(timeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return NewNetworkError("failed to reload page", err)
	}
	return nil
}
