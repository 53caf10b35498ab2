// File: internal/capture/browser.go
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Browser serves real frames by screenshotting a headless Chrome tab. It is
// the closest Go equivalent of the web client's getDisplayMedia variant: a
// live surface that can actually be captured, without driving a real OS
// desktop.
type Browser struct {
	mu        sync.Mutex
	targetURL string
	headless  bool
	log       *zap.Logger

	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewBrowser returns a stopped browser provider that will capture targetURL.
func NewBrowser(targetURL string, headless bool, logger *zap.Logger) *Browser {
	return &Browser{
		targetURL: targetURL,
		headless:  headless,
		log:       logger.Named("capture.browser"),
	}
}

// Start launches the browser and navigates the capture tab. Launch failures
// are treated as permission/environment denial for this source.
func (b *Browser) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabCtx != nil {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.headless),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx, chromedp.Navigate(b.targetURL)); err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	b.allocCancel = allocCancel
	b.tabCtx = tabCtx
	b.tabCancel = tabCancel
	b.log.Info("browser capture started", zap.String("url", b.targetURL), zap.Bool("headless", b.headless))
	return nil
}

// Stop tears the browser down and makes the source unavailable.
func (b *Browser) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tabCancel != nil {
		b.tabCancel()
		b.tabCancel = nil
	}
	if b.allocCancel != nil {
		b.allocCancel()
		b.allocCancel = nil
	}
	b.tabCtx = nil
	b.log.Info("browser capture stopped")
}

func (b *Browser) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tabCtx != nil
}

func (b *Browser) Frame(ctx context.Context) (*schemas.Frame, error) {
	b.mu.Lock()
	tabCtx := b.tabCtx
	b.mu.Unlock()
	if tabCtx == nil {
		return nil, ErrNoSource
	}

	var buf []byte
	if err := chromedp.Run(tabCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrFrameNotReady, err)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("capture: decoding screenshot: %w", err)
	}

	return &schemas.Frame{
		Data:   base64.StdEncoding.EncodeToString(buf),
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
