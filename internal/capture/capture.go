// File: internal/capture/capture.go
// Description: Frame sources for the orchestrator. The simulated provider
// mirrors the demo behavior of the web client; the browser provider takes
// real screenshots of a headless page via chromedp.
package capture

import (
	"encoding/base64"
	"errors"
)

// Sentinel conditions of a capture attempt. Permission denial is terminal
// for the attempt and is surfaced distinctly from transient failures.
var (
	ErrNoSource         = errors.New("capture: no active capture source")
	ErrPermissionDenied = errors.New("capture: screen capture permission denied")
	ErrFrameNotReady    = errors.New("capture: frame not ready")
)

// placeholderPNG is a 1x1 transparent PNG used as the simulated payload.
// Real pixel content is irrelevant to the demo contract; only the encoded
// payload and the reported dimensions are.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// PlaceholderData returns the base64 payload served when no real frame is
// available (realtime screenshot requests, simulated frames).
func PlaceholderData() string {
	return base64.StdEncoding.EncodeToString(placeholderPNG)
}
