// File: internal/capture/simulated.go
package capture

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
)

// Simulated is the demo frame source. It serves a fixed-size placeholder
// frame while started and ErrNoSource otherwise, matching the web client's
// mock screen-sharing behavior.
type Simulated struct {
	mu       sync.Mutex
	active   bool
	denied   bool
	failNext error
	width    int
	height   int
	log      *zap.Logger
}

// NewSimulated returns a stopped provider reporting the given frame size.
func NewSimulated(width, height int, logger *zap.Logger) *Simulated {
	if width <= 0 {
		width = 1920
	}
	if height <= 0 {
		height = 1080
	}
	return &Simulated{width: width, height: height, log: logger.Named("capture")}
}

// Start makes the source available. It fails with ErrPermissionDenied when
// permission has been (simulated as) refused via DenyPermission.
func (s *Simulated) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied {
		return ErrPermissionDenied
	}
	s.active = true
	s.log.Info("simulated capture started", zap.Int("width", s.width), zap.Int("height", s.height))
	return nil
}

// Stop makes the source unavailable again.
func (s *Simulated) Stop() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
	s.log.Info("simulated capture stopped")
}

// DenyPermission marks the (simulated) user as having refused screen
// sharing. Subsequent Start and Frame calls fail with ErrPermissionDenied.
func (s *Simulated) DenyPermission() {
	s.mu.Lock()
	s.denied = true
	s.active = false
	s.mu.Unlock()
}

// FailNext makes the next Frame call return err once. Used by the demo
// command and by tests to exercise the capture-failure path.
func (s *Simulated) FailNext(err error) {
	s.mu.Lock()
	s.failNext = err
	s.mu.Unlock()
}

func (s *Simulated) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Simulated) Frame(ctx context.Context) (*schemas.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.denied {
		return nil, ErrPermissionDenied
	}
	if !s.active {
		return nil, ErrNoSource
	}
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return nil, err
	}
	return &schemas.Frame{
		Data:   PlaceholderData(),
		Width:  s.width,
		Height: s.height,
	}, nil
}
