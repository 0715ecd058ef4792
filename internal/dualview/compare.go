package dualview

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/pdf360/planview/internal/viewport"
)

// MaxSelected is the number of images a comparison shows side by side
const MaxSelected = 2

// Selection holds the marker images picked for comparison, oldest first.
// Picking a third image drops the oldest one.
type Selection struct {
	mu  sync.Mutex
	ids []uint
}

// Toggle adds id, or removes it if already selected, and returns the new selection
func (s *Selection) Toggle(id uint) []uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.ids, id); i >= 0 {
		s.ids = slices.Delete(s.ids, i, i+1)
		return slices.Clone(s.ids)
	}

	s.ids = append(s.ids, id)
	if len(s.ids) > MaxSelected {
		s.ids = slices.Clone(s.ids[len(s.ids)-MaxSelected:])
	}
	return slices.Clone(s.ids)
}

// IDs returns the current selection
func (s *Selection) IDs() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids)
}

// Complete reports whether enough images are selected to compare
func (s *Selection) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids) == MaxSelected
}

// Reset clears the selection
func (s *Selection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
}

// ViewportFactory creates the viewport for one pane
type ViewportFactory func(side Side, imageSrc string) (*viewport.Viewport, error)

// Comparator owns the lifetime of one side-by-side comparison: two viewports and the Sync binding them.
type Comparator struct {
	factory ViewportFactory
	logger  *slog.Logger

	mu    sync.Mutex
	left  *viewport.Viewport
	right *viewport.Viewport
	sync  *Sync

	// OnSync is handed to every Sync the comparator binds. It runs on render goroutines
	// and must not call back into the Comparator.
	OnSync func(from Side)
}

// NewComparator creates an idle comparator
func NewComparator(factory ViewportFactory, logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{factory: factory, logger: logger}
}

// Open shows leftSrc and rightSrc side by side. An open comparison of other images is torn down first;
// reopening the same pair is a no-op.
func (c *Comparator) Open(leftSrc, rightSrc string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sync != nil && c.left.ImageSrc() == leftSrc && c.right.ImageSrc() == rightSrc {
		return nil
	}
	if err := c.closeLocked(); err != nil {
		c.logger.Warn("Failed to tear down previous comparison", "error", err)
	}

	left, err := c.factory(SideLeft, leftSrc)
	if err != nil {
		return fmt.Errorf("creating left viewport: %w", err)
	}
	right, err := c.factory(SideRight, rightSrc)
	if err != nil {
		_ = left.Dispose()
		return fmt.Errorf("creating right viewport: %w", err)
	}

	s := Bind(left, right, c.logger)
	s.OnSync = c.OnSync

	c.left, c.right, c.sync = left, right, s
	c.logger.Debug("Comparison opened", "left", leftSrc, "right", rightSrc)
	return nil
}

// Close ends the comparison and disposes both viewports
func (c *Comparator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

// Active reports whether a comparison is open
func (c *Comparator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync != nil
}

// Viewport returns the viewport of a pane, or nil when no comparison is open
func (c *Comparator) Viewport(side Side) *viewport.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if side == SideLeft {
		return c.left
	}
	return c.right
}

// Sync returns the active binding, or nil
func (c *Comparator) Sync() *Sync {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sync
}

func (c *Comparator) closeLocked() error {
	if c.sync == nil {
		return nil
	}
	c.sync.Close()
	err := errors.Join(c.left.Dispose(), c.right.Dispose())
	c.left, c.right, c.sync = nil, nil, nil
	c.logger.Debug("Comparison closed")
	return err
}
