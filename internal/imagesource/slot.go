package imagesource

import (
	"context"
	"errors"
	"sync"

	"github.com/Veraticus/food-classifier/internal/model"
	"github.com/Veraticus/food-classifier/internal/service"
)

// ErrSuperseded is returned by Select when a newer selection started before
// this one finished. The resolved image is returned but not installed.
var ErrSuperseded = errors.New("selection superseded by a newer one")

// Slot holds the image currently selected in a session. The last successful
// selection wins: a failed selection leaves the current image untouched, and a
// selection that completes after a newer one has started is discarded.
type Slot struct {
	resolver service.ImageResolver
	current  *model.ImageInput
	mu       sync.Mutex
	started  uint64
	gen      uint64
}

// NewSlot creates an empty Slot.
func NewSlot(resolver service.ImageResolver) *Slot {
	return &Slot{resolver: resolver}
}

// Select resolves sel and installs it as the current image. It returns the
// generation of the installed image. On error the previous image stays current.
func (s *Slot) Select(ctx context.Context, sel model.Selection) (model.ImageInput, uint64, error) {
	return s.SelectReserved(ctx, s.Reserve(), sel)
}

// Reserve takes a ticket for a selection that will be resolved later with
// SelectReserved. It invalidates every selection reserved before it.
func (s *Slot) Reserve() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.started
}

// SelectReserved resolves sel under ticket. The image is installed only if no
// newer ticket has been reserved in the meantime; otherwise ErrSuperseded is
// returned along with the resolved image.
func (s *Slot) SelectReserved(ctx context.Context, ticket uint64, sel model.Selection) (model.ImageInput, uint64, error) {
	input, err := s.resolver.Resolve(ctx, sel)
	if err != nil {
		return model.ImageInput{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.started {
		return input, 0, ErrSuperseded
	}
	s.gen = ticket
	s.current = &input
	return input, ticket, nil
}

// Current returns the selected image and its generation.
func (s *Slot) Current() (model.ImageInput, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.ImageInput{}, 0, false
	}
	return *s.current, s.gen, true
}

// IsCurrent reports whether gen still names the current image. Results
// computed for a stale generation should not be displayed.
func (s *Slot) IsCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && gen == s.gen
}

// Clear drops the current image and invalidates in-flight selections.
func (s *Slot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	s.current = nil
	s.gen = 0
}
