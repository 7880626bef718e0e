package services

import (
	"sync"

	"overlaycam/internal/core/domain"
)

// PositionController tracks the overlay offset. Every step command adds a
// fixed delta to one axis and returns the new position.
type PositionController struct {
	mu    sync.RWMutex
	pos   domain.Position
	delta float64
}

// NewPositionController returns a controller at the origin. A non-positive
// delta falls back to domain.DefaultMoveDelta.
func NewPositionController(moveDelta float64) *PositionController {
	if moveDelta <= 0 {
		moveDelta = domain.DefaultMoveDelta
	}
	return &PositionController{delta: moveDelta}
}

func (p *PositionController) MoveHorizontal(left bool) domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos.X += signed(left) * p.delta
	return p.pos
}

func (p *PositionController) MoveVertical(up bool) domain.Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pos.Y += signed(up) * p.delta
	return p.pos
}

// Move applies a direction command.
func (p *PositionController) Move(dir domain.Direction) domain.Position {
	switch dir {
	case domain.DirectionLeft:
		return p.MoveHorizontal(true)
	case domain.DirectionRight:
		return p.MoveHorizontal(false)
	case domain.DirectionUp:
		return p.MoveVertical(true)
	case domain.DirectionDown:
		return p.MoveVertical(false)
	}
	return p.Position()
}

func (p *PositionController) Position() domain.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pos
}

func (p *PositionController) Reset() {
	p.mu.Lock()
	p.pos = domain.Position{}
	p.mu.Unlock()
}

// signed maps the "negative direction" flag (left, up) to -1 and everything else to +1.
func signed(negative bool) float64 {
	if negative {
		return -1
	}
	return 1
}
