package services

import (
	"sync"
	"testing"

	"overlaycam/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestPositionIsSignedSumOfSteps(t *testing.T) {
	tests := []struct {
		name  string
		moves []domain.Direction
		want  domain.Position
	}{
		{"no moves", nil, domain.Position{}},
		{"right", []domain.Direction{domain.DirectionRight}, domain.Position{X: 50}},
		{"left", []domain.Direction{domain.DirectionLeft}, domain.Position{X: -50}},
		{"up", []domain.Direction{domain.DirectionUp}, domain.Position{Y: -50}},
		{"down twice", []domain.Direction{domain.DirectionDown, domain.DirectionDown}, domain.Position{Y: 100}},
		{"round trip", []domain.Direction{domain.DirectionLeft, domain.DirectionRight, domain.DirectionUp, domain.DirectionDown}, domain.Position{}},
		{"axes independent", []domain.Direction{domain.DirectionRight, domain.DirectionRight, domain.DirectionUp}, domain.Position{X: 100, Y: -50}},
		{"off surface accepted", []domain.Direction{domain.DirectionLeft, domain.DirectionLeft, domain.DirectionLeft}, domain.Position{X: -150}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPositionController(0)
			for _, m := range tt.moves {
				p.Move(m)
			}
			assert.Equal(t, tt.want, p.Position())
		})
	}
}

func TestPositionCustomDeltaAndReset(t *testing.T) {
	p := NewPositionController(10)

	assert.Equal(t, domain.Position{X: 10}, p.MoveHorizontal(false))
	assert.Equal(t, domain.Position{X: 10, Y: -10}, p.MoveVertical(true))

	p.Reset()
	assert.Equal(t, domain.Position{}, p.Position())
}

func TestPositionConcurrentSteps(t *testing.T) {
	p := NewPositionController(1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.MoveHorizontal(false)
		}()
		go func() {
			defer wg.Done()
			p.MoveVertical(false)
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.Position{X: 100, Y: 100}, p.Position())
}
