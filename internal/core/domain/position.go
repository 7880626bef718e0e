package domain

// DefaultMoveDelta is the distance in surface pixels applied by one step command.
const DefaultMoveDelta = 50

// Position is the overlay offset in surface pixels. It is never range checked:
// an overlay moved off the surface is simply clipped.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Direction is a step command issued by the user.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}
