package addressmap

import "fmt"

// Direction selects which way Map converts.
type Direction int

const (
	// Auto converts into the space the input is not in.
	Auto Direction = 0
	// PrimaryToSecondary accepts only primary-space input.
	PrimaryToSecondary Direction = 1
	// SecondaryToPrimary accepts only secondary-space input.
	SecondaryToPrimary Direction = 2
)

// ParseDirection validates a wire direction code.
func ParseDirection(code int64) (Direction, error) {
	switch Direction(code) {
	case Auto, PrimaryToSecondary, SecondaryToPrimary:
		return Direction(code), nil
	}
	return 0, fmt.Errorf("%w: direction %d", ErrInvalidParameter, code)
}

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Auto:
		return "auto"
	case PrimaryToSecondary:
		return "primary-to-secondary"
	case SecondaryToPrimary:
		return "secondary-to-primary"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}
