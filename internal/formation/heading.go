package formation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// HeadingMode selects how many discrete headings a squad uses.
type HeadingMode uint8

const (
	FourWay HeadingMode = iota
	EightWay
)

// ErrUnsupportedHeading is returned for a diagonal heading in FourWay mode.
var ErrUnsupportedHeading = errors.New("heading not available in this mode")

// ParseHeadingMode accepts "four_way" and "eight_way".
func ParseHeadingMode(s string) (HeadingMode, error) {
	switch s {
	case "four_way", "4":
		return FourWay, nil
	case "eight_way", "8":
		return EightWay, nil
	}
	return 0, fmt.Errorf("unknown heading mode %q", s)
}

func (m HeadingMode) String() string {
	if m == EightWay {
		return "eight_way"
	}
	return "four_way"
}

// Heading is a discrete facing. Values run clockwise from Down in 45° steps.
type Heading uint8

const (
	Down Heading = iota
	DownLeft
	Left
	UpLeft
	Up
	UpRight
	Right
	DownRight
)

var headingNames = [...]string{"down", "down-left", "left", "up-left", "up", "up-right", "right", "down-right"}

func (h Heading) String() string {
	if int(h) < len(headingNames) {
		return headingNames[h]
	}
	return fmt.Sprintf("Heading(%d)", h)
}

// Diagonal reports whether h is one of the four 45° headings.
func (h Heading) Diagonal() bool { return h%2 == 1 }

// Vector returns the unit direction of h.
func (h Heading) Vector() r2.Vec {
	// Down is (0,-1); every step turns a further 45° clockwise.
	return r2.Rotate(r2.Vec{Y: -1}, -float64(h)*math.Pi/4, r2.Vec{})
}

// Headings lists the headings of mode in turn order.
func Headings(mode HeadingMode) []Heading {
	if mode == EightWay {
		return []Heading{Down, DownLeft, Left, UpLeft, Up, UpRight, Right, DownRight}
	}
	return []Heading{Down, Left, Up, Right}
}

// steps returns how many turns of mode separate Down from h.
func steps(h Heading, mode HeadingMode) (int, error) {
	if h > DownRight {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedHeading, h)
	}
	if mode == EightWay {
		return int(h), nil
	}
	if h.Diagonal() {
		return 0, fmt.Errorf("%w: %s in %s", ErrUnsupportedHeading, h, mode)
	}
	return int(h) / 2, nil
}

// HeadingFromStep maps a one-cell move to a heading. In FourWay mode any
// horizontal component wins over the vertical one. A zero step maps to Down.
func HeadingFromStep(dx, dy int, mode HeadingMode) Heading {
	if mode == FourWay {
		switch {
		case dx < 0:
			return Left
		case dx > 0:
			return Right
		case dy > 0:
			return Up
		default:
			return Down
		}
	}

	switch {
	case dx < 0 && dy < 0:
		return DownLeft
	case dx < 0 && dy > 0:
		return UpLeft
	case dx < 0:
		return Left
	case dx > 0 && dy < 0:
		return DownRight
	case dx > 0 && dy > 0:
		return UpRight
	case dx > 0:
		return Right
	case dy > 0:
		return Up
	default:
		return Down
	}
}
