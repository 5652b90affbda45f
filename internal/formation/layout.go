// Package formation turns squad layout matrices into leader-relative slot
// offsets and rotates them to follow the leader's heading.
package formation

import (
	"errors"
	"fmt"
)

// Slot values in a layout matrix.
const (
	SlotEmpty    = 0
	SlotFollower = 1
	SlotLeader   = 2
)

var (
	ErrNoLeader        = errors.New("layout has no leader slot")
	ErrMultipleLeaders = errors.New("layout has more than one leader slot")
	ErrMalformedLayout = errors.New("malformed layout")
)

// Layout is a validated square slot matrix, indexed rows[y][x].
type Layout struct {
	rows             [][]int
	leaderX, leaderY int
	followers        int
}

// ParseLayout validates rows and locates the leader.
func ParseLayout(rows [][]int) (Layout, error) {
	n := len(rows)
	if n == 0 {
		return Layout{}, fmt.Errorf("%w: empty matrix", ErrMalformedLayout)
	}

	l := Layout{rows: make([][]int, n), leaderX: -1, leaderY: -1}
	leaders := 0
	for y, row := range rows {
		if len(row) != n {
			return Layout{}, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMalformedLayout, y, len(row), n)
		}
		l.rows[y] = make([]int, n)
		for x, v := range row {
			switch v {
			case SlotEmpty:
			case SlotFollower:
				l.followers++
			case SlotLeader:
				leaders++
				l.leaderX, l.leaderY = x, y
			default:
				return Layout{}, fmt.Errorf("%w: value %d at (%d,%d)", ErrMalformedLayout, v, x, y)
			}
			l.rows[y][x] = v
		}
	}

	switch {
	case leaders == 0:
		return Layout{}, ErrNoLeader
	case leaders > 1:
		return Layout{}, fmt.Errorf("%w: found %d", ErrMultipleLeaders, leaders)
	}
	return l, nil
}

// Size returns the side length of the matrix.
func (l Layout) Size() int { return len(l.rows) }

// Followers returns the number of follower slots.
func (l Layout) Followers() int { return l.followers }

// Leader returns the leader's matrix coordinates.
func (l Layout) Leader() (x, y int) { return l.leaderX, l.leaderY }
