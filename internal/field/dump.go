package field

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/udisondev/squadnav/internal/geo"
)

// Dump writes the summed stack as a text table, top row first.
// Solid cells print as "-inf".
func Dump(w io.Writer, grid *geo.Grid, stack Stack, precision int) error {
	snap := stack.Snapshot()
	bw := bufio.NewWriter(w)

	for y := grid.SizeY - 1; y >= 0; y-- {
		for x := range grid.SizeX {
			if x > 0 {
				bw.WriteByte(' ')
			}
			cell := "-inf"
			if grid.At(x, y).Walkable {
				cell = strconv.FormatFloat(snap.Sum(x, y), 'f', precision, 64)
			}
			fmt.Fprintf(bw, "%8s", cell)
		}
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing field dump: %w", err)
	}
	return nil
}
