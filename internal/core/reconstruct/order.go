package reconstruct

import (
	"cmp"
	"math"
	"slices"

	"github.com/kirillkom/docuclean/internal/core/domain"
)

// RowBand is the vertical distance, in normalized units, under which two
// blocks are read as sitting on the same line.
const RowBand = 10.0

// ReadingOrder returns a copy of blocks ordered top to bottom, then left to
// right within a row band. Ties keep their input order, so blocks without
// boxes stay as the recognizer returned them.
func ReadingOrder(blocks []domain.TextBlock) []domain.TextBlock {
	ordered := slices.Clone(blocks)
	slices.SortStableFunc(ordered, compareReading)
	return ordered
}

func compareReading(a, b domain.TextBlock) int {
	if math.Abs(a.Box.YMin-b.Box.YMin) > RowBand {
		return cmp.Compare(a.Box.YMin, b.Box.YMin)
	}
	return cmp.Compare(a.Box.XMin, b.Box.XMin)
}
