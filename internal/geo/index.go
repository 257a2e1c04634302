package geo

import (
	"math"
	"sort"

	"github.com/twpayne/go-geom"

	"github.com/sells-group/upzone-cli/internal/layer"
)

// gridIndex is a uniform-grid spatial index over a layer's features. Joins
// against the full parcel set are quadratic without one; the grid keeps
// candidate sets to the handful of features whose boxes share a cell.
type gridIndex struct {
	cellSize float64
	cells    map[[2]int][]int
	features []*layer.Feature
}

// newGridIndex builds an index keyed on feature bounding boxes. The cell size
// follows the mean feature extent so typical features land in a few cells.
func newGridIndex(features []*layer.Feature) *gridIndex {
	idx := &gridIndex{
		cells:    make(map[[2]int][]int),
		features: features,
	}

	var sum float64
	var count int
	for _, f := range features {
		if f.Geom == nil {
			continue
		}
		b := f.Geom.Bounds()
		sum += math.Max(b.Max(0)-b.Min(0), b.Max(1)-b.Min(1))
		count++
	}
	if count == 0 {
		idx.cellSize = 1
		return idx
	}
	idx.cellSize = sum / float64(count)
	if idx.cellSize <= 0 {
		idx.cellSize = 1
	}

	for i, f := range features {
		if f.Geom == nil {
			continue
		}
		b := f.Geom.Bounds()
		idx.eachCell(b, func(key [2]int) {
			idx.cells[key] = append(idx.cells[key], i)
		})
	}
	return idx
}

func (idx *gridIndex) cell(x, y float64) [2]int {
	return [2]int{int(math.Floor(x / idx.cellSize)), int(math.Floor(y / idx.cellSize))}
}

func (idx *gridIndex) eachCell(b *geom.Bounds, visit func([2]int)) {
	lo := idx.cell(b.Min(0), b.Min(1))
	hi := idx.cell(b.Max(0), b.Max(1))
	for cx := lo[0]; cx <= hi[0]; cx++ {
		for cy := lo[1]; cy <= hi[1]; cy++ {
			visit([2]int{cx, cy})
		}
	}
}

// queryPoint returns candidate feature indices for a point lookup, in stable
// ascending order.
func (idx *gridIndex) queryPoint(x, y float64) []int {
	return dedupSorted(idx.cells[idx.cell(x, y)])
}

// queryBounds returns candidate feature indices overlapping the bounds, in
// stable ascending order.
func (idx *gridIndex) queryBounds(b *geom.Bounds) []int {
	var out []int
	idx.eachCell(b, func(key [2]int) {
		out = append(out, idx.cells[key]...)
	})
	return dedupSorted(out)
}

// dedupSorted sorts and deduplicates candidate indices so iteration order is
// deterministic regardless of cell layout.
func dedupSorted(in []int) []int {
	if len(in) < 2 {
		return in
	}
	out := make([]int, len(in))
	copy(out, in)
	sort.Ints(out)
	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
