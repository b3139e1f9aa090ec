package basin

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/watershed-cli/internal/model"
)

func rect(minX, minY, maxX, maxY float64) *geom.MultiPolygon {
	return geom.NewMultiPolygonFlat(geom.XY, []float64{
		minX, minY, maxX, minY, maxX, maxY, minX, maxY, minX, minY,
	}, [][]int{{10}})
}

func bas(id int64, code string, next int64, g *geom.MultiPolygon) model.Basin {
	return model.Basin{
		ID:       id,
		PfafCode: code,
		NextDown: next,
		Level:    len(code),
		SortKey:  id,
		Geometry: g,
	}
}

// threeLevelBasins is a small hierarchy on a 10x10 square:
//
//	level 1: 1
//	level 2: 11 (outlet) <- 12, 13
//	level 3: 110 (outlet) <- 121 <- 123, 110 <- 130
func threeLevelBasins() []model.Basin {
	return []model.Basin{
		bas(1000, "1", 0, rect(0, 0, 10, 10)),

		bas(2011, "11", 0, rect(0, 0, 4, 10)),
		bas(2012, "12", 2011, rect(4, 0, 10, 5)),
		bas(2013, "13", 2011, rect(4, 5, 10, 10)),

		bas(3110, "110", 0, rect(0, 0, 4, 10)),
		bas(3121, "121", 3110, rect(4, 0, 7, 5)),
		bas(3123, "123", 3121, rect(7, 0, 10, 5)),
		bas(3130, "130", 3110, rect(4, 5, 10, 10)),
	}
}

func newThreeLevel(t *testing.T) *Hierarchy {
	t.Helper()
	h, err := New(threeLevelBasins())
	require.NoError(t, err)
	return h
}

func ids(bs []model.Basin) []int64 {
	out := make([]int64, len(bs))
	for i, b := range bs {
		out[i] = b.ID
	}
	return out
}
