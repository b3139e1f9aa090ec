package basin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/watershed-cli/internal/geoprim"
	"github.com/sells-group/watershed-cli/internal/model"
)

func TestNew_Levels(t *testing.T) {
	h := newThreeLevel(t)

	assert.Equal(t, []int{1, 2, 3}, h.Levels())
	assert.Equal(t, 1, h.Len(1))
	assert.Equal(t, 3, h.Len(2))
	assert.Equal(t, 4, h.Len(3))
	assert.Equal(t, 0, h.Len(12))
}

func TestNew_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		basins  []model.Basin
		wantErr string
	}{
		{
			name:    "code width",
			basins:  []model.Basin{{ID: 1, PfafCode: "12", Level: 3}},
			wantErr: "want 3 digits",
		},
		{
			name:    "non digit code",
			basins:  []model.Basin{{ID: 1, PfafCode: "1a", Level: 2}},
			wantErr: "pfaf code",
		},
		{
			name:    "level out of range",
			basins:  []model.Basin{{ID: 1, PfafCode: "1", Level: 0}},
			wantErr: "outside",
		},
		{
			name: "duplicate id",
			basins: []model.Basin{
				{ID: 5, PfafCode: "11", Level: 2},
				{ID: 5, PfafCode: "13", Level: 2},
			},
			wantErr: "duplicate id 5",
		},
		{
			name: "cycle",
			basins: []model.Basin{
				{ID: 1, PfafCode: "11", Level: 2, NextDown: 0},
				{ID: 2, PfafCode: "13", Level: 2, NextDown: 3},
				{ID: 3, PfafCode: "15", Level: 2, NextDown: 4},
				{ID: 4, PfafCode: "17", Level: 2, NextDown: 2},
			},
			wantErr: "cycle",
		},
		{
			name: "self loop",
			basins: []model.Basin{
				{ID: 1, PfafCode: "11", Level: 2, NextDown: 1},
			},
			wantErr: "cycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.basins)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_SameIDOnDifferentLevels(t *testing.T) {
	_, err := New([]model.Basin{
		{ID: 7, PfafCode: "1", Level: 1},
		{ID: 7, PfafCode: "11", Level: 2},
	})
	assert.NoError(t, err)
}

func TestNew_NextDownOutsideLevelIsAnOutlet(t *testing.T) {
	h, err := New([]model.Basin{
		{ID: 1, PfafCode: "11", Level: 2, NextDown: 999},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(h.ChildrenOf(999, 2)))
}

func TestEnclosingBasin(t *testing.T) {
	h := newThreeLevel(t)

	b, ok := h.EnclosingBasin(geom.Coord{8, 2}, 3)
	require.True(t, ok)
	assert.Equal(t, int64(3123), b.ID)

	b, ok = h.EnclosingBasin(geom.Coord{8, 2}, 2)
	require.True(t, ok)
	assert.Equal(t, int64(2012), b.ID)

	_, ok = h.EnclosingBasin(geom.Coord{20, 20}, 1)
	assert.False(t, ok)

	_, ok = h.EnclosingBasin(geom.Coord{1, 1}, 7)
	assert.False(t, ok)
}

func TestEnclosingBasin_SharedEdgeUsesSortKey(t *testing.T) {
	h := newThreeLevel(t)

	// x=4 is the edge between 11 and 12/13; 2011 has the lowest sort key.
	b, ok := h.EnclosingBasin(geom.Coord{4, 2}, 2)
	require.True(t, ok)
	assert.Equal(t, int64(2011), b.ID)
}

func TestFilterByCodePrefix(t *testing.T) {
	h := newThreeLevel(t)

	assert.Equal(t, []int64{3121, 3123}, ids(h.FilterByCodePrefix("12", 3)))
	assert.Equal(t, []int64{3110, 3121, 3123, 3130}, ids(h.FilterByCodePrefix("1", 3)))
	assert.Empty(t, h.FilterByCodePrefix("9", 3))
	assert.Nil(t, h.FilterByCodePrefix("1", 11))
}

func TestChildrenOf(t *testing.T) {
	h := newThreeLevel(t)

	assert.ElementsMatch(t, []int64{2012, 2013}, ids(h.ChildrenOf(2011, 2)))
	assert.Equal(t, []int64{3123}, ids(h.ChildrenOf(3121, 3)))
	assert.Empty(t, h.ChildrenOf(3123, 3))
}

func TestAncestorsAtCoarserLevel(t *testing.T) {
	h := newThreeLevel(t)

	got := h.AncestorsAtCoarserLevel([]int64{3121, 3123, 3130}, 3)
	assert.Equal(t, []int64{2012, 2013}, ids(got))

	assert.Equal(t, []int64{1000}, ids(h.AncestorsAtCoarserLevel([]int64{2013}, 2)))
	assert.Empty(t, h.AncestorsAtCoarserLevel([]int64{1000}, 1))
	assert.Empty(t, h.AncestorsAtCoarserLevel([]int64{424242}, 3))
}

func TestBasinLookup(t *testing.T) {
	h := newThreeLevel(t)

	b, ok := h.Basin(3130, 3)
	require.True(t, ok)
	assert.Equal(t, "130", b.PfafCode)

	_, ok = h.Basin(3130, 2)
	assert.False(t, ok)
}

func TestCheckNesting(t *testing.T) {
	h := newThreeLevel(t)
	require.NoError(t, h.CheckNesting())

	orphan := append(threeLevelBasins(), bas(3150, "150", 0, rect(20, 20, 21, 21)))
	h, err := New(orphan)
	require.NoError(t, err)
	err = h.CheckNesting()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3150")
}

// Every basin's interior is covered by exactly one coarser basin, and that
// basin shares its code prefix.
func TestHierarchyNesting_Geometry(t *testing.T) {
	h := newThreeLevel(t)
	prims := geoprim.Equirectangular{}

	for _, level := range h.Levels() {
		if level == MinLevel {
			continue
		}
		for _, b := range h.All(level) {
			bounds := b.Geometry.Bounds()
			centre := geom.Coord{(bounds.Min(0) + bounds.Max(0)) / 2, (bounds.Min(1) + bounds.Max(1)) / 2}

			var covering []model.Basin
			for _, p := range h.All(level - 1) {
				if prims.Contains(p.Geometry, centre) {
					covering = append(covering, p)
				}
			}
			require.Len(t, covering, 1, "basin %d", b.ID)
			assert.Equal(t, ParentCode(b.PfafCode, level), covering[0].PfafCode)
		}
	}
}
