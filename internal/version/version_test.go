package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *ClusterSnapshot {
	return NewClusterSnapshot(1, []string{"n0", "n1", "n2"})
}

func TestCompareEqual(t *testing.T) {
	snap := testSnapshot()
	gen := NewGenerator(snap)
	a := gen.GenerateNew().WithCoord(0, 3).WithCoord(1, 2)
	b := gen.GenerateNew().WithCoord(0, 3).WithCoord(1, 2)

	order, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, Equal, order)
}

func TestCompareBeforeAndAfter(t *testing.T) {
	snap := testSnapshot()
	gen := NewGenerator(snap)
	small := gen.GenerateNew().WithCoord(0, 1)
	big := gen.GenerateNew().WithCoord(0, 2)

	order, err := Compare(small, big)
	require.NoError(t, err)
	assert.Equal(t, Before, order)

	order, err = Compare(big, small)
	require.NoError(t, err)
	assert.Equal(t, After, order)
}

func TestCompareConcurrent(t *testing.T) {
	snap := testSnapshot()
	gen := NewGenerator(snap)
	a := gen.GenerateNew().WithCoord(0, 5).WithCoord(1, 1)
	b := gen.GenerateNew().WithCoord(0, 1).WithCoord(1, 5)

	order, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, Concurrent, order)
}

func TestCompareBeforeOrEqual(t *testing.T) {
	snap := NewClusterSnapshot(1, []string{"n0"})
	gen := NewGenerator(snap)
	a := gen.GenerateNew().WithCoord(0, 2)

	grown := NewClusterSnapshot(2, []string{"n0", "n1"})
	b := a.ProjectOnto(grown).WithCoord(1, 7)

	order, err := Compare(a.ProjectOnto(grown), b)
	require.NoError(t, err)
	assert.Equal(t, BeforeOrEqual, order)

	order, err = Compare(b, a.ProjectOnto(grown))
	require.NoError(t, err)
	assert.Equal(t, AfterOrEqual, order)
}

func TestCompareCrossSnapshotFails(t *testing.T) {
	a := NewGenerator(testSnapshot()).GenerateNew()
	b := NewGenerator(NewClusterSnapshot(2, []string{"m0", "m1"})).GenerateNew()

	_, err := Compare(a, b)
	assert.ErrorIs(t, err, ErrCrossSnapshot)
}

func TestMergeAndMaxIgnoresNonExisting(t *testing.T) {
	snap := testSnapshot()
	gen := NewGenerator(snap)
	a := gen.GenerateUnknown().WithCoord(0, 3)
	b := gen.GenerateUnknown().WithCoord(1, 9)

	merged := gen.MergeAndMax(a, b)
	assert.Equal(t, int64(3), merged.Get(0))
	assert.Equal(t, int64(9), merged.Get(1))
	assert.Equal(t, NonExisting, merged.Get(2))

	order, err := Compare(merged, a)
	require.NoError(t, err)
	assert.Contains(t, []Order{After, Equal, AfterOrEqual}, order)
}

func TestUpdatedVersionPreservesCoordsAndFillsNew(t *testing.T) {
	snap := NewClusterSnapshot(1, []string{"n0", "n1"})
	gen := NewGenerator(snap)
	v := gen.GenerateNew().WithCoord(0, 4).WithCoord(1, 2)

	grown := NewClusterSnapshot(2, []string{"n0", "n1", "n2"})
	gen2 := NewGenerator(grown)

	updated := gen2.UpdatedVersion(v)
	assert.Equal(t, int64(4), updated.Get(0))
	assert.Equal(t, int64(2), updated.Get(1))
	assert.Equal(t, NonExisting, updated.Get(2))
}

func TestConvertToReadPreservesVector(t *testing.T) {
	v := NewGenerator(testSnapshot()).GenerateNew().WithCoord(0, 1)
	rv := ConvertToRead(v)
	assert.Equal(t, v, rv.Vector)
	assert.Equal(t, 0, rv.Len())
}

func TestGenerateUnknownIsAllNonExisting(t *testing.T) {
	snap := testSnapshot()
	gen := NewGenerator(snap)
	u := gen.GenerateUnknown()

	for i := 0; i < snap.Size(); i++ {
		assert.Equal(t, NonExisting, u.Get(i))
	}
}

func TestNotVisibleSet(t *testing.T) {
	v := NewGenerator(testSnapshot()).GenerateNew()
	rv := ConvertToRead(v)
	rv.MarkNotVisible(5, 1)

	assert.True(t, rv.IsNotVisible(5, 1))
	assert.False(t, rv.IsNotVisible(5, 0))
	assert.False(t, rv.IsNotVisible(6, 1))
}
