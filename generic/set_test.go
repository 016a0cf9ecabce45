package generic

import (
	"sort"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestSet_AddRemove(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet[string]()
	assert.Zero(s.Count())
	assert.Equal(1, s.Add("web"))
	assert.Equal(0, s.Add("web"), "already present")
	assert.Equal(2, s.Add("mobile", "tv", "web"))
	assert.Equal(3, s.Count())
	assert.True(s.Contains("web", "tv"))
	assert.False(s.Contains("web", "mweb"))
	assert.True(s.ContainsAny("mweb", "tv"))
	assert.False(s.ContainsAny("mweb"))
	assert.False(s.ContainsAny())

	assert.True(s.Remove("tv"))
	assert.False(s.Remove("tv"))
	assert.False(s.Contains("tv"))

	s.Clear()
	assert.Zero(s.Count())
}

func TestSet_Clone(t *testing.T) {
	assert := assert_.New(t)

	s := NewSet(1, 2, 3)
	clone := s.Clone()
	clone.Add(4)
	assert.False(s.Contains(4))
	items := clone.ToSlice()
	sort.Ints(items)
	assert.Equal([]int{1, 2, 3, 4}, items)
}

func TestSet_Difference(t *testing.T) {
	assert := assert_.New(t)

	requested := NewSet("web", "desktop", "tv", "smart-fridge")
	known := NewSet("web", "mobile", "tv", "mweb")
	unknown := requested.Difference(known).ToSlice()
	sort.Strings(unknown)
	assert.Equal([]string{"desktop", "smart-fridge"}, unknown)
	assert.Zero(known.Difference(known).Count())
	assert.Equal("{7}", NewSet(7).String())
}
