package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityPool_NeverIssuesZero(t *testing.T) {
	p := NewEntityPool()
	id := p.Create()
	assert.False(t, id.IsZero())
	assert.Equal(t, uint32(0), id.Index())
	assert.Equal(t, uint32(1), id.Generation())
}

func TestEntityPool_ReuseBumpsGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	p.Destroy(a)
	assert.False(t, p.Alive(a))

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index(), "freed slot is reused")
	assert.NotEqual(t, a, b)
	assert.True(t, p.Alive(b))

	// destroying a stale id is a no-op
	p.Destroy(a)
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Len())
}

func TestWorld_DeferredDestruction(t *testing.T) {
	w := NewWorld()
	store := NewPtrComponentStore[int]()
	w.Registry().Register(store)

	id := w.CreateEntity()
	v := 7
	store.Set(id, &v)

	w.MarkForDestruction(id)
	require.Equal(t, 1, w.PendingDestruction())
	assert.True(t, w.Alive(id), "still alive until flush")
	assert.True(t, store.Has(id))

	assert.Equal(t, 1, w.FlushDestroyQueue())
	assert.False(t, w.Alive(id))
	assert.False(t, store.Has(id))
	assert.Equal(t, 0, w.PendingDestruction())
}

func TestEach2_OnlyVisitsIntersection(t *testing.T) {
	a := NewPtrComponentStore[string]()
	b := NewPtrComponentStore[int]()
	one, two, three := NewEntityID(1, 1), NewEntityID(2, 1), NewEntityID(3, 1)
	s1, s2 := "one", "two"
	n2, n3 := 2, 3
	a.Set(one, &s1)
	a.Set(two, &s2)
	b.Set(two, &n2)
	b.Set(three, &n3)

	var seen []EntityID
	Each2(a, b, func(id EntityID, s *string, n *int) {
		seen = append(seen, id)
		assert.Equal(t, "two", *s)
		assert.Equal(t, 2, *n)
	})
	assert.Equal(t, []EntityID{two}, seen)
}

func TestPtrComponentStore_EachVisitsAllOnce(t *testing.T) {
	s := NewPtrComponentStore[int]()
	var want []EntityID
	for i := uint32(0); i < 20; i++ {
		id := NewEntityID(i, 1)
		v := int(i)
		s.Set(id, &v)
		want = append(want, id)
	}
	s.Remove(want[3])
	want = append(want[:3], want[4:]...)

	var got []EntityID
	s.Each(func(id EntityID, v *int) {
		assert.Equal(t, int(id.Index()), *v)
		got = append(got, id)
	})
	assert.ElementsMatch(t, want, got)
}
