package ecs

// Each2 visits the entities present in both stores. The smaller store drives
// the iteration; order is unspecified.
func Each2[A, B any](sa *PtrComponentStore[A], sb *PtrComponentStore[B], fn func(EntityID, *A, *B)) {
	if sa.Len() > sb.Len() {
		sb.Each(func(id EntityID, b *B) {
			if a, ok := sa.Get(id); ok {
				fn(id, a, b)
			}
		})
		return
	}
	sa.Each(func(id EntityID, a *A) {
		if b, ok := sb.Get(id); ok {
			fn(id, a, b)
		}
	})
}
