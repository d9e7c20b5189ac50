package world

import (
	"fmt"

	"github.com/rscgo/server/internal/core/ecs"
)

// The region index partitions every plane into square cells and keeps one
// member list per entity kind in each cell. It is mutated only from the game
// loop and may be queried concurrently once the tick's mutations are done.

// DefaultCellSize is the width of a cell in tiles.
const DefaultCellSize = 64

// Kind selects one of the four per-cell collections.
type Kind uint8

const (
	KindPlayer Kind = iota
	KindNpc
	KindObject
	KindGroundItem
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindPlayer:
		return "player"
	case KindNpc:
		return "npc"
	case KindObject:
		return "object"
	case KindGroundItem:
		return "ground_item"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// CellKey identifies a cell on a plane: (floor(x/S), floor(y/S)).
type CellKey struct {
	CX int32
	CY int32
}

// Locatable is anything the region index can hold.
type Locatable interface {
	EntityID() ecs.EntityID
	Position() Position
	regionRef() *CellRef
}

// CellRef is the entity's handle into the index: which cell holds it and at
// which slot of that cell's member list. The index owns the cells; the
// entity only keeps this key.
type CellRef struct {
	plane int16
	key   CellKey
	slot  int
	set   bool
}

// Cell returns the owning cell and whether the entity is indexed at all.
func (r *CellRef) Cell() (CellKey, bool) { return r.key, r.set }

// Plane returns the plane of the owning cell.
func (r *CellRef) Plane() int16 { return r.plane }

// Bounds is the playable rectangle shared by every plane.
type Bounds struct {
	Width  int32
	Height int32
	Planes int16
}

// DefaultBounds is the size of the classic world map.
var DefaultBounds = Bounds{Width: 944, Height: 944, Planes: 4}

type regionKey struct {
	plane int16
	key   CellKey
}

type cell struct {
	members [kindCount][]Locatable
}

func (c *cell) empty() bool {
	for k := range c.members {
		if len(c.members[k]) > 0 {
			return false
		}
	}
	return true
}

// RegionIndex is the cell grid.
type RegionIndex struct {
	cellSize int32
	bounds   Bounds
	cells    map[regionKey]*cell
	counts   [kindCount]int
}

func NewRegionIndex(cellSize int32, bounds Bounds) *RegionIndex {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &RegionIndex{
		cellSize: cellSize,
		bounds:   bounds,
		cells:    make(map[regionKey]*cell),
	}
}

func (ri *RegionIndex) CellSize() int32 { return ri.cellSize }
func (ri *RegionIndex) Bounds() Bounds  { return ri.bounds }

func (ri *RegionIndex) toCellCoord(v int32) int32 {
	if v < 0 {
		return (v - ri.cellSize + 1) / ri.cellSize
	}
	return v / ri.cellSize
}

// CellFor returns the cell containing tile (x, y).
func (ri *RegionIndex) CellFor(x, y int32) CellKey {
	return CellKey{CX: ri.toCellCoord(x), CY: ri.toCellCoord(y)}
}

// WithinWorld reports whether (x, y) lies inside the playable rectangle.
func (ri *RegionIndex) WithinWorld(x, y int32) bool {
	return x >= 0 && x < ri.bounds.Width && y >= 0 && y < ri.bounds.Height
}

// ValidPlane reports whether plane exists.
func (ri *RegionIndex) ValidPlane(plane int16) bool {
	return plane >= 0 && plane < ri.bounds.Planes
}

// Add inserts e into the cell for its current position. Adding an entity
// that is already indexed moves it to its current cell.
func (ri *RegionIndex) Add(kind Kind, e Locatable) {
	ref := e.regionRef()
	if ref.set {
		ri.Remove(kind, e)
	}
	pos := e.Position()
	rk := regionKey{plane: pos.Plane, key: ri.CellFor(pos.X, pos.Y)}
	c := ri.cells[rk]
	if c == nil {
		c = &cell{}
		ri.cells[rk] = c
	}
	*ref = CellRef{plane: rk.plane, key: rk.key, slot: len(c.members[kind]), set: true}
	c.members[kind] = append(c.members[kind], e)
	ri.counts[kind]++
}

// Remove takes e out of its recorded cell and clears its handle.
func (ri *RegionIndex) Remove(kind Kind, e Locatable) {
	ref := e.regionRef()
	if !ref.set {
		return
	}
	rk := regionKey{plane: ref.plane, key: ref.key}
	c := ri.cells[rk]
	if c != nil {
		list := c.members[kind]
		if ref.slot < len(list) && list[ref.slot] == e {
			last := len(list) - 1
			if ref.slot != last {
				moved := list[last]
				list[ref.slot] = moved
				moved.regionRef().slot = ref.slot
			}
			list[last] = nil
			c.members[kind] = list[:last]
			ri.counts[kind]--
		}
		if c.empty() {
			delete(ri.cells, rk)
		}
	}
	*ref = CellRef{}
}

// Relocate moves e between cells after its position changed from
// (oldX, oldY). Returns true when the owning cell changed. Calling it with
// unchanged coordinates is a no-op that returns false.
func (ri *RegionIndex) Relocate(kind Kind, e Locatable, oldX, oldY int32) bool {
	ref := e.regionRef()
	if !ref.set {
		return false
	}
	pos := e.Position()
	oldKey := ri.CellFor(oldX, oldY)
	newKey := ri.CellFor(pos.X, pos.Y)
	if oldKey == newKey && ref.plane == pos.Plane && ref.key == newKey {
		return false
	}
	ri.Remove(kind, e)
	ri.Add(kind, e)
	return true
}

// Query returns the kind's members of the (2r+1)^2 cells centred on the cell
// containing (x, y) on the given plane. Cells are visited row by row from the
// north-west corner, members in cell order, so the result is deterministic
// for a given sequence of mutations. Out-of-world centres yield nil.
func (ri *RegionIndex) Query(kind Kind, plane int16, x, y int32, radius int) []Locatable {
	if !ri.WithinWorld(x, y) || !ri.ValidPlane(plane) || radius < 0 {
		return nil
	}
	center := ri.CellFor(x, y)
	r := int32(radius)
	var result []Locatable
	var seen map[ecs.EntityID]struct{}
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			c := ri.cells[regionKey{plane: plane, key: CellKey{CX: center.CX + dx, CY: center.CY + dy}}]
			if c == nil {
				continue
			}
			for _, e := range c.members[kind] {
				if seen == nil {
					seen = make(map[ecs.EntityID]struct{}, 32)
				}
				id := e.EntityID()
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				result = append(result, e)
			}
		}
	}
	return result
}

// Members returns the kind's members of a single cell.
func (ri *RegionIndex) Members(kind Kind, plane int16, key CellKey) []Locatable {
	c := ri.cells[regionKey{plane: plane, key: key}]
	if c == nil {
		return nil
	}
	out := make([]Locatable, len(c.members[kind]))
	copy(out, c.members[kind])
	return out
}

// CellRadius returns how many cells a query must span to cover viewRange tiles.
func (ri *RegionIndex) CellRadius(viewRange int32) int {
	if viewRange <= 0 {
		return 0
	}
	return int((viewRange + ri.cellSize - 1) / ri.cellSize)
}

// CellCount returns the number of non-empty cells.
func (ri *RegionIndex) CellCount() int {
	return len(ri.cells)
}

// EntityCount returns the number of indexed entities of a kind.
func (ri *RegionIndex) EntityCount(kind Kind) int {
	return ri.counts[kind]
}

// Stats returns a one-line summary for diagnostics.
func (ri *RegionIndex) Stats() string {
	maxPerCell := 0
	for _, c := range ri.cells {
		n := 0
		for k := range c.members {
			n += len(c.members[k])
		}
		if n > maxPerCell {
			maxPerCell = n
		}
	}
	return fmt.Sprintf("regions: %d cells, players=%d npcs=%d objects=%d items=%d, max %d/cell",
		len(ri.cells), ri.counts[KindPlayer], ri.counts[KindNpc], ri.counts[KindObject], ri.counts[KindGroundItem], maxPerCell)
}
