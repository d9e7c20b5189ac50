package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SpawnEntry defines where and how many NPCs of one template to spawn.
type SpawnEntry struct {
	NpcID        int32  `yaml:"npc_id"`
	Name         string `yaml:"name"` // informational only
	Plane        int16  `yaml:"plane"`
	X            int32  `yaml:"x"`
	Y            int32  `yaml:"y"`
	Count        int    `yaml:"count"`
	RandomX      int32  `yaml:"randomx"` // spread around (x, y) when count > 1
	RandomY      int32  `yaml:"randomy"`
	Facing       uint8  `yaml:"facing"`
	WanderRadius int32  `yaml:"wander_radius"`
	Lifetime     int    `yaml:"lifetime_ticks"` // 0 = stays forever
	RespawnTicks int    `yaml:"respawn_ticks"`
}

// ObjectEntry places one static world object.
type ObjectEntry struct {
	ObjectID int32  `yaml:"object_id"`
	Name     string `yaml:"name"`
	Plane    int16  `yaml:"plane"`
	X        int32  `yaml:"x"`
	Y        int32  `yaml:"y"`
	Facing   uint8  `yaml:"facing"`
}

// GroundItemEntry places one item stack on the ground at startup.
type GroundItemEntry struct {
	ItemID   int32  `yaml:"item_id"`
	Name     string `yaml:"name"`
	Plane    int16  `yaml:"plane"`
	X        int32  `yaml:"x"`
	Y        int32  `yaml:"y"`
	Amount   int32  `yaml:"amount"`
	TTLTicks int    `yaml:"ttl_ticks"` // 0 = never expires
}

type spawnListFile struct {
	Spawns      []SpawnEntry      `yaml:"spawns"`
	Objects     []ObjectEntry     `yaml:"objects"`
	GroundItems []GroundItemEntry `yaml:"ground_items"`
}

// Placement is one NPC instance produced from a spawn entry.
type Placement struct {
	NpcID        int32
	X            int32
	Y            int32
	Plane        int16
	Facing       uint8
	WanderRadius int32
	Lifetime     int
	RespawnTicks int
}

// SpawnTable holds the NPC spawn list along with the objects and ground
// items placed when the world starts.
type SpawnTable struct {
	entries []SpawnEntry
	objects []ObjectEntry
	items   []GroundItemEntry
}

// LoadSpawnTable loads the spawn list from a YAML file.
func LoadSpawnTable(path string) (*SpawnTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	t, err := ParseSpawnTable(data)
	if err != nil {
		return nil, fmt.Errorf("spawn list %s: %w", path, err)
	}
	return t, nil
}

func ParseSpawnTable(data []byte) (*SpawnTable, error) {
	var f spawnListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i := range f.Spawns {
		e := &f.Spawns[i]
		if e.Count <= 0 {
			e.Count = 1
		}
		if e.Facing > 7 {
			return nil, fmt.Errorf("spawn %d (npc %d): facing %d out of range", i, e.NpcID, e.Facing)
		}
		if e.RandomX < 0 || e.RandomY < 0 || e.WanderRadius < 0 {
			return nil, fmt.Errorf("spawn %d (npc %d): negative spread or wander radius", i, e.NpcID)
		}
		if e.Lifetime < 0 || e.RespawnTicks < 0 {
			return nil, fmt.Errorf("spawn %d (npc %d): negative lifetime or respawn ticks", i, e.NpcID)
		}
	}
	for i, o := range f.Objects {
		if o.Facing > 7 {
			return nil, fmt.Errorf("object %d (id %d): facing %d out of range", i, o.ObjectID, o.Facing)
		}
	}
	for i := range f.GroundItems {
		g := &f.GroundItems[i]
		if g.Amount <= 0 {
			g.Amount = 1
		}
		if g.TTLTicks < 0 {
			return nil, fmt.Errorf("ground item %d (item %d): negative ttl", i, g.ItemID)
		}
	}
	return &SpawnTable{entries: f.Spawns, objects: f.Objects, items: f.GroundItems}, nil
}

func (t *SpawnTable) Entries() []SpawnEntry {
	return t.entries
}

func (t *SpawnTable) Objects() []ObjectEntry {
	return t.objects
}

func (t *SpawnTable) GroundItems() []GroundItemEntry {
	return t.items
}

// Count returns the total number of NPC instances.
func (t *SpawnTable) Count() int {
	n := 0
	for _, e := range t.entries {
		n += e.Count
	}
	return n
}

// Placements expands every entry into its instances. intn(n) must return a
// value in [0, n); it spreads instances of multi-count entries.
func (t *SpawnTable) Placements(intn func(n int) int) []Placement {
	out := make([]Placement, 0, t.Count())
	for _, e := range t.entries {
		for i := 0; i < e.Count; i++ {
			x, y := e.X, e.Y
			if e.Count > 1 {
				if e.RandomX > 0 {
					x += int32(intn(int(2*e.RandomX+1))) - e.RandomX
				}
				if e.RandomY > 0 {
					y += int32(intn(int(2*e.RandomY+1))) - e.RandomY
				}
			}
			out = append(out, Placement{
				NpcID:        e.NpcID,
				X:            x,
				Y:            y,
				Plane:        e.Plane,
				Facing:       e.Facing,
				WanderRadius: e.WanderRadius,
				Lifetime:     e.Lifetime,
				RespawnTicks: e.RespawnTicks,
			})
		}
	}
	return out
}
