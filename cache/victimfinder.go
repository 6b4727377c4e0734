package cache

// A VictimFinder decides which block should be evicted to make room for an
// incoming line.
type VictimFinder interface {
	FindVictim(dir Directory, lineAddr uint64) *Block
}

// LRUVictimFinder evicts the least recently used block in the targeted set.
// Invalid blocks are preferred over valid ones; among multiple invalid
// blocks, the one with the lowest way ID wins.
type LRUVictimFinder struct {
}

// NewLRUVictimFinder returns a newly constructed LRU victim finder.
func NewLRUVictimFinder() *LRUVictimFinder {
	return new(LRUVictimFinder)
}

// FindVictim returns the block to evict from the set that the given address
// maps to.
func (f *LRUVictimFinder) FindVictim(dir Directory, lineAddr uint64) *Block {
	set, _ := dir.GetSet(lineAddr)

	for _, block := range set.Blocks {
		if !block.IsValid {
			return block
		}
	}

	return set.Blocks[set.LRUQueue[0]]
}
