package cache

import "fmt"

// A Directory stores the tag information of all the blocks in a cache.
type Directory interface {
	// Lookup finds the block that holds the given line-aligned address. The
	// lookup is combinational. It never modifies the directory.
	Lookup(lineAddr uint64) (*Block, bool)

	// GetSet returns the set that the given address maps to.
	GetSet(addr uint64) (set *Set, setID int)

	// GetSets returns all the sets, ordered by set ID.
	GetSets() []Set

	// Visit marks the block as the most recently used one in its set. It is
	// called on every hit and every fill.
	Visit(block *Block)

	// Reset invalidates every block in every set without writing anything
	// back.
	Reset()

	// WayAssociativity returns the number of ways in each set.
	WayAssociativity() int

	// NumSets returns the number of sets.
	NumSets() int

	// TotalSize returns the number of bytes that the cache can store.
	TotalSize() uint64
}

// NewDirectory creates a directory with all the blocks invalid.
func NewDirectory(numSets, numWays, blockSize int) Directory {
	d := &directoryImpl{
		numSets:   numSets,
		numWays:   numWays,
		blockSize: blockSize,
	}

	d.Reset()

	return d
}

type directoryImpl struct {
	numSets   int
	numWays   int
	blockSize int
	sets      []Set
}

func (d *directoryImpl) Lookup(lineAddr uint64) (*Block, bool) {
	set, _ := d.GetSet(lineAddr)

	var found *Block
	for _, block := range set.Blocks {
		if !block.IsValid || block.Tag != lineAddr {
			continue
		}

		if found != nil {
			panic(fmt.Sprintf(
				"duplicated tag 0x%x in set %d", lineAddr, block.SetID))
		}

		found = block
	}

	if found == nil {
		return nil, false
	}

	return found, true
}

func (d *directoryImpl) GetSet(addr uint64) (set *Set, setID int) {
	setID = int(addr / uint64(d.blockSize) % uint64(d.numSets))
	set = &d.sets[setID]

	return
}

func (d *directoryImpl) GetSets() []Set {
	return d.sets
}

func (d *directoryImpl) Visit(block *Block) {
	set := &d.sets[block.SetID]

	newLRUQueue := make([]int, 0, d.numWays)
	for _, wayID := range set.LRUQueue {
		if wayID != block.WayID {
			newLRUQueue = append(newLRUQueue, wayID)
		}
	}
	newLRUQueue = append(newLRUQueue, block.WayID)

	set.LRUQueue = newLRUQueue
}

func (d *directoryImpl) Reset() {
	d.sets = make([]Set, d.numSets)
	for i := 0; i < d.numSets; i++ {
		for j := 0; j < d.numWays; j++ {
			block := &Block{
				SetID:        i,
				WayID:        j,
				CacheAddress: uint64(i*d.numWays+j) * uint64(d.blockSize),
			}

			d.sets[i].Blocks = append(d.sets[i].Blocks, block)
			d.sets[i].LRUQueue = append(d.sets[i].LRUQueue, j)
		}
	}
}

func (d *directoryImpl) WayAssociativity() int {
	return d.numWays
}

func (d *directoryImpl) NumSets() int {
	return d.numSets
}

func (d *directoryImpl) TotalSize() uint64 {
	return uint64(d.numSets) * uint64(d.numWays) * uint64(d.blockSize)
}
