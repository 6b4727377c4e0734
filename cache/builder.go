package cache

import (
	"github.com/sablelab/cachesim/mem"
	"github.com/sablelab/cachesim/sim"
)

// Builder can build write-back cache controllers.
type Builder struct {
	engine              sim.Engine
	freq                sim.Freq
	byteSize            uint64
	wayAssociativity    int
	log2BlockSize       uint64
	victimFinder        VictimFinder
	addressToPortMapper mem.AddressToPortMapper
}

// MakeBuilder creates a new builder with default parameters: 1 GHz, 16 KB,
// 4-way associative, 64-byte lines, LRU replacement.
func MakeBuilder() Builder {
	return Builder{
		freq:             1 * sim.GHz,
		byteSize:         16 * mem.KB,
		wayAssociativity: 4,
		log2BlockSize:    6,
	}
}

// WithEngine sets the engine that drives the cache.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the cache.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithByteSize sets the capacity of the cache.
func (b Builder) WithByteSize(byteSize uint64) Builder {
	b.byteSize = byteSize
	return b
}

// WithWayAssociativity sets the number of ways in each set.
func (b Builder) WithWayAssociativity(wayAssociativity int) Builder {
	b.wayAssociativity = wayAssociativity
	return b
}

// WithLog2BlockSize sets the log2 of the cache line size in bytes.
func (b Builder) WithLog2BlockSize(log2BlockSize uint64) Builder {
	b.log2BlockSize = log2BlockSize
	return b
}

// WithVictimFinder sets the replacement policy of the cache.
func (b Builder) WithVictimFinder(victimFinder VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// WithAddressToPortMapper sets the mapper that determines which backing
// memory port serves a given address.
func (b Builder) WithAddressToPortMapper(
	mapper mem.AddressToPortMapper,
) Builder {
	b.addressToPortMapper = mapper
	return b
}

// Build builds a cache controller.
func (b Builder) Build(name string) *Comp {
	blockSize := 1 << b.log2BlockSize
	b.mustBeFullSets(blockSize)

	setSize := uint64(blockSize * b.wayAssociativity)
	numSets := int(b.byteSize / setSize)

	c := new(Comp)
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.directory = NewDirectory(numSets, b.wayAssociativity, blockSize)
	c.storage = mem.NewStorage(b.byteSize)
	c.log2BlockSize = b.log2BlockSize
	c.addressToPortMapper = b.addressToPortMapper

	c.victimFinder = b.victimFinder
	if c.victimFinder == nil {
		c.victimFinder = NewLRUVictimFinder()
	}

	// A single-slot top port holds exactly one outstanding request; a second
	// request is held at the consumer side while the stall lasts.
	c.topPort = sim.NewPort(c, 1, 1, name+".Top")
	c.bottomPort = sim.NewPort(c, 1, 1, name+".Bottom")
	c.controlPort = sim.NewPort(c, 4, 4, name+".Control")

	c.AddPort("Top", c.topPort)
	c.AddPort("Bottom", c.bottomPort)
	c.AddPort("Control", c.controlPort)

	return c
}

func (b Builder) mustBeFullSets(blockSize int) {
	setSize := uint64(blockSize * b.wayAssociativity)
	if b.byteSize%setSize != 0 {
		panic("cache must have an integer number of sets")
	}
}
