package mem

import "github.com/sablelab/cachesim/sim"

// AddressToPortMapper helps a cache unit find the backing-memory port that
// holds the data at a certain address.
type AddressToPortMapper interface {
	Find(address uint64) sim.RemotePort
}

// SinglePortMapper is used when a unit is connected with only one backing
// module.
type SinglePortMapper struct {
	Port sim.RemotePort
}

// Find simply returns the solo port that the unit connects to.
func (m *SinglePortMapper) Find(_ uint64) sim.RemotePort {
	return m.Port
}

// InterleavedAddressPortMapper finds the backing port when the backing
// modules maintain an interleaved address space.
type InterleavedAddressPortMapper struct {
	InterleavingSize uint64
	LowModules       []sim.RemotePort
}

// NewInterleavedAddressPortMapper creates a new mapper for interleaved
// backing modules.
func NewInterleavedAddressPortMapper(
	interleavingSize uint64,
) *InterleavedAddressPortMapper {
	m := new(InterleavedAddressPortMapper)
	m.InterleavingSize = interleavingSize

	return m
}

// Find returns the port of the module that has the data at the provided
// address.
func (m *InterleavedAddressPortMapper) Find(address uint64) sim.RemotePort {
	number := address / m.InterleavingSize % uint64(len(m.LowModules))

	return m.LowModules[number]
}
