package mem

import "errors"

// Defines the commonly used byte size units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// A Storage keeps the data of the modeled system.
//
// A storage is an abstraction of all different types of storage, including
// cache data arrays and main memory. The storage implementation manages the
// bytes in units. For the units that are not touched by Read and Write, no
// host memory is allocated.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the given capacity.
func NewStorage(capacity uint64) *Storage {
	s := new(Storage)

	s.unitSize = 4096
	s.capacity = capacity
	s.data = make(map[uint64][]byte)

	return s
}

// Capacity returns the number of bytes that the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// Read returns a copy of `size` bytes starting at `address`.
func (s *Storage) Read(address, size uint64) ([]byte, error) {
	if address+size > s.capacity {
		return nil, errors.New("accessing beyond the storage capacity")
	}

	res := make([]byte, size)
	offset := uint64(0)

	for offset < size {
		currAddr := address + offset
		unit := s.unit(currAddr)
		inUnitAddr := currAddr % s.unitSize

		n := copy(res[offset:], unit[inUnitAddr:])
		offset += uint64(n)
	}

	return res, nil
}

// Write stores the given bytes starting at `address`.
func (s *Storage) Write(address uint64, data []byte) error {
	if address+uint64(len(data)) > s.capacity {
		return errors.New("accessing beyond the storage capacity")
	}

	offset := uint64(0)

	for offset < uint64(len(data)) {
		currAddr := address + offset
		unit := s.unit(currAddr)
		inUnitAddr := currAddr % s.unitSize

		n := copy(unit[inUnitAddr:], data[offset:])
		offset += uint64(n)
	}

	return nil
}

func (s *Storage) unit(address uint64) []byte {
	baseAddr := address - address%s.unitSize

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}
