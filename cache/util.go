package cache

// getLineAddr returns the line-aligned address that contains addr and the
// offset of addr within the line.
func getLineAddr(addr, log2BlockSize uint64) (lineAddr, offset uint64) {
	mask := uint64(0xffffffffffffffff) << log2BlockSize
	lineAddr = addr & mask
	offset = addr & ^mask

	return
}
