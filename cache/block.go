// Package cache provides a set-associative, write-back cache controller.
package cache

// A Block of a cache is the information that is associated with one cache
// line. The bytes of the line live in a separate storage, starting at
// CacheAddress.
type Block struct {
	// Tag is the line-aligned physical address of the data kept in this
	// block. It is only meaningful when IsValid is true.
	Tag uint64

	SetID int
	WayID int

	// CacheAddress is the offset of this block's line in the cache's data
	// storage.
	CacheAddress uint64

	IsValid bool
	IsDirty bool
}

// A Set is a list of blocks where a certain piece of memory can be stored.
type Set struct {
	Blocks []*Block

	// LRUQueue orders the way IDs of this set from least to most recently
	// used.
	LRUQueue []int
}
