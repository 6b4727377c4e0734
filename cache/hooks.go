package cache

import "github.com/sablelab/cachesim/sim"

// HookPosCacheAccess marks that a lookup was performed for a consumer
// request. The hook item is the request.
var HookPosCacheAccess = &sim.HookPos{Name: "Cache Access"}

// HookPosCacheHit marks that a lookup found the requested line.
var HookPosCacheHit = &sim.HookPos{Name: "Cache Hit"}

// HookPosCacheMiss marks that a lookup did not find the requested line.
var HookPosCacheMiss = &sim.HookPos{Name: "Cache Miss"}

// HookPosCacheCommit marks the moment the effect of a request is finalized:
// the storage is mutated by a write, or the read data is latched. A committed
// request can no longer be abandoned.
var HookPosCacheCommit = &sim.HookPos{Name: "Cache Commit"}

// HookPosCacheFill marks that a line was fetched from the backing memory and
// installed. The hook item is the filled block.
var HookPosCacheFill = &sim.HookPos{Name: "Cache Fill"}

// HookPosCacheWriteback marks that a dirty line was sent to the backing
// memory, either as a miss eviction or during a flush. The hook item is the
// write request sent on the bottom port.
var HookPosCacheWriteback = &sim.HookPos{Name: "Cache Writeback"}

// HookPosCacheFlushDone marks the completion of a flush.
var HookPosCacheFlushDone = &sim.HookPos{Name: "Cache Flush Done"}

// HookPosCacheInvalidate marks that all the lines were invalidated.
var HookPosCacheInvalidate = &sim.HookPos{Name: "Cache Invalidate"}
