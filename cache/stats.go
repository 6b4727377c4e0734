package cache

import "github.com/sablelab/cachesim/sim"

// StatsTracer is a hook that counts the observable events of a cache
// controller. Attach it to a Comp with AcceptHook.
type StatsTracer struct {
	Accesses   uint64
	Hits       uint64
	Misses     uint64
	Commits    uint64
	Fills      uint64
	Writebacks uint64
	Flushes    uint64
}

// Func counts the hook invocation according to its position.
func (t *StatsTracer) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosCacheAccess:
		t.Accesses++
	case HookPosCacheHit:
		t.Hits++
	case HookPosCacheMiss:
		t.Misses++
	case HookPosCacheCommit:
		t.Commits++
	case HookPosCacheFill:
		t.Fills++
	case HookPosCacheWriteback:
		t.Writebacks++
	case HookPosCacheFlushDone:
		t.Flushes++
	}
}
