package cache

import (
	"github.com/sablelab/cachesim/sim"
)

// FlushReq is the request sent to a cache unit to ask it to write back every
// dirty line it holds. The flush walks the sets and ways in ascending order.
type FlushReq struct {
	sim.MsgMeta

	// InvalidateAllCachelines asks the cache to also invalidate every line
	// after the dirty lines are written back.
	InvalidateAllCachelines bool

	// DiscardInflight asks the cache to drop the transaction that is being
	// serviced, if any, before the flush starts.
	DiscardInflight bool
}

// Meta returns the meta data associated with the message.
func (r *FlushReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned FlushReq with a different ID.
func (r *FlushReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// FlushReqBuilder can build flush requests.
type FlushReqBuilder struct {
	src, dst                sim.RemotePort
	invalidateAllCachelines bool
	discardInflight         bool
}

// WithSrc sets the source of the request to build.
func (b FlushReqBuilder) WithSrc(src sim.RemotePort) FlushReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b FlushReqBuilder) WithDst(dst sim.RemotePort) FlushReqBuilder {
	b.dst = dst
	return b
}

// InvalidateAllCacheLines asks the cache to invalidate all the lines after
// the flush completes.
func (b FlushReqBuilder) InvalidateAllCacheLines() FlushReqBuilder {
	b.invalidateAllCachelines = true
	return b
}

// DiscardInflight asks the cache to drop the in-flight transaction before
// flushing.
func (b FlushReqBuilder) DiscardInflight() FlushReqBuilder {
	b.discardInflight = true
	return b
}

// Build creates a new FlushReq.
func (b FlushReqBuilder) Build() *FlushReq {
	r := &FlushReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.InvalidateAllCachelines = b.invalidateAllCachelines
	r.DiscardInflight = b.discardInflight

	return r
}

// InvalidateReq is the request sent to a cache unit to ask it to mark every
// line invalid immediately. Dirty data is discarded without any bus traffic.
// The invalidation takes priority over an in-flight miss or flush.
type InvalidateReq struct {
	sim.MsgMeta
}

// Meta returns the meta data associated with the message.
func (r *InvalidateReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned InvalidateReq with a different ID.
func (r *InvalidateReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// InvalidateReqBuilder can build invalidate requests.
type InvalidateReqBuilder struct {
	src, dst sim.RemotePort
}

// WithSrc sets the source of the request to build.
func (b InvalidateReqBuilder) WithSrc(src sim.RemotePort) InvalidateReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b InvalidateReqBuilder) WithDst(dst sim.RemotePort) InvalidateReqBuilder {
	b.dst = dst
	return b
}

// Build creates a new InvalidateReq.
func (b InvalidateReqBuilder) Build() *InvalidateReq {
	r := &InvalidateReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst

	return r
}

// AbandonReq is the request sent to a cache unit to cancel the transaction
// that is currently being serviced. A transaction that has already committed
// its effect is not cancelled; its response is still delivered.
type AbandonReq struct {
	sim.MsgMeta
}

// Meta returns the meta data associated with the message.
func (r *AbandonReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// Clone returns a cloned AbandonReq with a different ID.
func (r *AbandonReq) Clone() sim.Msg {
	cloneMsg := *r
	cloneMsg.ID = sim.GetIDGenerator().Generate()

	return &cloneMsg
}

// AbandonReqBuilder can build abandon requests.
type AbandonReqBuilder struct {
	src, dst sim.RemotePort
}

// WithSrc sets the source of the request to build.
func (b AbandonReqBuilder) WithSrc(src sim.RemotePort) AbandonReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b AbandonReqBuilder) WithDst(dst sim.RemotePort) AbandonReqBuilder {
	b.dst = dst
	return b
}

// Build creates a new AbandonReq.
func (b AbandonReqBuilder) Build() *AbandonReq {
	r := &AbandonReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst

	return r
}
