package cache

import (
	"log"
	"reflect"

	"github.com/sablelab/cachesim/mem"
	"github.com/sablelab/cachesim/sim"
)

type ctrlState int

const (
	ctrlStateReady ctrlState = iota
	ctrlStateEvictWriteback
	ctrlStateFillWait
	ctrlStateFlushWriteback
	ctrlStateFlushAdvance
)

// A transaction tracks one consumer request from the cycle it is first
// observed until its response is sent. The lookup result and any read data
// are captured here once and replayed on later cycles, so that a stalled
// request is never re-evaluated against the directory.
type transaction struct {
	req mem.AccessReq

	// block is the way that serves the request: the hit block, or the victim
	// way that the missing line is filled into.
	block *Block
	hit   bool

	// data is the latched read data. For atomics it holds the pre-write
	// bytes.
	data []byte

	// committed is set the moment the request's effect is finalized. A
	// committed transaction can no longer be abandoned.
	committed bool

	// busReqID is the ID of the outstanding bottom-port request, if any.
	busReqID string
}

// flushProgress is the cursor of an in-progress flush. It only lives while a
// flush is being serviced.
type flushProgress struct {
	req *FlushReq

	setID, wayID int
	busReqID     string
}

// Comp is a set-associative write-back cache controller.
//
// The controller services one consumer request at a time. The Top port
// accepts mem.ReadReq, mem.WriteReq, and mem.AtomicReq; a request that cannot
// be serviced yet stays at the port, which is how the stall propagates back
// to the consumer. The Bottom port issues line fetches and writebacks to the
// backing memory. The Control port accepts FlushReq, InvalidateReq, and
// AbandonReq.
type Comp struct {
	*sim.TickingComponent

	topPort     sim.Port
	bottomPort  sim.Port
	controlPort sim.Port

	directory           Directory
	victimFinder        VictimFinder
	storage             *mem.Storage
	addressToPortMapper mem.AddressToPortMapper
	log2BlockSize       uint64

	state ctrlState
	trans *transaction
	flush *flushProgress
}

// TopPort returns the port that the consumer sends requests to.
func (c *Comp) TopPort() sim.Port {
	return c.topPort
}

// BottomPort returns the port that talks to the backing memory.
func (c *Comp) BottomPort() sim.Port {
	return c.bottomPort
}

// ControlPort returns the port that accepts flush, invalidate, and abandon
// requests.
func (c *Comp) ControlPort() sim.Port {
	return c.controlPort
}

// IsStalled returns true if a consumer request is being serviced and its
// response has not been produced yet.
func (c *Comp) IsStalled() bool {
	return c.state != ctrlStateReady || c.trans != nil
}

// Tick updates the state of the cache.
func (c *Comp) Tick() bool {
	madeProgress := false

	madeProgress = c.discardStaleBottomRsp() || madeProgress
	madeProgress = c.processControlPort() || madeProgress

	switch c.state {
	case ctrlStateReady:
		madeProgress = c.processReady() || madeProgress
	case ctrlStateEvictWriteback:
		madeProgress = c.processEvictWriteback() || madeProgress
	case ctrlStateFillWait:
		madeProgress = c.processFillWait() || madeProgress
	case ctrlStateFlushWriteback:
		madeProgress = c.processFlushWriteback() || madeProgress
	case ctrlStateFlushAdvance:
		madeProgress = c.processFlushAdvance() || madeProgress
	}

	return madeProgress
}

// discardStaleBottomRsp drops acknowledgements that belong to transactions
// that were discarded by an invalidation.
func (c *Comp) discardStaleBottomRsp() bool {
	msg := c.bottomPort.PeekIncoming()
	if msg == nil {
		return false
	}

	rsp, ok := msg.(sim.Rsp)
	if !ok {
		log.Panicf("cannot process msg of type %s on the bottom port",
			reflect.TypeOf(msg))
	}

	if rsp.GetRspTo() == c.expectedBusRspID() {
		return false
	}

	c.bottomPort.RetrieveIncoming()

	return true
}

func (c *Comp) expectedBusRspID() string {
	if c.trans != nil && c.trans.busReqID != "" {
		return c.trans.busReqID
	}

	if c.flush != nil && c.flush.busReqID != "" {
		return c.flush.busReqID
	}

	return ""
}

func (c *Comp) processControlPort() bool {
	item := c.controlPort.PeekIncoming()
	if item == nil {
		return false
	}

	switch req := item.(type) {
	case *InvalidateReq:
		return c.handleInvalidate(req)
	case *AbandonReq:
		return c.handleAbandon(req)
	case *FlushReq:
		return c.handleFlushReq(req)
	default:
		log.Panicf("cannot process request of type %s on the control port",
			reflect.TypeOf(req))
	}

	return false
}

// handleInvalidate marks every line invalid in one cycle, with no bus
// traffic. It takes priority over an in-flight miss or flush: the in-flight
// state is dropped. A transaction whose effect has already committed is not
// dropped; its response is still delivered.
func (c *Comp) handleInvalidate(req *InvalidateReq) bool {
	madeProgress := false

	if c.flush != nil {
		if !c.completeFlush() {
			return false
		}

		c.state = ctrlStateReady
		madeProgress = true
	}

	if !c.controlPort.CanSend() {
		// The flush response took the last slot. The invalidation stays at
		// the control port and is retried next cycle.
		return madeProgress
	}

	if c.trans != nil && !c.trans.committed {
		c.dropTransaction()
		c.state = ctrlStateReady
	}

	c.directory.Reset()

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheInvalidate,
		Item:   req,
	})

	rsp := sim.GeneralRspBuilder{}.
		WithSrc(c.controlPort.AsRemote()).
		WithDst(req.Src).
		WithOriginalReq(req).
		Build()
	c.controlPort.Send(rsp)
	c.controlPort.RetrieveIncoming()

	return true
}

// handleAbandon cancels the service of the current transaction if its effect
// has not committed yet. A committed transaction is left to finish normally.
func (c *Comp) handleAbandon(req *AbandonReq) bool {
	if !c.controlPort.CanSend() {
		return false
	}

	if c.trans != nil && !c.trans.committed {
		c.dropTransaction()
		c.state = ctrlStateReady
	}

	rsp := sim.GeneralRspBuilder{}.
		WithSrc(c.controlPort.AsRemote()).
		WithDst(req.Src).
		WithOriginalReq(req).
		Build()
	c.controlPort.Send(rsp)
	c.controlPort.RetrieveIncoming()

	return true
}

// handleFlushReq starts a flush. A flush can only start when no miss is in
// flight, unless the request asks for the in-flight transaction to be
// discarded.
func (c *Comp) handleFlushReq(req *FlushReq) bool {
	if c.trans != nil {
		if !req.DiscardInflight {
			return false
		}

		if c.trans.committed {
			return false
		}

		c.dropTransaction()
	}

	if c.flush != nil {
		return false
	}

	c.flush = &flushProgress{req: req}
	c.state = ctrlStateFlushWriteback
	c.controlPort.RetrieveIncoming()

	return true
}

// dropTransaction abandons the current transaction, leaving the serviced
// request without a response. The request is removed from the top port.
func (c *Comp) dropTransaction() {
	if c.trans == nil {
		return
	}

	if c.topPort.PeekIncoming() == c.trans.req {
		c.topPort.RetrieveIncoming()
	}

	c.trans = nil
}

func (c *Comp) processReady() bool {
	if c.trans == nil {
		return c.acceptNewRequest()
	}

	return c.serviceTransaction()
}

// acceptNewRequest observes the request at the head of the top port and runs
// the directory lookup. The request itself stays at the port until it is
// serviced, so a second consumer request is held outside the controller for
// the whole stall.
func (c *Comp) acceptNewRequest() bool {
	item := c.topPort.PeekIncoming()
	if item == nil {
		return false
	}

	req, ok := item.(mem.AccessReq)
	if !ok {
		log.Panicf("cannot process request of type %s on the top port",
			reflect.TypeOf(item))
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheAccess,
		Item:   req,
	})

	lineAddr, offset := getLineAddr(req.GetAddress(), c.log2BlockSize)
	if offset+req.GetByteSize() > c.blockSize() {
		log.Panicf("request 0x%x +%d crosses a line boundary",
			req.GetAddress(), req.GetByteSize())
	}

	trans := &transaction{req: req}
	c.trans = trans

	block, found := c.directory.Lookup(lineAddr)
	if found {
		trans.block = block
		trans.hit = true

		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosCacheHit,
			Item:   req,
		})

		c.serviceTransaction()

		return true
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheMiss,
		Item:   req,
	})

	trans.block = c.victimFinder.FindVictim(c.directory, lineAddr)
	if trans.block.IsValid && trans.block.IsDirty {
		c.state = ctrlStateEvictWriteback
	} else {
		c.state = ctrlStateFillWait
	}

	return true
}

// serviceTransaction applies the effect of the current transaction against
// its resolved block and sends the response. The effect is applied exactly
// once; if the response cannot be sent this cycle, only the send is retried.
func (c *Comp) serviceTransaction() bool {
	trans := c.trans

	if !trans.committed {
		c.commitTransaction(trans)
	}

	return c.respondTransaction(trans)
}

func (c *Comp) commitTransaction(trans *transaction) {
	block := trans.block
	_, offset := getLineAddr(trans.req.GetAddress(), c.log2BlockSize)

	switch req := trans.req.(type) {
	case *mem.ReadReq:
		data, err := c.storage.Read(
			block.CacheAddress+offset, req.AccessByteSize)
		if err != nil {
			panic(err)
		}
		trans.data = data
	case *mem.WriteReq:
		err := c.storage.Write(block.CacheAddress+offset, req.Data)
		if err != nil {
			panic(err)
		}
		block.IsDirty = true
	case *mem.AtomicReq:
		old, err := c.storage.Read(
			block.CacheAddress+offset, uint64(len(req.Data)))
		if err != nil {
			panic(err)
		}
		trans.data = old

		err = c.storage.Write(block.CacheAddress+offset, req.Data)
		if err != nil {
			panic(err)
		}
		block.IsDirty = true
	default:
		log.Panicf("cannot service request of type %s",
			reflect.TypeOf(trans.req))
	}

	c.directory.Visit(block)
	trans.committed = true

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheCommit,
		Item:   trans.req,
	})
}

func (c *Comp) respondTransaction(trans *transaction) bool {
	if !c.topPort.CanSend() {
		return false
	}

	var rsp sim.Msg
	switch trans.req.(type) {
	case *mem.ReadReq, *mem.AtomicReq:
		rsp = mem.DataReadyRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(trans.req.Meta().Src).
			WithRspTo(trans.req.Meta().ID).
			WithData(trans.data).
			Build()
	case *mem.WriteReq:
		rsp = mem.WriteDoneRspBuilder{}.
			WithSrc(c.topPort.AsRemote()).
			WithDst(trans.req.Meta().Src).
			WithRspTo(trans.req.Meta().ID).
			Build()
	}

	c.topPort.Send(rsp)
	c.topPort.RetrieveIncoming()
	c.trans = nil
	c.state = ctrlStateReady

	return true
}

// processEvictWriteback writes the dirty victim line back to the backing
// memory. The writeback is ordered strictly before the fill.
func (c *Comp) processEvictWriteback() bool {
	trans := c.trans
	victim := trans.block

	if trans.busReqID == "" {
		return c.issueWriteback(victim, &trans.busReqID)
	}

	rsp := c.peekMatchingBottomRsp(trans.busReqID)
	if rsp == nil {
		return false
	}

	if _, ok := rsp.(*mem.WriteDoneRsp); !ok {
		log.Panicf("expecting a WriteDoneRsp, got %s", reflect.TypeOf(rsp))
	}

	c.bottomPort.RetrieveIncoming()
	victim.IsDirty = false
	trans.busReqID = ""
	c.state = ctrlStateFillWait

	return true
}

// processFillWait fetches the missing line, installs it into the victim way,
// and then services the original request.
func (c *Comp) processFillWait() bool {
	trans := c.trans
	lineAddr, _ := getLineAddr(trans.req.GetAddress(), c.log2BlockSize)

	if trans.busReqID == "" {
		if !c.bottomPort.CanSend() {
			return false
		}

		fetch := mem.ReadReqBuilder{}.
			WithSrc(c.bottomPort.AsRemote()).
			WithDst(c.addressToPortMapper.Find(lineAddr)).
			WithAddress(lineAddr).
			WithByteSize(c.blockSize()).
			Build()
		c.bottomPort.Send(fetch)
		trans.busReqID = fetch.ID

		return true
	}

	rsp := c.peekMatchingBottomRsp(trans.busReqID)
	if rsp == nil {
		return false
	}

	dataReady, ok := rsp.(*mem.DataReadyRsp)
	if !ok {
		log.Panicf("expecting a DataReadyRsp, got %s", reflect.TypeOf(rsp))
	}

	c.bottomPort.RetrieveIncoming()

	block := trans.block
	err := c.storage.Write(block.CacheAddress, dataReady.Data)
	if err != nil {
		panic(err)
	}

	block.Tag = lineAddr
	block.IsValid = true
	block.IsDirty = false
	trans.busReqID = ""
	c.directory.Visit(block)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheFill,
		Item:   block,
	})

	c.state = ctrlStateReady
	c.serviceTransaction()

	return true
}

// processFlushWriteback writes back the line under the flush cursor if it is
// dirty, then moves on to advancing the cursor.
func (c *Comp) processFlushWriteback() bool {
	flush := c.flush
	block := c.directory.GetSets()[flush.setID].Blocks[flush.wayID]

	if flush.busReqID == "" {
		if !block.IsValid || !block.IsDirty {
			c.state = ctrlStateFlushAdvance
			return true
		}

		return c.issueWriteback(block, &flush.busReqID)
	}

	rsp := c.peekMatchingBottomRsp(flush.busReqID)
	if rsp == nil {
		return false
	}

	if _, ok := rsp.(*mem.WriteDoneRsp); !ok {
		log.Panicf("expecting a WriteDoneRsp, got %s", reflect.TypeOf(rsp))
	}

	c.bottomPort.RetrieveIncoming()
	block.IsDirty = false
	flush.busReqID = ""
	c.state = ctrlStateFlushAdvance

	return true
}

// processFlushAdvance moves the flush cursor to the next (set, way) pair,
// lowest indexes first, and completes the flush once every pair has been
// visited.
func (c *Comp) processFlushAdvance() bool {
	flush := c.flush

	nextWay := flush.wayID + 1
	nextSet := flush.setID
	if nextWay == c.directory.WayAssociativity() {
		nextWay = 0
		nextSet++
	}

	if nextSet < c.directory.NumSets() {
		flush.setID = nextSet
		flush.wayID = nextWay
		c.state = ctrlStateFlushWriteback

		return true
	}

	if !c.completeFlush() {
		return false
	}

	c.state = ctrlStateReady

	return true
}

// completeFlush sends the flush response and retires the flush. It returns
// false when the response cannot be sent this cycle.
func (c *Comp) completeFlush() bool {
	flush := c.flush

	if !c.controlPort.CanSend() {
		return false
	}

	if flush.req.InvalidateAllCachelines {
		c.directory.Reset()
	}

	rsp := sim.GeneralRspBuilder{}.
		WithSrc(c.controlPort.AsRemote()).
		WithDst(flush.req.Src).
		WithOriginalReq(flush.req).
		Build()
	c.controlPort.Send(rsp)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheFlushDone,
		Item:   flush.req,
	})

	c.flush = nil

	return true
}

func (c *Comp) issueWriteback(block *Block, busReqID *string) bool {
	if !c.bottomPort.CanSend() {
		return false
	}

	data, err := c.storage.Read(block.CacheAddress, c.blockSize())
	if err != nil {
		panic(err)
	}

	wb := mem.WriteReqBuilder{}.
		WithSrc(c.bottomPort.AsRemote()).
		WithDst(c.addressToPortMapper.Find(block.Tag)).
		WithAddress(block.Tag).
		WithData(data).
		Build()
	c.bottomPort.Send(wb)
	*busReqID = wb.ID

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosCacheWriteback,
		Item:   wb,
	})

	return true
}

// peekMatchingBottomRsp returns the response at the head of the bottom port
// if it acknowledges the given request.
func (c *Comp) peekMatchingBottomRsp(reqID string) sim.Msg {
	msg := c.bottomPort.PeekIncoming()
	if msg == nil {
		return nil
	}

	rsp, ok := msg.(sim.Rsp)
	if !ok || rsp.GetRspTo() != reqID {
		return nil
	}

	return msg
}

func (c *Comp) blockSize() uint64 {
	return uint64(1) << c.log2BlockSize
}
