package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sablelab/cachesim/mem"
	"github.com/sablelab/cachesim/mem/simplemem"
	"github.com/sablelab/cachesim/sim"
)

// writebackRecorder remembers the address of every writeback in the order the
// writebacks were issued.
type writebackRecorder struct {
	addresses []uint64
}

func (r *writebackRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosCacheWriteback {
		return
	}

	wb := ctx.Item.(*mem.WriteReq)
	r.addresses = append(r.addresses, wb.Address)
}

var _ = Describe("Cache Controller Integration", func() {
	var (
		mockCtrl  *gomock.Controller
		engine    *sim.SerialEngine
		conn      *sim.DirectConnection
		agentPort *MockPort
		dram      *simplemem.Comp
		cacheComp *Comp
		tracer    *StatsTracer
		recorder  *writebackRecorder
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = sim.NewSerialEngine()
		conn = sim.NewDirectConnection("Conn", engine, 1*sim.GHz)

		dram = simplemem.MakeBuilder().
			WithEngine(engine).
			WithLatency(8).
			WithNewStorage(4 * mem.MB).
			Build("DRAM")

		cacheComp = MakeBuilder().
			WithEngine(engine).
			WithByteSize(1 * mem.KB).
			WithAddressToPortMapper(&mem.SinglePortMapper{
				Port: dram.GetPortByName("Top").AsRemote(),
			}).
			Build("Cache")

		tracer = &StatsTracer{}
		cacheComp.AcceptHook(tracer)
		recorder = &writebackRecorder{}
		cacheComp.AcceptHook(recorder)

		agentPort = NewMockPort(mockCtrl)
		agentPort.EXPECT().SetConnection(gomock.Any()).AnyTimes()
		agentPort.EXPECT().AsRemote().
			Return(sim.RemotePort("Agent.Port")).
			AnyTimes()
		agentPort.EXPECT().PeekOutgoing().Return(nil).AnyTimes()
		agentPort.EXPECT().NotifyAvailable().AnyTimes()

		conn.PlugIn(agentPort)
		conn.PlugIn(cacheComp.topPort)
		conn.PlugIn(cacheComp.bottomPort)
		conn.PlugIn(cacheComp.controlPort)
		conn.PlugIn(dram.GetPortByName("Top"))
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	write := func(addr uint64, data []byte) {
		req := mem.WriteReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.topPort.AsRemote()).
			WithAddress(addr).
			WithData(data).
			Build()

		agentPort.EXPECT().
			Deliver(gomock.Any()).
			Do(func(wd *mem.WriteDoneRsp) {
				Expect(wd.RespondTo).To(Equal(req.ID))
			}).
			Return(nil)

		sendErr := cacheComp.topPort.Deliver(req)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())
	}

	read := func(addr uint64, size uint64, expected []byte) {
		req := mem.ReadReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.topPort.AsRemote()).
			WithAddress(addr).
			WithByteSize(size).
			Build()

		agentPort.EXPECT().
			Deliver(gomock.Any()).
			Do(func(dr *mem.DataReadyRsp) {
				Expect(dr.RespondTo).To(Equal(req.ID))
				Expect(dr.Data).To(Equal(expected))
			}).
			Return(nil)

		sendErr := cacheComp.topPort.Deliver(req)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())
	}

	It("should fill on a write miss and hit on the read back", func() {
		write(0x1040, []byte{1, 2, 3, 4})

		Expect(tracer.Misses).To(Equal(uint64(1)))
		Expect(tracer.Fills).To(Equal(uint64(1)))
		Expect(tracer.Writebacks).To(Equal(uint64(0)))

		// Write-back: the backing memory must not see the data yet.
		data, err := dram.Storage.Read(0x1040, 4)
		Expect(err).To(BeNil())
		Expect(data).To(Equal([]byte{0, 0, 0, 0}))

		read(0x1040, 4, []byte{1, 2, 3, 4})

		Expect(tracer.Hits).To(Equal(uint64(1)))
		Expect(tracer.Fills).To(Equal(uint64(1)))
	})

	It("should serve the data that the backing memory holds", func() {
		err := dram.Storage.Write(0x2000, []byte{0xDE, 0xAD, 0xBE, 0xEF})
		Expect(err).To(BeNil())

		read(0x2000, 4, []byte{0xDE, 0xAD, 0xBE, 0xEF})

		Expect(tracer.Misses).To(Equal(uint64(1)))
	})

	It("should evict the least recently used line of a full set", func() {
		// All five addresses map to set 0 of the 4-way, 4-set cache.
		write(0x000, []byte{0xAA, 0xBB})
		read(0x100, 2, []byte{0, 0})
		read(0x200, 2, []byte{0, 0})
		read(0x300, 2, []byte{0, 0})

		Expect(tracer.Writebacks).To(Equal(uint64(0)))

		read(0x400, 2, []byte{0, 0})

		Expect(tracer.Writebacks).To(Equal(uint64(1)))
		Expect(recorder.addresses).To(Equal([]uint64{0x000}))

		data, err := dram.Storage.Read(0x000, 2)
		Expect(err).To(BeNil())
		Expect(data).To(Equal([]byte{0xAA, 0xBB}))

		// The rest of the set still hits.
		read(0x100, 2, []byte{0, 0})
		Expect(tracer.Misses).To(Equal(uint64(5)))

		// The evicted line must miss again.
		read(0x000, 2, []byte{0xAA, 0xBB})
		Expect(tracer.Misses).To(Equal(uint64(6)))
	})

	It("should fill a missing line before an atomic access", func() {
		err := dram.Storage.Write(0x300, []byte{1, 2, 3, 4})
		Expect(err).To(BeNil())

		atomic := mem.AtomicReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.topPort.AsRemote()).
			WithAddress(0x300).
			WithData([]byte{9, 8, 7, 6}).
			Build()

		agentPort.EXPECT().
			Deliver(gomock.Any()).
			Do(func(dr *mem.DataReadyRsp) {
				Expect(dr.RespondTo).To(Equal(atomic.ID))
				Expect(dr.Data).To(Equal([]byte{1, 2, 3, 4}))
			}).
			Return(nil)

		sendErr := cacheComp.topPort.Deliver(atomic)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())

		Expect(tracer.Misses).To(Equal(uint64(1)))
		Expect(tracer.Fills).To(Equal(uint64(1)))

		read(0x300, 4, []byte{9, 8, 7, 6})
	})

	It("should hold a second request while the first is serviced", func() {
		req1 := mem.WriteReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.topPort.AsRemote()).
			WithAddress(0x000).
			WithData([]byte{1}).
			Build()
		req2 := mem.WriteReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.topPort.AsRemote()).
			WithAddress(0x100).
			WithData([]byte{2}).
			Build()

		agentPort.EXPECT().Deliver(gomock.Any()).Return(nil)

		sendErr := cacheComp.topPort.Deliver(req1)
		Expect(sendErr).To(BeNil())

		sendErr = cacheComp.topPort.Deliver(req2)
		Expect(sendErr).NotTo(BeNil())

		Expect(engine.Run()).To(Succeed())

		agentPort.EXPECT().Deliver(gomock.Any()).Return(nil)

		sendErr = cacheComp.topPort.Deliver(req2)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())
	})

	It("should write back exactly the dirty lines on a flush", func() {
		write(0x000, []byte{1, 1})
		write(0x140, []byte{2, 2})
		read(0x200, 2, []byte{0, 0})

		flush := FlushReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.controlPort.AsRemote()).
			Build()

		agentPort.EXPECT().
			Deliver(gomock.Any()).
			Do(func(rsp *sim.GeneralRsp) {
				Expect(rsp.OriginalReq).To(BeIdenticalTo(flush))
			}).
			Return(nil)

		sendErr := cacheComp.controlPort.Deliver(flush)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())

		Expect(tracer.Writebacks).To(Equal(uint64(2)))
		Expect(tracer.Flushes).To(Equal(uint64(1)))

		// Ascending (set, way) order: 0x000 lives in set 0, 0x140 in set 1.
		Expect(recorder.addresses).To(Equal([]uint64{0x000, 0x140}))

		data, err := dram.Storage.Read(0x000, 2)
		Expect(err).To(BeNil())
		Expect(data).To(Equal([]byte{1, 1}))

		data, err = dram.Storage.Read(0x140, 2)
		Expect(err).To(BeNil())
		Expect(data).To(Equal([]byte{2, 2}))

		// Without the invalidate option, the lines are retained.
		read(0x000, 2, []byte{1, 1})
		Expect(tracer.Misses).To(Equal(uint64(3)))

		// A second flush has nothing left to write back.
		flush2 := FlushReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.controlPort.AsRemote()).
			Build()
		agentPort.EXPECT().Deliver(gomock.Any()).Return(nil)

		sendErr = cacheComp.controlPort.Deliver(flush2)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())

		Expect(tracer.Writebacks).To(Equal(uint64(2)))
	})

	It("should miss again after a flush that invalidates", func() {
		write(0x000, []byte{5, 5})

		flush := FlushReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.controlPort.AsRemote()).
			InvalidateAllCacheLines().
			Build()
		agentPort.EXPECT().Deliver(gomock.Any()).Return(nil)

		sendErr := cacheComp.controlPort.Deliver(flush)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())

		// The flushed data survives in the backing memory.
		read(0x000, 2, []byte{5, 5})
		Expect(tracer.Misses).To(Equal(uint64(2)))
	})

	It("should discard dirty data on an invalidation", func() {
		write(0x000, []byte{7, 7})

		invalidate := InvalidateReqBuilder{}.
			WithSrc(agentPort.AsRemote()).
			WithDst(cacheComp.controlPort.AsRemote()).
			Build()

		agentPort.EXPECT().
			Deliver(gomock.Any()).
			Do(func(rsp *sim.GeneralRsp) {
				Expect(rsp.OriginalReq).To(BeIdenticalTo(invalidate))
			}).
			Return(nil)

		sendErr := cacheComp.controlPort.Deliver(invalidate)
		Expect(sendErr).To(BeNil())
		Expect(engine.Run()).To(Succeed())

		Expect(tracer.Writebacks).To(Equal(uint64(0)))

		// The dirty data is gone; the read brings back the stale bytes.
		read(0x000, 2, []byte{0, 0})
		Expect(tracer.Misses).To(Equal(uint64(2)))
	})
})
