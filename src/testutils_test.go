package otkernel

import (
	"github.com/stretchr/testify/require"
)

/*
 * Radio that does nothing on its own.  Every call is recorded, TxCSMA
 * answers from a script, and completions are posted by the test.  The
 * one exception is RxTimeout, which completes the armed listen at once.
 */

type fakeRadio struct {
	sink  EventSink
	calls []string
	armed RadioCallback

	csmaCodes   []int /* Returned in order, then RADIO_CSMA_DONE. */
	rssi        int
	frame       []byte
	packetTicks int /* Fixed packet duration when > 0. */
	tgd         int
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{rssi: -60, tgd: 5}
}

func (r *fakeRadio) record(call string) {
	r.calls = append(r.calls, call)
}

func (r *fakeRadio) count(call string) int {
	var n = 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}

	return n
}

func (r *fakeRadio) Attach(sink EventSink) { r.sink = sink }

func (r *fakeRadio) start(call string, cb RadioCallback) {
	r.record(call)
	r.armed = cb
}

func (r *fakeRadio) RxInitBackground(_ uint8, cb RadioCallback)     { r.start("rx-bg", cb) }
func (r *fakeRadio) RxInitForeground(_ uint8, cb RadioCallback)     { r.start("rx-fg", cb) }
func (r *fakeRadio) TxInitBackground(_ TxRequest, cb RadioCallback) { r.start("tx-bg", cb) }
func (r *fakeRadio) TxInitForeground(_ TxRequest, cb RadioCallback) { r.start("tx-fg", cb) }

func (r *fakeRadio) TxCSMA() int {
	r.record("csma")

	if len(r.csmaCodes) == 0 {
		return RADIO_CSMA_DONE
	}

	var code = r.csmaCodes[0]
	r.csmaCodes = r.csmaCodes[1:]

	return code
}

func (r *fakeRadio) RxTimeout() {
	r.record("rx-timeout")

	if r.sink != nil {
		r.sink.Post(Event{
			Kind:     EVENT_RADIO_DONE,
			Callback: r.armed,
			Code:     IfThenElse(r.armed == CALLBACK_BSCAN, RADIO_BSCAN_TIMEOUT, RADIO_RX_TIMEOUT),
		})
	}
}

func (r *fakeRadio) PrepResend()   { r.record("resend") }
func (r *fakeRadio) ReenterRx(int) { r.record("reenter") }
func (r *fakeRadio) TxStopFlood()  { r.record("stop-flood") }
func (r *fakeRadio) Kill()         { r.record("kill") }
func (r *fakeRadio) Sleep()        { r.record("sleep") }
func (r *fakeRadio) Gag()          { r.record("gag") }

func (r *fakeRadio) RSSI() int            { return r.rssi }
func (r *fakeRadio) RxFrame() []byte      { return r.frame }
func (r *fakeRadio) DefaultTgd(uint8) int { return r.tgd }

func (r *fakeRadio) PacketDuration(length int) int {
	if r.packetTicks > 0 {
		return r.packetTicks
	}

	return 1 + length/8
}

// Platform whose random numbers can be pinned.
type testPlatform struct {
	*SimPlatform

	fixed16 int /* Rand16 result when >= 0. */
}

func (p *testPlatform) Rand16() uint16 {
	if p.fixed16 >= 0 {
		return uint16(p.fixed16) //nolint:gosec
	}

	return p.SimPlatform.Rand16()
}

type recordingSignals struct {
	NopSignals

	loadApp      func(ctl Control) bool
	terminations [][2]int
	inits        []int
	panics       []int
	prestarts    []IdleClass
	extCalls     int
}

func (s *recordingSignals) LoadApp(ctl Control) bool {
	if s.loadApp != nil {
		return s.loadApp(ctl)
	}

	return false
}

func (s *recordingSignals) Panic(code int)               { s.panics = append(s.panics, code) }
func (s *recordingSignals) RFAInit(phase int)            { s.inits = append(s.inits, phase) }
func (s *recordingSignals) IdlePrestart(class IdleClass) { s.prestarts = append(s.prestarts, class) }
func (s *recordingSignals) RFATerminate(phase int, code int) {
	s.terminations = append(s.terminations, [2]int{phase, code})
}

func (s *recordingSignals) ExtProcess(ctl Control) {
	s.extCalls++
	ctl.SetExternalEvent(0, 0)
}

type testRig struct {
	k        *Kernel
	radio    *fakeRadio
	platform *testPlatform
	network  *SimNetwork
	signals  *recordingSignals
	store    *MemoryStore
}

// A device that holds forever with nothing to scan, unless the config says otherwise.
func quietConfig() *Config {
	var c = DefaultConfig()
	c.HoldScan = nil
	c.SleepScan = nil

	return c
}

type testingT interface {
	require.TestingT
	Helper()
}

func newTestRig(t testingT, cfg *Config, tweak ...func(*KernelOptions)) *testRig {
	t.Helper()

	if cfg == nil {
		cfg = quietConfig()
	}

	var rig = &testRig{
		radio:    newFakeRadio(),
		platform: &testPlatform{SimPlatform: NewSimPlatform(1), fixed16: -1},
		network:  NewSimNetwork(0),
		signals:  new(recordingSignals),
		store:    cfg.ISF(),
	}

	var opts = KernelOptions{
		Radio:    rig.radio,
		Platform: rig.platform,
		Network:  rig.network,
		Store:    rig.store,
		Signals:  rig.signals,
		PhyMac:   cfg.KernelPhyMac(),
		Features: cfg.KernelFeatures(),
	}

	for _, f := range tweak {
		f(&opts)
	}

	rig.k = NewKernel(opts)
	require.NoError(t, rig.k.Init())

	return rig
}

// Build a request frame the way SimNetwork expects it.
func requestFrame(subnet uint8, eirpDBm int, flags uint8, window uint8) []byte {
	var data = encodeFrameHeader(&frameHeader{TxEIRP: EncodeEIRP(eirpDBm), Subnet: subnet})
	data = append(data, 0x42, flags, window, 0xAA)
	data[0] = byte(len(data))

	return data
}
