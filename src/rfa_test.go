package otkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func radioDone(k *Kernel, cb RadioCallback, code int, aux int) {
	k.Post(Event{Kind: EVENT_RADIO_DONE, Callback: cb, Code: code, Aux: aux})
	k.drainEvents()
}

// Idle device, foreground scan running on channel 0x10.
func listeningRig(t *testing.T) *testRig {
	t.Helper()

	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sys.idle[IDLE_HOLD].eventNo = 0
	k.dll.comm.RxTimeout = 16
	k.dll.comm.RxChannels = []uint8{0x10}
	k.sessions.New(0, NETSTATE_REQRX|NETSTATE_INIT, 0x10)

	require.Equal(t, 16, k.EventManager(0))
	require.Equal(t, PHASE_FRX, k.sys.rfa.phase)
	require.Equal(t, 1, rig.radio.count("rx-fg"))

	return rig
}

func TestRequestFrameGetsResponse(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k
	rig.platform.fixed16 = 5

	rig.radio.frame = requestFrame(0xF0, 0, 0, 40)
	k.Post(Event{Kind: EVENT_RADIO_DATA})
	k.Post(Event{Kind: EVENT_RADIO_DONE, Callback: CALLBACK_FRX})

	// Frame accepted: processing, then the response session starts contending.
	assert.Equal(t, 5, k.EventManager(3))

	assert.Equal(t, 1, rig.network.Stats.Requests)
	assert.Equal(t, 1, k.Stats().Dispatched[TASK_PROCESSING])
	assert.Equal(t, PHASE_FTX_INIT, k.sys.rfa.phase)
	assert.Equal(t, 1, rig.radio.count("tx-fg"))

	var s, ok = k.TopSession()
	require.True(t, ok)
	assert.Equal(t, NETSTATE_RESPTX, s.role())
	assert.Equal(t, uint8(0x42), s.DialogID)

	assert.Equal(t, CSMACA_RAIND, k.dll.comm.CSMAParams)
	assert.Equal(t, 40, k.dll.comm.Tc)
	assert.Equal(t, 40, k.dll.comm.Tca)
	assert.Equal(t, 1, k.dll.comm.Redundants)

	var hdr, err = decodeFrameHeader(k.txq.Bytes())
	require.NoError(t, err)
	assert.Equal(t, SIM_CTRL_RESPONSE, hdr.Control)
	assert.Equal(t, uint8(k.txq.Len()), hdr.Length) //nolint:gosec

	assert.Equal(t, [][2]int{{RFA_TERM_FRX, 0}}, rig.signals.terminations)
}

func TestRejectedFrameKeepsListening(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k

	rig.radio.frame = requestFrame(0xF0, 0, 0, 40)
	rig.radio.rssi = -120

	k.Post(Event{Kind: EVENT_RADIO_DATA})
	radioDone(k, CALLBACK_FRX, 0, 0)

	assert.Equal(t, PHASE_FRX, k.sys.rfa.phase)
	assert.Equal(t, 1, rig.radio.count("reenter"))
	assert.Zero(t, k.sys.mutex&(MUTEX_PROCESSING|MUTEX_RADIO_DATA))
	assert.Equal(t, 1, k.stats.FilterRejects)
	assert.Empty(t, rig.signals.terminations)
}

func TestBadCRCKeepsListening(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k

	k.sessions.Top().Datastream = true
	rig.radio.frame = requestFrame(0xF0, 0, 0, 40)

	radioDone(k, CALLBACK_FRX, 0, 1)

	assert.Equal(t, PHASE_FRX, k.sys.rfa.phase)
	assert.Equal(t, 1, rig.radio.count("reenter"))
	assert.Equal(t, 1, rig.network.Stats.DatastreamMarks)
}

func TestListenTimeout(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k

	// Nothing heard: the software timeout stops the radio, the session is
	// scrapped and popped, and the hold scan finds nothing to do.
	assert.Equal(t, ETA_NEVER, k.EventManager(16))
	assert.Equal(t, 1, rig.radio.count("rx-timeout"))

	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, -1, k.sessions.Count())
	assert.Equal(t, [][2]int{{RFA_TERM_FRX, 0}}, rig.signals.terminations)
}

func TestListenTimeout_Scraps(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k

	radioDone(k, CALLBACK_FRX, RADIO_RX_TIMEOUT, 0)

	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, NETSTATE_SCRAP, k.sessions.Top().Netstate)
}

func TestListenTimeout_Redundant(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k
	k.dll.comm.Redundants = 1

	radioDone(k, CALLBACK_FRX, RADIO_RX_TIMEOUT, 0)

	assert.Equal(t, NETSTATE_REQTX|NETSTATE_INIT|NETSTATE_FIRSTRX, k.sessions.Top().Netstate)
}

func TestListenTimeout_A2PSwapsRole(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k
	k.dll.comm.CSMAParams = CSMACA_A2P

	radioDone(k, CALLBACK_FRX, RADIO_RX_TIMEOUT, 0)

	assert.Equal(t, NETSTATE_RESPTX, k.sessions.Top().role())
}

func TestA2PForcesTimeoutWhileReceiving(t *testing.T) {
	var rig = listeningRig(t)
	var k = rig.k
	k.dll.comm.CSMAParams = CSMACA_A2P

	k.Post(Event{Kind: EVENT_RADIO_DATA})
	k.EventManager(16)

	assert.Equal(t, 1, rig.radio.count("rx-timeout"))
	require.NotEmpty(t, rig.signals.terminations)
	assert.Equal(t, [2]int{RFA_TERM_FRX, 0}, rig.signals.terminations[0])

	// The listen turned into a response.
	assert.Equal(t, 1, rig.radio.count("tx-fg"))
}

func TestFRXWithoutSession(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sys.rfa.phase = PHASE_FRX
	k.sys.mutex = MUTEX_RADIO_LISTEN

	radioDone(k, CALLBACK_FRX, 0, 0)

	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, uint8(0), k.sys.mutex)
	assert.Len(t, rig.signals.terminations, 1)
}

func TestBackgroundScan(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.dll.comm.RxTimeout = 8
	k.dll.comm.RxChannels = []uint8{0x14}
	k.dll.comm.Redundants = 1
	k.sessions.New(0, NETSTATE_REQRX|NETSTATE_INIT|NETSTATE_FLOOD, 0x14)

	k.sysevtBscan()
	assert.Equal(t, PHASE_BSCAN, k.sys.rfa.phase)
	assert.Equal(t, 8, k.sys.rfa.nextEvent)

	// One retry on a CRC error, then give up.
	radioDone(k, CALLBACK_BSCAN, RADIO_BSCAN_RETRY, 0)
	assert.Equal(t, 2, rig.radio.count("rx-bg"))
	assert.Equal(t, PHASE_BSCAN, k.sys.rfa.phase)

	radioDone(k, CALLBACK_BSCAN, RADIO_BSCAN_RETRY, 0)
	assert.Equal(t, 2, rig.radio.count("rx-bg"))
	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, -1, k.sessions.Count())
	assert.Equal(t, [][2]int{{RFA_TERM_BSCAN, RADIO_BSCAN_RETRY}}, rig.signals.terminations)
}

func TestBackgroundScan_FloodHeard(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.dll.comm.RxChannels = []uint8{0x14}
	k.sessions.New(0, NETSTATE_REQRX|NETSTATE_INIT|NETSTATE_FLOOD, 0x14)
	k.sysevtBscan()

	rig.radio.frame = []byte{5, EncodeEIRP(0), 0xF0, 0x01, 0x00}
	radioDone(k, CALLBACK_BSCAN, 0, 0)

	// The scan session is gone, the one for the advertised request is waiting.
	var s = k.sessions.Top()
	require.NotNil(t, s)
	assert.Equal(t, 256, s.Counter)
	assert.Equal(t, NETSTATE_REQRX|NETSTATE_INIT, s.Netstate)
	assert.Equal(t, SIM_FLOOD_RX_TIMEOUT, k.dll.comm.RxTimeout)
	assert.Equal(t, uint8(0), k.sys.mutex)
	assert.Equal(t, 1, rig.network.Stats.Background)
}

func TestBackgroundScan_Rejected(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sessions.New(0, NETSTATE_REQRX|NETSTATE_FLOOD, 0x14)
	k.sysevtBscan()

	rig.radio.frame = []byte{5, EncodeEIRP(0), 0x30, 0x01, 0x00}
	k.dll.netconf.Subnet = 0x20
	radioDone(k, CALLBACK_BSCAN, 0, 0)

	assert.Equal(t, 0, rig.network.Stats.Background)
	assert.Equal(t, 1, k.stats.FilterRejects)
}

func txRig(t *testing.T) *testRig {
	t.Helper()

	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sys.idle[IDLE_HOLD].eventNo = 0
	k.sessions.New(0, NETSTATE_REQTX|NETSTATE_INIT, 0x10)
	k.dll.comm.TxChannels = []uint8{0x10}
	k.dll.comm.Tc = 100
	k.dll.comm.Redundants = 1
	k.dll.comm.CSMAParams = CSMACA_MACCA

	return rig
}

func TestRedundancyExhaustedScrapsSession(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k

	k.sysevtInitFTX()
	k.sysevtTxCSMA()
	assert.Equal(t, PHASE_TX_DATA, k.sys.rfa.phase)

	k.dll.comm.RxTimeout = 0
	radioDone(k, CALLBACK_FTX, 0, 0)

	var s = k.sessions.Top()
	require.NotNil(t, s)
	assert.Equal(t, 0, k.dll.comm.Redundants)
	assert.NotZero(t, s.Netstate&NETSTATE_SCRAP)
	assert.Equal(t, NETSTATE_RESPRX, s.role())
	assert.Equal(t, 0, rig.radio.count("resend"))
	assert.Equal(t, [][2]int{{RFA_TERM_TX, 0}}, rig.signals.terminations)
	assert.True(t, rig.platform.TakePreempt())
}

func TestRedundantCopiesResend(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k
	k.dll.comm.Redundants = 3
	k.dll.comm.RxTimeout = 0

	k.sysevtInitFTX()
	k.sysevtTxCSMA()
	radioDone(k, CALLBACK_FTX, 0, 0)

	assert.Equal(t, 1, rig.radio.count("resend"))
	assert.Equal(t, 2, k.dll.comm.Redundants)
	assert.Equal(t, CSMACA_NOCSMA|CSMACA_MACCA, k.dll.comm.CSMAParams)
	assert.Zero(t, k.sessions.Top().Netstate&NETSTATE_SCRAP)
}

func TestRequestWaitsForResponse(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k
	k.dll.comm.RxTimeout = 20

	k.sysevtInitFTX()
	k.sysevtTxCSMA()
	radioDone(k, CALLBACK_FTX, 0, 0)

	var s = k.sessions.Top()
	assert.Equal(t, NETSTATE_RESPRX, s.role())
	assert.Zero(t, s.Netstate&NETSTATE_SCRAP)
}

func TestMultiframeTxKeepsGoing(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k

	k.sysevtInitFTX()
	k.sysevtTxCSMA()
	radioDone(k, CALLBACK_FTX, 1, 0)

	assert.Equal(t, PHASE_TX_DATA, k.sys.rfa.phase)
	assert.Empty(t, rig.signals.terminations)
}

func TestCSMABusyBacksOff(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k
	rig.radio.csmaCodes = []int{RADIO_ERR_CCAFAIL, 7}

	k.sysevtInitFTX()

	k.sysevtTxCSMA()
	assert.Equal(t, k.phymac.Tg, k.sys.rfa.nextEvent)
	assert.Equal(t, PHASE_FTX_INIT, k.sys.rfa.phase)

	k.sysevtTxCSMA()
	assert.Equal(t, 7, k.sys.rfa.nextEvent)

	k.sysevtTxCSMA()
	assert.Equal(t, PHASE_TX_DATA, k.sys.rfa.phase)
	assert.Equal(t, MUTEX_RADIO_DATA, k.sys.mutex)
}

func TestCSMAExhausted(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k

	k.sysevtInitFTX()
	k.dll.comm.Tca = -1
	k.sysevtTxCSMA()

	assert.Equal(t, 0, rig.radio.count("csma"))
	assert.Equal(t, [][2]int{{RFA_TERM_CSMA, CSMA_ERR_EXHAUSTED}}, rig.signals.terminations)
	assert.Equal(t, -1, k.sessions.Count())
	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, 1, k.stats.CSMAFailures)
}

func TestCSMABadChannel(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k
	rig.radio.csmaCodes = []int{RADIO_ERR_BADCHANNEL}

	k.sysevtInitFTX()
	k.sysevtTxCSMA()

	assert.Equal(t, [][2]int{{RFA_TERM_CSMA, RADIO_ERR_BADCHANNEL}}, rig.signals.terminations)
	assert.Equal(t, -1, k.sessions.Count())
}

func TestResponseScramblesChannels(t *testing.T) {
	var rig = txRig(t)
	var k = rig.k

	k.sessions.Top().Netstate = NETSTATE_RESPTX
	k.dll.comm.TxChannels = []uint8{1, 2, 3, 4, 5}

	k.sysevtInitFTX()

	assert.ElementsMatch(t, []uint8{1, 2, 3, 4, 5}, k.dll.comm.TxChannels)
	assert.Equal(t, []int{int(PHASE_FTX_INIT)}, rig.signals.inits)
}

func TestFlood(t *testing.T) {
	var cfg = quietConfig()
	var rig = newTestRig(t, cfg)
	var k = rig.k
	rig.radio.packetTicks = 4
	k.sys.idle[IDLE_HOLD].eventNo = 0

	var id = k.NewSession(SessionTemplate{Channel: 0x10, Timeout: 50})
	require.NotZero(t, id)
	require.True(t, k.OpenRequest(0x40, nil))
	require.True(t, k.CloseRequest())
	var request = append([]byte(nil), k.txq.Bytes()...)

	// Straight through CSMA into the flood, which runs for the advertising time.
	assert.Equal(t, 100, k.StartFlood(100))
	assert.Equal(t, PHASE_FLOOD_DATA, k.sys.rfa.phase)
	assert.Equal(t, 1, rig.radio.count("tx-bg"))
	assert.Equal(t, []byte{5, rig.network.EIRP, 0xF0, 0, 100}, k.txq.Bytes())

	k.sys.rfa.nextEvent = 60
	radioDone(k, CALLBACK_BTX, RADIO_FLOOD_CONTINUES, 0)
	assert.Equal(t, []byte{5, rig.network.EIRP, 0xF0, 0, 60}, k.txq.Bytes())

	k.sys.rfa.nextEvent = 3
	radioDone(k, CALLBACK_BTX, RADIO_FLOOD_CONTINUES, 0)
	assert.Equal(t, 1, rig.radio.count("stop-flood"))

	radioDone(k, CALLBACK_BTX, RADIO_FLOOD_END, 0)
	assert.Equal(t, request, k.txq.Bytes())
	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, 2, k.dll.comm.Tc)
	assert.Equal(t, CSMACA_NOCSMA|CSMACA_MACCA, k.dll.comm.CSMAParams)
	assert.Equal(t, 1, k.dll.comm.Redundants)
	assert.Equal(t, 0, k.sessions.Top().Counter)
	assert.Equal(t, [][2]int{{RFA_TERM_FLOOD, 0}}, rig.signals.terminations)
}

func TestFloodError(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sys.rfa.phase = PHASE_FLOOD_DATA
	radioDone(k, CALLBACK_BTX, RADIO_ERR_KILLED, 0)

	assert.Equal(t, PHASE_IDLE, k.sys.rfa.phase)
	assert.Equal(t, [][2]int{{RFA_TERM_FLOOD, RADIO_ERR_KILLED}}, rig.signals.terminations)
}

func TestUnknownCallback(t *testing.T) {
	var rig = newTestRig(t, nil)

	radioDone(rig.k, CALLBACK_NONE, 0, 0)
	radioDone(rig.k, RadioCallback(42), 0, 0)

	assert.Empty(t, rig.signals.terminations)
	assert.Equal(t, "callback(42)", RadioCallback(42).String())
}
