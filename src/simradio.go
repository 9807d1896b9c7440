package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Simulated Mode 2 radio.
 *
 * Description:	Runs on the SimPlatform clock.  Frames to be heard are
 *		injected ahead of time with the tick they start at; a frame
 *		is only heard when the radio is listening on its channel, in
 *		the right mode, when it starts.
 *
 *		Frames go over the air with a CRC16-CCITT appended, big
 *		endian.  The receiver checks it, so a frame injected with
 *		a bad CRC is reported as such.
 *
 *		CCA fails at random, CCABusyPercent of the time.
 *
 *		Tick must be called every time the clock moves.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"math/rand"
	"slices"

	"github.com/snksoft/crc"
)

// Over the air bit rate and per frame overhead (preamble + sync), bits.
const (
	SIM_BITRATE        = 55555
	SIM_FRAME_OVERHEAD = 64
	SIM_DEFAULT_RSSI   = -60
)

type SimFrame struct {
	At         int
	Channel    uint8
	Background bool
	BadCRC     bool
	RSSI       int
	Data       []byte /* Frame without CRC. */
}

type simRadioState int

const (
	SIM_OFF simRadioState = iota
	SIM_RX_BACKGROUND
	SIM_RX_FOREGROUND
	SIM_TX_CSMA
	SIM_TX_DATA
	SIM_FLOOD
)

type SimRadioStats struct {
	FramesHeard   int
	FramesMissed  int
	CRCErrors     int
	CCAFails      int
	Transmissions int
	Kills         int
}

type SimRadio struct {
	platform *SimPlatform
	sink     EventSink
	rng      *rand.Rand

	CCABusyPercent int

	state   simRadioState
	channel uint8
	cb      RadioCallback
	txReq   TxRequest

	traffic   []SimFrame /* Sorted by At. */
	arriving  *SimFrame
	arrivesAt int /* Tick the arriving frame is complete. */
	rxFrame   []byte
	rssi      int

	txDoneAt int

	Sent  [][]byte /* Every frame transmitted, with CRC. */
	Stats SimRadioStats
}

func NewSimRadio(p *SimPlatform, seed int64) *SimRadio {
	return &SimRadio{
		platform: p,
		rng:      rand.New(rand.NewSource(seed)), //nolint:gosec
		rssi:     SIM_DEFAULT_RSSI,
	}
}

func simCRC(data []byte) uint16 {
	return uint16(crc.CalculateCRC(crc.CCITT, data)) //nolint:gosec
}

// Frame as sent over the air.
func simWireFrame(data []byte, badCRC bool) []byte {
	var sum = simCRC(data)
	if badCRC {
		sum ^= 0xFFFF
	}

	var out = make([]byte, 0, len(data)+2)
	out = append(out, data...)

	return append(out, byte(sum>>8), byte(sum))
}

func simCheckCRC(wire []byte) ([]byte, bool) {
	if len(wire) < 2 {
		return nil, false
	}

	var n = len(wire) - 2
	var sum = uint16(wire[n])<<8 | uint16(wire[n+1])

	return wire[:n], simCRC(wire[:n]) == sum
}

func (r *SimRadio) Inject(f SimFrame) {
	if f.RSSI == 0 {
		f.RSSI = SIM_DEFAULT_RSSI
	}

	r.traffic = append(r.traffic, f)
	slices.SortStableFunc(r.traffic, func(a, b SimFrame) int { return a.At - b.At })
}

func (r *SimRadio) Pending() int {
	return len(r.traffic)
}

func (r *SimRadio) Attach(sink EventSink) {
	r.sink = sink
}

func (r *SimRadio) post(cb RadioCallback, code int, aux int) {
	if r.sink != nil {
		r.sink.Post(Event{Kind: EVENT_RADIO_DONE, Callback: cb, Code: code, Aux: aux})
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Tick
 *
 * Purpose:     Move the radio on to the platform's current time.
 *
 * Description:	Finishes whatever frame or transmission is due, and
 *		starts hearing any frame that begins now.  Frames that
 *		started while not listening are lost.
 *
 *--------------------------------------------------------------------*/

func (r *SimRadio) Tick() {
	var now = r.platform.Now()

	switch r.state {
	case SIM_RX_BACKGROUND, SIM_RX_FOREGROUND:
		if r.arriving != nil && now >= r.arrivesAt {
			r.receive()
		}

	case SIM_TX_DATA:
		if now >= r.txDoneAt {
			r.transmit()
			r.state = SIM_OFF
			r.post(r.cb, 0, 0)
		}

	case SIM_FLOOD:
		if now >= r.txDoneAt {
			r.transmit()
			r.txDoneAt = now + r.PacketDuration(r.txReq.Queue.Len())
			r.post(CALLBACK_BTX, RADIO_FLOOD_CONTINUES, 0)
		}

	case SIM_OFF, SIM_TX_CSMA:
	}

	for len(r.traffic) > 0 && r.traffic[0].At <= now {
		var f = r.traffic[0]
		r.traffic = r.traffic[1:]

		var listening = (r.state == SIM_RX_BACKGROUND && f.Background) ||
			(r.state == SIM_RX_FOREGROUND && !f.Background)

		if !listening || f.Channel != r.channel || r.arriving != nil {
			r.Stats.FramesMissed++
			continue
		}

		r.arriving = &f
		r.arrivesAt = f.At + r.PacketDuration(len(f.Data))
		if r.sink != nil {
			r.sink.Post(Event{Kind: EVENT_RADIO_DATA})
		}
	}
}

func (r *SimRadio) receive() {
	var f = r.arriving
	r.arriving = nil

	var data, ok = simCheckCRC(simWireFrame(f.Data, f.BadCRC))

	r.rxFrame = slices.Clone(data)
	r.rssi = f.RSSI
	r.Stats.FramesHeard++

	if !ok {
		r.Stats.CRCErrors++
	}

	switch r.state {
	case SIM_RX_BACKGROUND:
		r.state = SIM_OFF
		r.post(CALLBACK_BSCAN, IfThenElse(ok, 0, RADIO_BSCAN_RETRY), 0)

	case SIM_RX_FOREGROUND:
		// One frame per packet; the kernel re-enters RX if it wants more.
		r.post(CALLBACK_FRX, 0, IfThenElse(ok, 0, 1))

	case SIM_OFF, SIM_TX_CSMA, SIM_TX_DATA, SIM_FLOOD:
	}
}

func (r *SimRadio) transmit() {
	r.Sent = append(r.Sent, simWireFrame(r.txReq.Queue.Bytes(), false))
	r.Stats.Transmissions++
}

func (r *SimRadio) RxInitBackground(channel uint8, cb RadioCallback) {
	r.state = SIM_RX_BACKGROUND
	r.channel = channel
	r.cb = cb
	r.arriving = nil
}

func (r *SimRadio) RxInitForeground(channel uint8, cb RadioCallback) {
	r.state = SIM_RX_FOREGROUND
	r.channel = channel
	r.cb = cb
	r.arriving = nil
}

func (r *SimRadio) TxInitBackground(req TxRequest, cb RadioCallback) {
	r.startTx(req, cb)
}

func (r *SimRadio) TxInitForeground(req TxRequest, cb RadioCallback) {
	r.startTx(req, cb)
}

func (r *SimRadio) startTx(req TxRequest, cb RadioCallback) {
	r.state = SIM_TX_CSMA
	r.txReq = req
	r.cb = cb
	if req.Queue == nil {
		r.txReq.Queue = new(bytes.Buffer)
	}
	if len(req.Channels) > 0 {
		r.channel = req.Channels[0]
	}
}

func (r *SimRadio) TxCSMA() int {
	if r.state != SIM_TX_CSMA || len(r.txReq.Channels) == 0 {
		return RADIO_ERR_BADCHANNEL
	}

	if r.txReq.CSMAParams&CSMACA_NOCSMA == 0 && r.rng.Intn(100) < r.CCABusyPercent {
		r.Stats.CCAFails++
		return RADIO_ERR_CCAFAIL
	}

	var now = r.platform.Now()
	r.txDoneAt = now + r.PacketDuration(r.txReq.Queue.Len())
	r.state = IfThenElse(r.cb == CALLBACK_BTX, SIM_FLOOD, SIM_TX_DATA)

	return RADIO_CSMA_DONE
}

func (r *SimRadio) PrepResend() {
	// The whole queue goes out again on the next TxInit.
}

func (r *SimRadio) ReenterRx(_ int) {
	r.arriving = nil
}

func (r *SimRadio) RxTimeout() {
	switch r.state {
	case SIM_RX_BACKGROUND:
		r.state = SIM_OFF
		r.post(CALLBACK_BSCAN, RADIO_BSCAN_TIMEOUT, 0)
	case SIM_RX_FOREGROUND:
		r.state = SIM_OFF
		r.post(CALLBACK_FRX, RADIO_RX_TIMEOUT, 0)
	case SIM_OFF, SIM_TX_CSMA, SIM_TX_DATA, SIM_FLOOD:
	}

	r.arriving = nil
}

func (r *SimRadio) TxStopFlood() {
	if r.state != SIM_FLOOD {
		return
	}

	r.state = SIM_OFF
	r.post(CALLBACK_BTX, RADIO_FLOOD_END, 0)
}

func (r *SimRadio) Kill() {
	if r.state == SIM_OFF {
		return
	}

	r.Stats.Kills++
	r.state = SIM_OFF
	r.arriving = nil
	r.post(r.cb, RADIO_ERR_KILLED, 0)
}

func (r *SimRadio) RSSI() int {
	return r.rssi
}

// Ticks (1/1024 s) to send length bytes, overhead included, rounded up.
func (r *SimRadio) PacketDuration(length int) int {
	if length < 0 {
		length = 0
	}

	var bits = (length*8 + SIM_FRAME_OVERHEAD) * 1024

	return (bits + SIM_BITRATE - 1) / SIM_BITRATE
}

// Turbo channels (spectrum bits 10) answer faster.
func (r *SimRadio) DefaultTgd(channel uint8) int {
	if channel&0x30 == 0x20 {
		return 3
	}

	return 5
}

func (r *SimRadio) RxFrame() []byte {
	return r.rxFrame
}

func (r *SimRadio) Sleep() {
	if r.state == SIM_RX_BACKGROUND || r.state == SIM_RX_FOREGROUND || r.state == SIM_TX_CSMA {
		r.state = SIM_OFF
		r.arriving = nil
	}
}

func (r *SimRadio) Gag() {
}
