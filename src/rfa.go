package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Radio Function Activity (RFA): the one radio operation
 *		the kernel has in flight, and the driver callbacks that
 *		move it along.
 *
 * Description:	sysevt_* handlers start or step an operation from the
 *		task loop.  rfevt_* handlers run when the driver posts a
 *		completion.  Every rfevt handler leaves the phase either
 *		advanced or back at PHASE_IDLE.
 *
 *---------------------------------------------------------------*/

type rfaPhase int

const (
	PHASE_IDLE rfaPhase = iota
	PHASE_BSCAN
	PHASE_FRX
	PHASE_BTX_INIT
	PHASE_FTX_INIT
	PHASE_FLOOD_DATA
	PHASE_TX_DATA
)

func (p rfaPhase) String() string {
	switch p {
	case PHASE_IDLE:
		return "idle"
	case PHASE_BSCAN:
		return "bscan"
	case PHASE_FRX:
		return "frx"
	case PHASE_BTX_INIT:
		return "btx-init"
	case PHASE_FTX_INIT:
		return "ftx-init"
	case PHASE_FLOOD_DATA:
		return "flood-data"
	case PHASE_TX_DATA:
		return "tx-data"
	}

	return "unknown"
}

func (p rfaPhase) receiving() bool {
	switch p {
	case PHASE_BSCAN, PHASE_FRX:
		return true
	case PHASE_IDLE, PHASE_BTX_INIT, PHASE_FTX_INIT, PHASE_FLOOD_DATA, PHASE_TX_DATA:
	}

	return false
}

func (p rfaPhase) contending() bool {
	switch p {
	case PHASE_BTX_INIT, PHASE_FTX_INIT:
		return true
	case PHASE_IDLE, PHASE_BSCAN, PHASE_FRX, PHASE_FLOOD_DATA, PHASE_TX_DATA:
	}

	return false
}

type rfaEvent struct {
	phase     rfaPhase
	nextEvent int
}

func (k *Kernel) rfaInit(phase rfaPhase) {
	k.sys.rfa.phase = phase
	k.signals.RFAInit(int(phase))
}

func (k *Kernel) rfaTerminate(phase int, code int) {
	k.stats.Terminations++
	kernelLog.Info("radio terminate", "phase", phase, "code", code)
	k.trace.Write("terminate", phase, code, "")
	k.signals.RFATerminate(phase, code)
}

/*
 * Software RX timeout.  Forced when nothing is arriving, or always under
 * A2P which runs strict slots.
 *
 * Returns false when a frame is coming in and the timeout was held off.
 */

func (k *Kernel) sysevtReceive() bool {
	if k.sys.mutex&MUTEX_RADIO_DATA == 0 || k.dll.comm.CSMAParams&CSMACA_A2P != 0 {
		k.radio.RxTimeout()
		return true
	}

	return false
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtBscan
 *
 * Purpose:     Background scan.  Sessionless, runs straight off a
 *		hold or sleep scan entry.  Usually over in a few ticks.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtBscan() {
	k.rfaInit(PHASE_BSCAN)
	k.sys.rfa.nextEvent = k.dll.comm.RxTimeout
	k.sys.mutex = MUTEX_RADIO_LISTEN
	k.radio.RxInitBackground(k.rxChannel(), CALLBACK_BSCAN)
}

func (k *Kernel) rfevtBscan(scode int, _ int) {
	// CRC failure, retry while redundancy lasts.
	if scode == RADIO_BSCAN_RETRY && k.dll.comm.Redundants > 0 {
		k.dll.comm.Redundants--
		k.radio.RxInitBackground(k.rxChannel(), CALLBACK_BSCAN)
		return
	}

	k.radio.Sleep()
	k.sessions.Pop()

	if scode >= 0 {
		if k.macFilter(k.radio.RxFrame()) {
			k.sys.mutex = MUTEX_PROCESSING
			k.network.ParseBackground(k.link, k.radio.RxFrame())
		} else {
			k.stats.FilterRejects++
			kernelLog.Warn("background frame rejected by filter")
		}
	}

	k.rfaTerminate(RFA_TERM_BSCAN, scode)

	k.sys.mutex = 0
	k.sys.rfa.phase = PHASE_IDLE
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtFscan
 *
 * Purpose:     Foreground scan, in anticipation of a dialog.
 *		Listening blocks the non-radio tasks.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtFscan() {
	k.rfaInit(PHASE_FRX)
	k.sys.mutex = MUTEX_RADIO_LISTEN
	k.sys.rfa.nextEvent = k.dll.comm.RxTimeout

	var ch = k.rxChannel()
	if s := k.sessions.Top(); s != nil {
		ch = s.Channel
	}

	k.radio.RxInitForeground(ch, CALLBACK_FRX)
}

/*-------------------------------------------------------------------
 *
 * Name:        rfevtFRX
 *
 * Inputs:	pcode	- Negative on listen timeout, otherwise the
 *			  number of frames still to come.
 *		fcode	- Non-zero when the frame failed CRC.
 *
 * Description:	On timeout the session may live on: it is resent while
 *		redundancy is left, under A2P it swaps role (RESPRX to
 *		REQTX, REQRX to RESPTX), otherwise it is scrapped.
 *
 *		A good request ends the listen and goes to processing.
 *		Bad frames and any response keep listening until the
 *		window runs out.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) rfevtFRX(pcode int, fcode int) {
	var frxCode = 0
	var s = k.sessions.Top()

	if s == nil {
		kernelLog.Warn("frx completion with no session", "pcode", pcode)
		k.sys.rfa.phase = PHASE_IDLE
		k.sys.mutex = 0
		k.rfaTerminate(RFA_TERM_FRX, pcode)
		return
	}

	if pcode < 0 {
		k.sys.rfa.phase = PHASE_IDLE

		switch {
		case k.dll.comm.Redundants != 0:
			s.Netstate = NETSTATE_REQTX | NETSTATE_INIT | NETSTATE_FIRSTRX
		case k.dll.comm.CSMAParams&CSMACA_A2P != 0:
			s.Netstate ^= NETSTATE_TMASK
		default:
			s.Netstate = NETSTATE_SCRAP
		}
	} else {
		var frame = k.radio.RxFrame()

		if fcode != 0 {
			if s.Datastream {
				k.network.MarkDatastreamFrame(k.link, s)
			}
			frxCode = -1
		} else if !k.macFilter(frame) {
			k.stats.FilterRejects++
			frxCode = -4
		}

		if pcode == 0 {
			var resp = s.Netstate & NETSTATE_RESP

			if frxCode == 0 {
				k.sys.mutex |= MUTEX_PROCESSING
			}

			if frxCode != 0 || resp != 0 {
				// Don't return to the kernel for bad frames.
				pcode = frxCode
				k.clearMutex(MUTEX_RADIO_DATA)
				k.radio.ReenterRx(0)
			} else {
				k.sys.rfa.phase = PHASE_IDLE
				k.radio.Sleep()
			}
		}
	}

	if k.sys.rfa.phase == PHASE_IDLE {
		k.rfaTerminate(RFA_TERM_FRX, frxCode)
	}

	if pcode == 0 {
		k.platform.Preempt()
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtInitBTX
 *
 * Purpose:     Start background (flood) transmission.  No initial
 *		backoff; contention begins on the next radio task.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtInitBTX() {
	k.rfaInit(PHASE_BTX_INIT)
	k.radio.TxInitBackground(k.txRequest(), CALLBACK_BTX)
	k.sys.mutex = MUTEX_RADIO_LISTEN
	k.sys.rfa.nextEvent = 0
	k.dll.comm.Tca = k.dll.comm.Tc
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtInitFTX
 *
 * Purpose:     Start foreground transmission.  The first CSMA attempt
 *		is delayed by whatever the flow control picks.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtInitFTX() {
	k.rfaInit(PHASE_FTX_INIT)

	if s := k.sessions.Top(); s != nil && s.Netstate&NETSTATE_RESP != 0 {
		k.csmaScramble()
	}

	k.radio.TxInitForeground(k.txRequest(), CALLBACK_FTX)
	k.sys.mutex = MUTEX_RADIO_LISTEN
	k.dll.comm.Tca = k.dll.comm.Tc
	k.sys.rfa.nextEvent = k.fcInit()
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtTxCSMA
 *
 * Purpose:     One step of TX contention.
 *
 * Description:	Runs while tca lasts.  A busy channel backs off through
 *		flow control.  A clear channel starts the data: floods
 *		run for the advertising time, everything else for one
 *		packet.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtTxCSMA() {
	var code = CSMA_ERR_EXHAUSTED

	if k.dll.comm.Tca >= 0 {
		code = k.radio.TxCSMA()

		switch {
		case code == RADIO_ERR_BADCHANNEL:
			// fail below

		case code == RADIO_ERR_CCAFAIL:
			k.sys.rfa.nextEvent = k.fcLoop()
			return

		case code == RADIO_CSMA_DONE:
			k.sys.mutex = MUTEX_RADIO_DATA
			k.sys.rfa.phase += 2
			k.sys.rfa.nextEvent = IfThenElse(k.sys.rfa.phase == PHASE_FLOOD_DATA,
				k.sys.advTime, k.radio.PacketDuration(k.txq.Len()))
			return

		default:
			k.sys.rfa.nextEvent = code
			return
		}
	}

	k.stats.CSMAFailures++
	kernelLog.Warn("csma failed", "code", code, "tca", k.dll.comm.Tca)

	k.rfaTerminate(RFA_TERM_CSMA, code)
	k.sessions.Pop()
	k.sysIdle()
}

/*-------------------------------------------------------------------
 *
 * Name:        rfevtFTX
 *
 * Inputs:	pcode	- 1 for a non-final frame of a multiframe packet,
 *			  0 when the packet is done, other values are
 *			  errors.
 *
 * Description:	Redundant copies go out immediately without CSMA, but
 *		only when there is no response window or this was itself
 *		a response.  Otherwise the session moves on to RESPRX,
 *		scrapped if nothing more is expected or on error.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) rfevtFTX(pcode int, _ int) {
	if pcode == 1 {
		return
	}

	k.sys.mutex = 0
	k.sys.rfa.phase = PHASE_IDLE

	var s = k.sessions.Top()
	var scrap = k.dll.comm.RxTimeout == 0
	if s != nil {
		scrap = scrap || s.Netstate&NETSTATE_RESP != 0
	}

	k.dll.comm.Redundants--

	if scrap && k.dll.comm.Redundants > 0 {
		k.dll.comm.CSMAParams = CSMACA_NOCSMA | CSMACA_MACCA
		k.radio.PrepResend()
	} else if s != nil {
		scrap = scrap || pcode != 0
		if scrap {
			s.Netstate |= NETSTATE_SCRAP
		}
		s.Netstate &^= NETSTATE_TMASK
		s.Netstate |= NETSTATE_RESPRX
	}

	k.rfaTerminate(RFA_TERM_TX, pcode)

	k.platform.Preempt()
}

/*-------------------------------------------------------------------
 *
 * Name:        rfevtBTX
 *
 * Inputs:	flcode	- RADIO_FLOOD_END when the flood is over,
 *			  RADIO_FLOOD_CONTINUES after each repetition,
 *			  anything else is an error.
 *
 * Description:	When the flood ends the request session behind it goes
 *		immediately: CSMA off, 2 tick budget, one copy.
 *		On each repetition the remaining advertising time is
 *		written into bytes 3-4 of the outgoing flood frame, or
 *		the flood is stopped once another frame won't fit.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) rfevtBTX(flcode int, _ int) {
	switch flcode {
	case RADIO_FLOOD_END:
		k.rfaTerminate(RFA_TERM_FLOOD, 0)
		k.network.CloseFlood(k.link)

		if s := k.sessions.Top(); s != nil {
			s.Counter = 0
		}

		k.sys.advTime = 0
		k.sys.rfa.phase = PHASE_IDLE
		k.sys.mutex = 0
		k.dll.comm.Tc = 2
		k.dll.comm.CSMAParams = CSMACA_NOCSMA | CSMACA_MACCA
		k.dll.comm.Redundants = 1
		k.platform.Preempt()

	case RADIO_FLOOD_CONTINUES:
		// The RFA countdown holds the advertising time left as of the
		// last clock; take off what has passed since.
		var remaining = k.sys.rfa.nextEvent - k.platform.Elapsed()

		if remaining < k.radio.PacketDuration(FLOOD_PACKET_BYTES) {
			k.radio.TxStopFlood()
		} else {
			k.writeFloodCountdown(remaining)
		}

	default:
		k.rfaTerminate(RFA_TERM_FLOOD, flcode)
		k.sysIdle()
		k.platform.Preempt()
	}
}

func (k *Kernel) writeFloodCountdown(remaining int) {
	var frame = k.txq.Bytes()
	if len(frame) < 5 {
		kernelLog.Warn("flood frame too short for countdown", "length", len(frame))
		return
	}

	frame[3] = byte(remaining >> 8) //nolint:gosec
	frame[4] = byte(remaining)      //nolint:gosec
	k.txq.Truncate(5)
}

func (k *Kernel) rxChannel() uint8 {
	if len(k.dll.comm.RxChannels) == 0 {
		return 0
	}

	return k.dll.comm.RxChannels[0]
}

func (k *Kernel) txRequest() TxRequest {
	return TxRequest{
		Channels:   k.dll.comm.TxChannels,
		CSMAParams: k.dll.comm.CSMAParams,
		Queue:      &k.txq,
	}
}
