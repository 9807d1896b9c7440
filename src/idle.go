package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Idle time events: hold scan, sleep scan, beacon
 *		transmit and the external event.
 *
 * Description:	Each entry walks a sequence file.  A scan sequence is a
 *		list of 4 byte records:
 *
 *			channel, flags, next (BE16)
 *
 *		and a beacon sequence a list of 8 byte records:
 *
 *			channel, params, call template (4), next (BE16)
 *
 *		"next" is the number of ticks until the entry is due again.
 *		The cursor is the byte offset of the next record and wraps
 *		to 0 once it reaches the end of the file.
 *
 *		An entry with an RTC schedule id hands its timing over to
 *		the platform alarm and sits parked until the alarm fires.
 *
 *---------------------------------------------------------------*/

const (
	SCAN_RECORD_BYTES   = 4
	BEACON_RECORD_BYTES = 8
)

type idleEvent struct {
	class     IdleClass
	eventNo   int /* 0 = disabled */
	cursor    int
	nextEvent int
	schedID   uint8
	rtcArmed  bool
	table     uint8
}

func (e *idleEvent) enabled() bool {
	return e.eventNo != 0 && !e.rtcArmed
}

/*
 * Clock one entry.  Returns true when it is due.
 */

func (k *Kernel) advanceIdle(e *idleEvent, elapsed int) bool {
	if !e.enabled() {
		return false
	}

	e.nextEvent -= elapsed

	return e.nextEvent <= 0
}

/*-------------------------------------------------------------------
 *
 * Name:        nextETA
 *
 * Purpose:     Ticks until the soonest enabled idle event.
 *
 * Returns:	ETA_NEVER when nothing is enabled.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) nextETA() int {
	var eta = ETA_NEVER

	for i := IDLE_EVENTS - 1; i >= 0; i-- {
		var e = &k.sys.idle[i]
		if e.enabled() && e.nextEvent < eta {
			eta = e.nextEvent
		}
	}

	return eta
}

/*
 * Arm RTC alarms for any scheduled entries, then report the next ETA.
 */

func (k *Kernel) nextEvent() int {
	for i := IDLE_EVENTS - 1; i >= 0; i-- {
		var e = &k.sys.idle[i]
		if e.eventNo != 0 {
			k.idlevtCtrl(e)
		}
	}

	return k.nextETA()
}

/*-------------------------------------------------------------------
 *
 * Name:        idlevtCtrl
 *
 * Purpose:     Program the RTC alarm of a scheduled entry.
 *
 * Description:	The RTC schedule file holds a BE16 mask and value per
 *		sequence: sleep at offset 0, hold at 4, beacon at 8.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) idlevtCtrl(e *idleEvent) {
	if e.schedID == 0 || e.rtcArmed || e.table == ISF_NONE || !k.rtcEnabled(e.class) {
		return
	}

	var fp, err = k.store.Open(ISF_REAL_TIME_SCHED)
	if err != nil {
		kernelLog.Warn("no RTC schedule, running unscheduled", "class", e.class, "err", err)
		e.schedID = 0
		return
	}

	var offset = int(e.table-ISF_SLEEP_SCAN_SEQ) << 2
	var mask = fp.Uint16(offset)
	var value = fp.Uint16(offset + 2)

	k.platform.SetRTCAlarm(e.schedID, mask, value)

	e.cursor = 0
	e.nextEvent = 0
	e.rtcArmed = true

	kernelLog.Debug("rtc alarm armed", "class", e.class, "id", e.schedID, "mask", mask, "value", value)
}

func (k *Kernel) rtcEnabled(class IdleClass) bool {
	switch class {
	case IDLE_HOLD:
		return k.features.RTCHold
	case IDLE_SLEEP:
		return k.features.RTCSleep
	case IDLE_BEACON:
		return k.features.RTCBeacon
	case IDLE_EXTERNAL, IDLE_EVENTS:
	}

	return false
}

/*
 * An RTC alarm fired: whatever entry it was armed for is due now.
 */

func (k *Kernel) rtcAlarm(id uint8) {
	for i := range k.sys.idle {
		var e = &k.sys.idle[i]
		if e.rtcArmed && e.schedID == id {
			e.rtcArmed = false
			e.nextEvent = 0
			kernelLog.Debug("rtc alarm", "class", e.class, "id", id)
		}
	}
}

func (k *Kernel) sysevtHoldScan() {
	k.scanChannel(&k.sys.idle[IDLE_HOLD])
}

func (k *Kernel) sysevtSleepScan() {
	if !k.features.Endpoint {
		return
	}

	k.scanChannel(&k.sys.idle[IDLE_SLEEP])
}

/*-------------------------------------------------------------------
 *
 * Name:        scanChannel
 *
 * Purpose:     Take the next record of a scan sequence and create the
 *		scan session for it.
 *
 * Description:	Flags bit 7 picks a background scan, the rest is the RX
 *		timeout code (see CalcTimeout).
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) scanChannel(e *idleEvent) {
	k.signals.IdlePrestart(e.class)

	var fp, err = k.store.Open(e.table)
	if err != nil || fp.Len() < SCAN_RECORD_BYTES {
		kernelLog.Warn("no scan sequence", "class", e.class, "isf", e.table, "err", err)
		e.nextEvent = ETA_NEVER
		return
	}

	if e.cursor+SCAN_RECORD_BYTES > fp.Len() {
		e.cursor = 0
	}

	var channel = fp.Byte(e.cursor)
	var flags = fp.Byte(e.cursor + 1)
	e.nextEvent = int(fp.Uint16(e.cursor + 2))

	e.cursor += SCAN_RECORD_BYTES
	if e.cursor >= fp.Len() {
		e.cursor = 0
	}

	k.dll.comm.RxTimeout = CalcTimeout(flags)
	k.dll.comm.Redundants = 0
	k.dll.comm.RxChannels = []uint8{channel}

	var netstate = NETSTATE_REQRX | NETSTATE_INIT
	if flags&SCAN_BACKGROUND != 0 {
		netstate |= NETSTATE_FLOOD
	}

	if k.sessions.New(0, netstate, channel) == nil {
		kernelLog.Warn("session stack full, scan skipped", "class", e.class, "channel", channel)
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        sysevtBeacon
 *
 * Purpose:     Build the next beacon from the beacon sequence and
 *		queue its session.
 *
 * Description:	params bit 0 is passed to the file call, bit 1 turns
 *		off the response window, bit 2 turns off CSMA, bits 5:4
 *		go into the session flags.
 *
 *		Disabled or missing beacons check again in 65535 ticks.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysevtBeacon() {
	var e = &k.sys.idle[IDLE_BEACON]

	var fp, err = k.store.Open(e.table)
	if k.dll.netconf.BeaconAttempts == 0 || err != nil || fp.Len() < BEACON_RECORD_BYTES {
		e.nextEvent = ETA_NEVER
		return
	}

	if e.cursor+BEACON_RECORD_BYTES > fp.Len() {
		e.cursor = 0
	}

	var channel = fp.Byte(e.cursor)
	var params = fp.Byte(e.cursor + 1)
	var template = fp.Slice(e.cursor+2, 4)
	e.nextEvent = int(fp.Uint16(e.cursor + 6))

	e.cursor += BEACON_RECORD_BYTES
	if e.cursor >= fp.Len() {
		e.cursor = 0
	}

	var s = k.sessions.New(0, NETSTATE_INIT|NETSTATE_FIRSTRX, channel)
	if s == nil {
		kernelLog.Warn("session stack full, beacon skipped", "channel", channel)
		return
	}

	s.Subnet = k.dll.netconf.BeaconSubnet
	s.Flags = (k.dll.netconf.DDFlags &^ 0x30) | (params & 0x30)

	k.txq.Reset()
	k.network.Header(k.link, s, 0x40, 0)
	k.txq.WriteByte(0x20 + (params & 1))
	if params&0x04 != 0 {
		k.txq.WriteByte(0x04)
	}

	k.dll.comm.Tc = BEACON_TCA
	k.dll.comm.RxTimeout = IfThenElse(params&0x02 != 0, 0, k.radio.DefaultTgd(channel))
	k.txq.WriteByte(uint8(k.dll.comm.RxTimeout)) //nolint:gosec

	k.dll.comm.CSMAParams = DefaultCSMA(channel) | (params & 0x04) | CSMACA_NA2P | CSMACA_MACCA
	k.dll.comm.Redundants = int(k.dll.netconf.BeaconAttempts)
	k.dll.comm.TxChannels = []uint8{channel}
	k.dll.comm.RxChannels = []uint8{channel}

	if k.network.ISFCall(k.link, params&1 != 0, template) >= 0 {
		k.network.Footer(k.link, s)
		k.signals.IdlePrestart(IDLE_BEACON)
	} else {
		k.sessions.Pop()
	}
}

/*
 * External event.  Armed and disarmed by the application.
 */

func (k *Kernel) setExternalEvent(eventNo int, nextEvent int) {
	if !k.features.ExternalEvent {
		return
	}

	var e = &k.sys.idle[IDLE_EXTERNAL]
	e.eventNo = eventNo
	e.nextEvent = nextEvent
}

func (k *Kernel) SetExternalEvent(eventNo int, nextEvent int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.setExternalEvent(eventNo, nextEvent)
}
