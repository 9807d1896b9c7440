package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Network settings and the idle state routines.
 *
 * Description:	The network settings file (ISF 0):
 *
 *			0-1	vid
 *			2	subnet
 *			3	beacon subnet
 *			4-5	active settings (BE16)
 *			6	dd flags
 *			7	beacon attempts
 *			8-9	hold limit (BE16)
 *
 *		The device features file (ISF 1) has the supported settings
 *		at offset 8.
 *
 *---------------------------------------------------------------*/

import (
	"github.com/pkg/errors"
)

const (
	NETCONF_SUBNET          = 2
	NETCONF_BEACON_SUBNET   = 3
	NETCONF_ACTIVE          = 4
	NETCONF_DD_FLAGS        = 6
	NETCONF_BEACON_ATTEMPTS = 7
	NETCONF_HOLD_LIMIT      = 8
	NETCONF_BYTES           = 10

	FEATURES_SUPPORTED = 8
)

/*-------------------------------------------------------------------
 *
 * Name:        refresh
 *
 * Purpose:     Reload the network settings and restart from idle.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) refresh() error {
	var fp, err = k.store.Open(ISF_NETWORK_SETTINGS)
	if err != nil {
		return errors.Wrap(err, "loading network settings")
	}

	if fp.Len() < NETCONF_BYTES {
		return errors.Errorf("network settings file is %d bytes, need %d", fp.Len(), NETCONF_BYTES)
	}

	k.dll.netconf = NetConfig{
		Subnet:         fp.Byte(NETCONF_SUBNET),
		BeaconSubnet:   fp.Byte(NETCONF_BEACON_SUBNET),
		Active:         fp.Uint16(NETCONF_ACTIVE),
		DDFlags:        fp.Byte(NETCONF_DD_FLAGS),
		BeaconAttempts: fp.Byte(NETCONF_BEACON_ATTEMPTS),
		HoldLimit:      fp.Uint16(NETCONF_HOLD_LIMIT),
	}

	kernelLog.Info("network settings", "subnet", k.dll.netconf.Subnet, "active", k.dll.netconf.Active,
		"hold_limit", k.dll.netconf.HoldLimit, "beacon_attempts", k.dll.netconf.BeaconAttempts)

	k.flush()

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        changeSettings
 *
 * Purpose:     Change some of the active settings and restart.
 *
 * Inputs:	mask		- Settings bits to change.  Bits the device
 *				  doesn't support are ignored.
 *		settings	- New values for those bits.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) changeSettings(mask uint16, settings uint16) error {
	var active, err = k.store.Open(ISF_NETWORK_SETTINGS)
	if err != nil {
		return errors.Wrap(err, "changing settings")
	}

	var supported, serr = k.store.Open(ISF_DEVICE_FEATURES)
	if serr != nil {
		return errors.Wrap(serr, "changing settings")
	}

	mask &= supported.Uint16(FEATURES_SUPPORTED)

	k.dll.netconf.Active = active.Uint16(NETCONF_ACTIVE)
	k.dll.netconf.Active &^= mask
	k.dll.netconf.Active |= settings & mask

	err = active.PutUint16(NETCONF_ACTIVE, k.dll.netconf.Active)
	if err != nil {
		return errors.Wrap(err, "changing settings")
	}

	k.flush()

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        flush
 *
 * Purpose:     Drop every session and event, and go idle.
 *
 * Description:	RTC schedule ids are handed out in order to the
 *		sequences that have scheduling turned on in the active
 *		settings: sleep, then hold, then beacon.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) flush() {
	var accum uint8

	k.sessions.Flush()
	k.dll.idleState = k.defaultIdle()

	var sss = &k.sys.idle[IDLE_SLEEP]
	var hss = &k.sys.idle[IDLE_HOLD]
	var bts = &k.sys.idle[IDLE_BEACON]

	if k.features.Endpoint && k.features.RTCSleep {
		accum += IfThenElse[uint8](k.dll.netconf.Active&SET_SLEEPSCHED != 0, 1, 0)
		sss.schedID = accum
	}

	if k.features.RTCHold {
		accum += IfThenElse[uint8](k.dll.netconf.Active&SET_HOLDSCHED != 0, 1, 0)
		hss.schedID = accum
	}

	if k.features.Beacons && k.features.RTCBeacon {
		accum += IfThenElse[uint8](k.dll.netconf.Active&SET_BEACONSCHED != 0, 1, 0)
		bts.schedID = accum
	}

	for _, e := range []*idleEvent{sss, hss, bts} {
		e.cursor = 0
		e.nextEvent = 0
		e.rtcArmed = false
	}

	if k.features.Beacons {
		bts.eventNo = IfThenElse(k.dll.netconf.BeaconAttempts != 0, 1, 0)
	}

	k.sysIdle()
}

/*
 * Idle state for the device class.  Controllers hold, endpoints sleep,
 * anything else is off.  Without endpoint support everything holds.
 */

func (k *Kernel) defaultIdle() uint8 {
	if !k.features.Endpoint {
		return MACIDLE_HOLD
	}

	var class = k.dll.netconf.Active & SET_CLASSMASK

	switch {
	case class >= SET_SUBCONTROLLER:
		return MACIDLE_HOLD
	case class&SET_ENDPOINT != 0:
		return MACIDLE_SLEEP
	}

	return MACIDLE_OFF
}

/*-------------------------------------------------------------------
 *
 * Name:        sysIdle
 *
 * Purpose:     Power the radio down and go to the idle state.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysIdle() {
	k.radio.Gag()
	k.radio.Sleep()
	k.sys.mutex = 0

	switch k.dll.idleState & 3 {
	case MACIDLE_OFF:
		k.gotoOff()
	case MACIDLE_SLEEP:
		k.gotoSleep()
	default:
		k.gotoHold()
	}
}

// Everything off.  Init turns it back on; the application can still start
// sessions.
func (k *Kernel) gotoOff() {
	k.sessions.Flush()

	k.sys.rfa.phase = PHASE_IDLE
	k.sys.idle[IDLE_HOLD].eventNo = 0
	k.sys.idle[IDLE_SLEEP].eventNo = 0
	k.sys.idle[IDLE_BEACON].eventNo = 0
}

// Sleep scanning, endpoints only.  Anything else holds instead.
func (k *Kernel) gotoSleep() {
	if !k.features.Endpoint {
		k.gotoHold()
		return
	}

	var sss = &k.sys.idle[IDLE_SLEEP]
	if sss.schedID != 0 {
		k.platform.ActivateRTC(sss.schedID)
	}

	sss.cursor = 0
	sss.eventNo = 1
	k.sys.idle[IDLE_HOLD].eventNo = 0
	k.sys.rfa.phase = PHASE_IDLE
}

func (k *Kernel) gotoHold() {
	var hss = &k.sys.idle[IDLE_HOLD]
	if hss.schedID != 0 {
		k.platform.ActivateRTC(hss.schedID)
	}

	hss.eventNo = 1
	if k.features.Endpoint {
		k.sys.idle[IDLE_SLEEP].eventNo = 0
	}
	k.sys.rfa.phase = PHASE_IDLE
}

/*-------------------------------------------------------------------
 *
 * Name:        sysPanic
 *
 * Purpose:     Tear everything down after an impossible state and
 *		carry on from idle.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) sysPanic(code int) {
	k.stats.Panics++
	kernelLog.Error("kernel panic", "code", code)
	k.trace.Write("panic", int(k.sys.rfa.phase), code, "")

	k.dll.idleState = MACIDLE_OFF
	k.sessions.Flush()
	k.sysIdle()
	k.platform.Flush()

	k.signals.Panic(code)
}
