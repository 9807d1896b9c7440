package otkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIdle(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	var cases = []struct {
		active   uint16
		endpoint bool
		want     uint8
	}{
		{SET_GATEWAY, true, MACIDLE_HOLD},
		{SET_SUBCONTROLLER, true, MACIDLE_HOLD},
		{SET_ENDPOINT, true, MACIDLE_SLEEP},
		{SET_BLINKER, true, MACIDLE_OFF},
		{0, true, MACIDLE_OFF},
		{SET_ENDPOINT, false, MACIDLE_HOLD},
		{SET_BLINKER, false, MACIDLE_HOLD},
	}

	for _, c := range cases {
		k.dll.netconf.Active = c.active | SET_HOLDSCHED
		k.features.Endpoint = c.endpoint

		assert.Equal(t, c.want, k.defaultIdle(), "active %#04x endpoint %v", c.active, c.endpoint)
	}
}

func TestChangeSettings(t *testing.T) {
	var cfg = quietConfig()
	cfg.SleepScan = []ScanRecord{{Channel: 0x12, Timeout: 8, Next: 900}}

	var rig = newTestRig(t, cfg)
	var k = rig.k

	k.sessions.New(100, NETSTATE_REQRX, 0x10)

	// Bit 0 isn't a supported setting and is left alone.
	require.NoError(t, k.ChangeSettings(SET_CLASSMASK|0x0001, SET_ENDPOINT|0x0001))

	assert.Equal(t, SET_ENDPOINT, k.NetConfig().Active)

	var fp, err = rig.store.Open(ISF_NETWORK_SETTINGS)
	require.NoError(t, err)
	assert.Equal(t, SET_ENDPOINT, fp.Uint16(NETCONF_ACTIVE))

	// Restarted as an endpoint.
	assert.Equal(t, -1, k.sessions.Count())
	assert.Equal(t, MACIDLE_SLEEP, k.dll.idleState)
	assert.Equal(t, 1, k.sys.idle[IDLE_SLEEP].eventNo)
	assert.Equal(t, 0, k.sys.idle[IDLE_HOLD].eventNo)
}

func TestChangeSettings_Unsupported(t *testing.T) {
	var cfg = quietConfig()
	cfg.SupportedSettings = SET_HOLDSCHED

	var rig = newTestRig(t, cfg)

	require.NoError(t, rig.k.ChangeSettings(SET_CLASSMASK|SET_HOLDSCHED, SET_ENDPOINT|SET_HOLDSCHED))
	assert.Equal(t, SET_SUBCONTROLLER|SET_HOLDSCHED, rig.k.NetConfig().Active)
}

func TestChangeSettings_MissingFiles(t *testing.T) {
	var rig = newTestRig(t, nil)
	delete(rig.store.files, ISF_DEVICE_FEATURES)

	var err = rig.k.ChangeSettings(SET_CLASSMASK, SET_ENDPOINT)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuchFile)
	assert.ErrorContains(t, err, "changing settings")

	delete(rig.store.files, ISF_NETWORK_SETTINGS)
	assert.ErrorIs(t, rig.k.ChangeSettings(SET_CLASSMASK, SET_ENDPOINT), ErrNoSuchFile)
}

func TestRefresh(t *testing.T) {
	var rig = newTestRig(t, nil)
	var k = rig.k

	k.sessions.New(100, NETSTATE_REQRX, 0x10)

	var fp, err = rig.store.Open(ISF_NETWORK_SETTINGS)
	require.NoError(t, err)
	fp.Data[NETCONF_SUBNET] = 0x35

	require.NoError(t, k.Init())

	assert.Equal(t, uint8(0x35), k.NetConfig().Subnet)
	assert.Equal(t, -1, k.sessions.Count())
}

func TestEndpointSleepsAfterHoldLimit(t *testing.T) {
	var cfg = quietConfig()
	cfg.Network.Active = SET_ENDPOINT
	cfg.Network.HoldLimit = 2
	cfg.HoldScan = []ScanRecord{{Channel: 0x10, Timeout: 16, Next: 300}}
	cfg.SleepScan = []ScanRecord{{Channel: 0x12, Timeout: 8, Next: 900}}

	var rig = newTestRig(t, cfg)
	var k = rig.k

	// Endpoints start out asleep.
	require.Equal(t, MACIDLE_SLEEP, k.dll.idleState)
	require.Equal(t, 1, k.sys.idle[IDLE_SLEEP].eventNo)

	// One full hold cycle already done; starting the next reaches the limit.
	k.gotoHold()
	k.sys.holdCycle = 1

	assert.Equal(t, 8, k.EventManager(0))

	assert.Equal(t, 2, k.sys.holdCycle)
	assert.Equal(t, 0, k.sys.idle[IDLE_HOLD].eventNo)
	assert.Equal(t, 1, k.sys.idle[IDLE_SLEEP].eventNo)
	assert.Equal(t, 900, k.sys.idle[IDLE_SLEEP].nextEvent)
	assert.Equal(t, []IdleClass{IDLE_SLEEP}, rig.signals.prestarts)
	assert.Equal(t, PHASE_FRX, k.sys.rfa.phase)
	assert.Equal(t, 1, rig.radio.count("rx-fg"))
}

func TestSubcontrollerKeepsHolding(t *testing.T) {
	var cfg = quietConfig()
	cfg.Network.HoldLimit = 2
	cfg.HoldScan = []ScanRecord{{Channel: 0x10, Timeout: 16, Next: 300}}
	cfg.SleepScan = []ScanRecord{{Channel: 0x12, Timeout: 8, Next: 900}}

	var rig = newTestRig(t, cfg)
	var k = rig.k
	k.sys.holdCycle = 1

	assert.Equal(t, 16, k.EventManager(0))

	assert.Equal(t, 1, k.sys.idle[IDLE_HOLD].eventNo)
	assert.Equal(t, 300, k.sys.idle[IDLE_HOLD].nextEvent)
	assert.Equal(t, []IdleClass{IDLE_HOLD}, rig.signals.prestarts)
}

func TestGotoOff(t *testing.T) {
	var cfg = beaconConfig()
	cfg.Network.Active = SET_BLINKER

	var rig = newTestRig(t, cfg)
	var k = rig.k

	assert.Equal(t, MACIDLE_OFF, k.dll.idleState)
	for i := range IDLE_EXTERNAL {
		assert.Equal(t, 0, k.sys.idle[i].eventNo, "idle %s", IdleClass(i))
	}

	assert.Equal(t, ETA_NEVER, k.EventManager(0))
	assert.Empty(t, rig.signals.prestarts)
}
