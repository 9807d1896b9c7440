package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Constants shared by the kernel, the flow control code
 *		and the collaborators that plug into them.
 *
 * Description:	Bit layouts follow DASH7 Mode 2.  They are kept as plain
 *		integer masks because the same fields travel over the air
 *		and get stored in the configuration files.
 *
 *---------------------------------------------------------------*/

/*
 * Session network state.
 *
 * Bits 5:4 carry the role, bit 7 marks the session for removal and bit 6
 * selects background (flood) frames.  The session task uses netstate >> 5
 * directly as its call code.
 */

const (
	NETSTATE_SCRAP     uint8 = 0x80
	NETSTATE_FLOOD     uint8 = 0x40
	NETSTATE_RX        uint8 = 0x20
	NETSTATE_RESP      uint8 = 0x10
	NETSTATE_INIT      uint8 = 0x08
	NETSTATE_CONNECTED uint8 = 0x04
	NETSTATE_HOLD      uint8 = 0x02
	NETSTATE_FIRSTRX   uint8 = 0x01

	NETSTATE_TMASK  uint8 = 0x30
	NETSTATE_REQTX  uint8 = 0x00
	NETSTATE_RESPTX uint8 = 0x10
	NETSTATE_REQRX  uint8 = 0x20
	NETSTATE_RESPRX uint8 = 0x30

	NETSTATE_ASSOCIATED = NETSTATE_CONNECTED
)

/* Session flags.  Only the listen flag matters to the kernel. */

const FLAG_LISTEN uint8 = 0x20

/*
 * CSMA-CA parameters in the communication descriptor.
 *
 * Bits 4:3 choose the backoff policy, see flowctl.go.
 */

const (
	CSMACA_NA2P   uint8 = 0x00
	CSMACA_A2P    uint8 = 0x40
	CSMACA_CAMASK uint8 = 0x18
	CSMACA_RIGD   uint8 = 0x00
	CSMACA_RAIND  uint8 = 0x08
	CSMACA_AIND   uint8 = 0x10
	CSMACA_MACCA  uint8 = 0x18
	CSMACA_NOCSMA uint8 = 0x04
)

/* Active settings (network settings file, bytes 4-5). */

const (
	SET_SLEEPSCHED    uint16 = 0x4000
	SET_HOLDSCHED     uint16 = 0x2000
	SET_BEACONSCHED   uint16 = 0x1000
	SET_CLASSMASK     uint16 = 0x0F00
	SET_GATEWAY       uint16 = 0x0800
	SET_SUBCONTROLLER uint16 = 0x0400
	SET_ENDPOINT      uint16 = 0x0200
	SET_BLINKER       uint16 = 0x0100
)

/* MAC idle states. */

const (
	MACIDLE_OFF   uint8 = 0
	MACIDLE_SLEEP uint8 = 1
	MACIDLE_HOLD  uint8 = 2
)

/* Mutex bits: which activity classes are running. */

const (
	MUTEX_RADIO_LISTEN uint8 = 0x01
	MUTEX_RADIO_DATA   uint8 = 0x02
	MUTEX_PROCESSING   uint8 = 0x04
)

/*
 * Codes returned by Radio.TxCSMA.  Any positive value is a number of
 * ticks to wait before the next call.
 */

const (
	RADIO_CSMA_DONE       = -1
	RADIO_ERR_CCAFAIL     = -2
	RADIO_ERR_BADCHANNEL  = -3
	RADIO_ERR_KILLED      = -4
	RADIO_RX_TIMEOUT      = -1
	RADIO_BSCAN_RETRY     = -1
	RADIO_BSCAN_TIMEOUT   = -2
	RADIO_FLOOD_END       = 0
	RADIO_FLOOD_CONTINUES = 2
)

/* Status passed to RFATerminate when tca ran out before the channel cleared. */

const CSMA_ERR_EXHAUSTED = -5

/* Which operation is reported to RFATerminate. */

const (
	RFA_TERM_BSCAN = 1
	RFA_TERM_FRX   = 2
	RFA_TERM_CSMA  = 3
	RFA_TERM_FLOOD = 4
	RFA_TERM_TX    = 5
)

/* Configuration file identifiers (ISF). */

const (
	ISF_NETWORK_SETTINGS    uint8 = 0x00
	ISF_DEVICE_FEATURES     uint8 = 0x01
	ISF_REAL_TIME_SCHED     uint8 = 0x03
	ISF_SLEEP_SCAN_SEQ      uint8 = 0x04
	ISF_HOLD_SCAN_SEQ       uint8 = 0x05
	ISF_BEACON_TRANSMIT_SEQ uint8 = 0x06
	ISF_NONE                uint8 = 0xFF
)

/* Contention period given to beacons, ticks. */

const BEACON_TCA = 272

/* "A long time" for idle scheduling, and the beacon re-check interval. */

const ETA_NEVER = 65535

/* Error code handed to the panic signal on an impossible scheduler state. */

const PANIC_BAD_TASK = 64

/* Frame length used by the flood to decide whether another packet still fits. */

const FLOOD_PACKET_BYTES = 7
