package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Minimal network layer for the simulator.
 *
 * Description:	Foreground frames:
 *
 *			0	length (not counting CRC)
 *			1	TX EIRP
 *			2	subnet
 *			3	control, bit 7 set on responses
 *			4	dialog id
 *			5	session flags
 *			6	response window, ticks (requests only)
 *			7-	payload
 *
 *		Background (flood) frames:
 *
 *			0	length
 *			1	TX EIRP
 *			2	subnet
 *			3-4	ticks until the request follows (BE16)
 *
 *		Every request gets a response.  Responses to our own
 *		requests are counted and go no further.
 *
 *---------------------------------------------------------------*/

const (
	SIM_CTRL_RESPONSE uint8 = 0x80

	SIM_DEFAULT_WINDOW    = 32
	SIM_FLOOD_RX_TIMEOUT  = 64
	SIM_REQUEST_MIN_BYTES = 7
)

type SimNetworkStats struct {
	Requests        int
	Responses       int
	Background      int
	Rejected        int
	Headers         int
	Footers         int
	FileCalls       int
	Floods          int
	DatastreamMarks int
}

type SimNetwork struct {
	EIRP  uint8 /* Encoded, see EncodeEIRP. */
	Stats SimNetworkStats

	saved []byte /* Request frame put aside during a flood. */
}

func NewSimNetwork(eirpDBm int) *SimNetwork {
	return &SimNetwork{EIRP: EncodeEIRP(eirpDBm)}
}

/*-------------------------------------------------------------------
 *
 * Name:        RouteIncoming
 *
 * Purpose:     Handle a foreground frame for the top session.
 *
 * Returns:	0 when a response has been queued, -1 otherwise.
 *
 * Description:	A request turns the session into a response: RESPTX,
 *		the requester's dialog, the response window as the
 *		contention budget and RAIND backoff.
 *
 *--------------------------------------------------------------------*/

func (n *SimNetwork) RouteIncoming(link *Link, s *Session, frame []byte) int {
	var hdr, err = decodeFrameHeader(frame)
	if err != nil {
		n.Stats.Rejected++
		return -1
	}

	if hdr.Control&SIM_CTRL_RESPONSE != 0 {
		if s.role() == NETSTATE_RESPRX {
			n.Stats.Responses++
		} else {
			n.Stats.Rejected++
		}
		return -1
	}

	if len(frame) < SIM_REQUEST_MIN_BYTES {
		n.Stats.Rejected++
		return -1
	}

	n.Stats.Requests++

	s.DialogID = frame[4]
	s.Flags = frame[5]
	s.Subnet = hdr.Subnet
	s.Netstate = (s.Netstate &^ (NETSTATE_TMASK | NETSTATE_INIT | NETSTATE_FLOOD)) | NETSTATE_RESPTX

	var comm = link.Comm
	comm.Tc = IfThenElse(frame[6] == 0, SIM_DEFAULT_WINDOW, int(frame[6]))
	comm.Redundants = 1
	comm.TxChannels = []uint8{s.Channel}
	comm.RxChannels = []uint8{s.Channel}
	comm.CSMAParams = CSMACA_RAIND
	comm.RxTimeout = 0

	n.Header(link, s, SIM_CTRL_RESPONSE, 0)
	n.Footer(link, s)

	return 0
}

/*
 * A flood advertises a request coming later on this channel; listen for
 * it then.
 */

func (n *SimNetwork) ParseBackground(link *Link, frame []byte) {
	n.Stats.Background++

	if len(frame) < 5 {
		return
	}

	var countdown = be16(frame, 3)

	var channel uint8
	if len(link.Comm.RxChannels) > 0 {
		channel = link.Comm.RxChannels[0]
	}

	var s = link.Sessions.New(countdown, NETSTATE_REQRX|NETSTATE_INIT, channel)
	if s == nil {
		return
	}

	s.Subnet = frame[2]
	link.Comm.RxTimeout = SIM_FLOOD_RX_TIMEOUT
	link.Comm.RxChannels = []uint8{channel}
}

// Header starts a new frame in the TX queue.
func (n *SimNetwork) Header(link *Link, s *Session, addr uint8, nack uint8) {
	n.Stats.Headers++

	link.TxQueue.Reset()
	link.TxQueue.Write(encodeFrameHeader(&frameHeader{
		TxEIRP:  n.EIRP,
		Subnet:  s.Subnet,
		Control: addr | nack,
	}))
	link.TxQueue.WriteByte(s.DialogID)
	link.TxQueue.WriteByte(s.Flags)

	if addr&0x40 == 0 {
		link.TxQueue.Write(link.Routing)
	}
}

// Footer fills in the length.
func (n *SimNetwork) Footer(link *Link, _ *Session) {
	n.Stats.Footers++

	var b = link.TxQueue.Bytes()
	if len(b) > 0 {
		b[0] = byte(len(b)) //nolint:gosec
	}
}

// The template is copied in as is.  A first byte of 0xFF names no file.
func (n *SimNetwork) ISFCall(link *Link, _ bool, template []byte) int {
	n.Stats.FileCalls++

	if len(template) == 0 || template[0] == 0xFF {
		return -1
	}

	link.TxQueue.Write(template)

	return 0
}

func (n *SimNetwork) InitFlood(link *Link, s *Session, duration int) int {
	if duration <= 0 || duration > 0xFFFF {
		return -1
	}

	n.Stats.Floods++
	n.saved = append(n.saved[:0], link.TxQueue.Bytes()...)

	link.TxQueue.Reset()
	link.TxQueue.Write([]byte{5, n.EIRP, s.Subnet, byte(duration >> 8), byte(duration)})

	return 0
}

func (n *SimNetwork) CloseFlood(link *Link) {
	link.TxQueue.Reset()
	link.TxQueue.Write(n.saved)
	n.saved = n.saved[:0]
}

func (n *SimNetwork) MarkDatastreamFrame(_ *Link, _ *Session) {
	n.Stats.DatastreamMarks++
}
