package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Contract between the kernel and the network / session
 *		layer that parses and builds frames.
 *
 * Description:	The network layer gets a Link: the pieces of data link
 *		state it is allowed to touch when routing a request or
 *		preparing a response.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
)

type Link struct {
	Comm     *CommDescriptor
	Sessions SessionStack
	TxQueue  *bytes.Buffer
	Netconf  *NetConfig
	Routing  []byte /* Routing template from the last OpenRequest. */
}

type Network interface {
	// RouteIncoming handles a received foreground frame for session s.
	// A negative score means the frame was not for this device.
	RouteIncoming(link *Link, s *Session, frame []byte) int
	// ParseBackground handles a received background frame.  It must
	// create a session if anything is to follow.
	ParseBackground(link *Link, frame []byte)

	Header(link *Link, s *Session, addr uint8, nack uint8)
	Footer(link *Link, s *Session)
	// ISFCall appends the file call described by template, negative
	// on failure.
	ISFCall(link *Link, isCall bool, template []byte) int

	InitFlood(link *Link, s *Session, duration int) int
	CloseFlood(link *Link)

	MarkDatastreamFrame(link *Link, s *Session)
}
