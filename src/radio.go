package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Contract between the kernel and the radio driver.
 *
 * Description:	Radio operations are arm-and-return.  When one finishes,
 *		the driver posts an Event naming the callback it was armed
 *		with, and the kernel runs that callback the next time its
 *		loop comes around.  The driver never calls into the kernel
 *		state directly.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"fmt"
)

type RadioCallback int

const (
	CALLBACK_NONE  RadioCallback = iota
	CALLBACK_BSCAN               /* Background scan finished. */
	CALLBACK_FRX                 /* Foreground frame received, or listen timed out. */
	CALLBACK_FTX                 /* Foreground frame sent. */
	CALLBACK_BTX                 /* Background flood event. */
)

func (cb RadioCallback) String() string {
	switch cb {
	case CALLBACK_NONE:
		return "none"
	case CALLBACK_BSCAN:
		return "bscan"
	case CALLBACK_FRX:
		return "frx"
	case CALLBACK_FTX:
		return "ftx"
	case CALLBACK_BTX:
		return "btx"
	}

	return fmt.Sprintf("callback(%d)", int(cb))
}

type EventKind int

const (
	EVENT_RADIO_DONE EventKind = iota + 1 /* Run Callback with Code and Aux. */
	EVENT_RADIO_DATA                      /* Sync word found, frame data arriving. */
	EVENT_RTC_ALARM                       /* RTC alarm Aux fired. */
)

type Event struct {
	Kind     EventKind
	Callback RadioCallback
	Code     int
	Aux      int
}

type EventSink interface {
	Post(ev Event)
}

/*
 * Everything the driver needs to start a transmission.  Queue is the
 * kernel's TX queue and stays valid for the whole operation; the flood
 * rewrites it in place between repetitions.
 */

type TxRequest struct {
	Channels   []uint8
	CSMAParams uint8
	Queue      *bytes.Buffer
}

type Radio interface {
	Attach(sink EventSink)

	RxInitBackground(channel uint8, cb RadioCallback)
	RxInitForeground(channel uint8, cb RadioCallback)
	TxInitBackground(req TxRequest, cb RadioCallback)
	TxInitForeground(req TxRequest, cb RadioCallback)

	// TxCSMA runs one contention step.  RADIO_CSMA_DONE means the
	// channel is clear and data transfer has started; a positive
	// value is a number of ticks to wait before calling again.
	TxCSMA() int
	PrepResend()
	ReenterRx(flags int)
	RxTimeout()
	TxStopFlood()
	Kill()

	RSSI() int
	PacketDuration(length int) int
	DefaultTgd(channel uint8) int
	RxFrame() []byte

	Sleep()
	Gag()
}
