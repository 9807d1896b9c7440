package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Admission filter for received frames.
 *
 * Description:	Two checks, both must pass.
 *
 *		Link budget: the sender puts its TX EIRP in the header,
 *		encoded as (dBm + 40) * 2.  Link loss is that EIRP minus
 *		the RSSI we measured and must be no more than the
 *		configured link quality limit.
 *
 *		Subnet: the low nibble of the device subnet is a mask the
 *		frame subnet must contain.  The high nibble of the frame
 *		subnet is the specifier, either 0xF (broadcast) or equal
 *		to the device's own.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"

	"github.com/lunixbochs/struc"
)

// First bytes of every Mode 2 frame.
type frameHeader struct {
	Length  uint8 `struc:"uint8"`
	TxEIRP  uint8 `struc:"uint8"`
	Subnet  uint8 `struc:"uint8"`
	Control uint8 `struc:"uint8"`
}

const FRAME_HEADER_BYTES = 4

func decodeFrameHeader(frame []byte) (*frameHeader, error) {
	var hdr = new(frameHeader)

	var err = struc.Unpack(bytes.NewReader(frame), hdr)
	if err != nil {
		return nil, err
	}

	return hdr, nil
}

func encodeFrameHeader(hdr *frameHeader) []byte {
	var buf bytes.Buffer

	// Fixed size struct of bytes, can't fail.
	_ = struc.Pack(&buf, hdr)

	return buf.Bytes()
}

// EncodeEIRP gives the header byte for a TX power in dBm.
func EncodeEIRP(dBm int) uint8 {
	return uint8(min(max((dBm+40)*2, 0), 0x7F)) //nolint:gosec
}

func DecodeEIRP(raw uint8) int {
	return int((raw>>1)&0x3F) - 40
}

func linkLoss(raw uint8, rssi int) int {
	return DecodeEIRP(raw) - rssi
}

func subnetMatch(frameSubnet uint8, deviceSubnet uint8) bool {
	var dsm = deviceSubnet & 0x0F
	var mask = frameSubnet & dsm
	var specifier = (frameSubnet ^ deviceSubnet) & 0xF0

	return (frameSubnet&0xF0 == 0xF0 || specifier == 0) && mask == dsm
}

func (k *Kernel) macFilter(frame []byte) bool {
	var hdr, err = decodeFrameHeader(frame)
	if err != nil {
		kernelLog.Debug("frame too short for header", "length", len(frame), "err", err)
		return false
	}

	var loss = linkLoss(hdr.TxEIRP, k.radio.RSSI())
	var ok = loss <= k.phymac.LinkQuality && subnetMatch(hdr.Subnet, k.dll.netconf.Subnet)

	if !ok {
		kernelLog.Debug("filter reject", "linkloss", loss, "limit", k.phymac.LinkQuality,
			"subnet", hdr.Subnet, "device", k.dll.netconf.Subnet)
	}

	return ok
}
