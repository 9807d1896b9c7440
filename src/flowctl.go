package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Flow and congestion control for TX contention.
 *
 * Description:	Two bits of the CSMA parameters pick the policy:
 *
 *		  0  RIGD	Random Increase Geometric Decay.  Each
 *				failed attempt halves tc and picks a new
 *				random slot inside it.
 *		  1  RAIND	Random Additive Increase No Decay.
 *		  2  AIND	Additive Increase No Decay.
 *		  3  MACCA	Fixed wait of the guard time.
 *
 *		Nothing here returns a negative delay.  The caller gives up
 *		when tca goes negative.
 *
 *---------------------------------------------------------------*/

type csmaPolicy int

const (
	POLICY_RIGD csmaPolicy = iota
	POLICY_RAIND
	POLICY_AIND
	POLICY_MACCA
)

func (k *Kernel) csmaPolicy() csmaPolicy {
	return csmaPolicy((k.dll.comm.CSMAParams >> 3) & 3)
}

/*
 * Halve tc, restart tca from it and pick a slot inside.  tc never goes
 * below one tick, so the modulo is always defined.
 */

func (k *Kernel) rigdNewSlot() int {
	var random = int(k.platform.Rand16())

	k.dll.comm.Tc = max(k.dll.comm.Tc>>1, 1)
	k.dll.comm.Tca = k.dll.comm.Tc

	return random % k.dll.comm.Tc
}

// Whatever is left of the current subslot.
func (k *Kernel) rigdNextSlot() int {
	return max(k.dll.comm.Tc-k.dll.comm.Tca, 0)
}

// One packet at the front of the TX queue.  Used by RAIND and AIND.
func (k *Kernel) aindNextSlot() int {
	return k.radio.PacketDuration(k.txLengthByte())
}

func (k *Kernel) txLengthByte() int {
	var b = k.txq.Bytes()
	if len(b) == 0 {
		return 0
	}

	return int(b[0])
}

/*-------------------------------------------------------------------
 *
 * Name:        fcInit
 *
 * Purpose:     Pick the offset of the first TX attempt.
 *
 * Returns:	Ticks to wait.  Only RIGD and RAIND randomize.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) fcInit() int {
	switch k.csmaPolicy() {
	case POLICY_RIGD:
		return k.rigdNewSlot()

	case POLICY_RAIND:
		var random = int(k.platform.Rand16())
		var span = k.dll.comm.Tca - k.radio.PacketDuration(k.txLengthByte())
		if span <= 0 {
			return 0
		}
		return random % span

	case POLICY_AIND, POLICY_MACCA:
	}

	return 0
}

/*
 * Query score from the network layer.  Higher scores could be used to
 * order replies; nothing does that yet.
 */

func (k *Kernel) fcEval(_ int) {
}

/*-------------------------------------------------------------------
 *
 * Name:        fcLoop
 *
 * Purpose:     Delay before the next attempt after the channel was
 *		found busy.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) fcLoop() int {
	switch k.csmaPolicy() {
	case POLICY_RIGD:
		var wait = k.rigdNextSlot()
		return wait + k.rigdNewSlot()

	case POLICY_RAIND, POLICY_AIND:
		return k.aindNextSlot()

	case POLICY_MACCA:
		// At least a tick, or a busy channel never lets tca run down.
		return max(k.phymac.Tg, 1)
	}

	return 0
}

/*
 * Shuffle the response channel list so devices answering the same request
 * don't all land on the same channel.
 */

func (k *Kernel) csmaScramble() {
	var list = k.dll.comm.TxChannels
	var n = len(list)

	if n <= 1 {
		return
	}

	var rot1 = k.platform.Rand8()
	var rot2 = k.platform.Rand8()

	for i := 0; i < n-1; i++ {
		var j = i + IfThenElse(rot1&1 != 0, 1, 0)
		var m = (n - 1) * IfThenElse(rot2&1 != 0, 1, 0)

		list[i], list[m] = list[m], list[i]
		list[i], list[j] = list[j], list[i]

		rot1 >>= 1
		rot2 >>= 1
	}
}

/*
 * CSMA for a channel nobody asked about.  Channels in the base and legacy
 * bands (spectrum bits 00 and 11) go without CSMA.
 */

func DefaultCSMA(channel uint8) uint8 {
	var band = channel & 0x30
	if band == 0x00 || band == 0x30 {
		return CSMACA_NOCSMA
	}

	return 0
}
