package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Application interface to the kernel.
 *
 * Description:	The exported Kernel methods take the kernel lock.  Signal
 *		handlers already run under the lock, so they get a Control
 *		whose methods go straight to the unlocked versions.
 *
 *		A typical request:
 *
 *			id := k.NewSession(tmpl)
 *			k.OpenRequest(addr, routing)
 *			... write the request body ...
 *			k.CloseRequest()
 *			k.StartDialog()
 *
 *---------------------------------------------------------------*/

type SessionTemplate struct {
	Channel    uint8
	Subnet     uint8
	SubnetMask uint8 /* Bits taken from Subnet, the rest from the device. */
	Flags      uint8
	FlagMask   uint8 /* Bits taken from Flags, the rest from the device. */
	Timeout    int   /* Contention budget, ticks. */
}

/*-------------------------------------------------------------------
 *
 * Name:        newSession
 *
 * Purpose:     Start an ad hoc request session.
 *
 * Returns:	Session id, 0 when the stack has no room.
 *
 * Description:	Anything already on the stack is flushed.  The session
 *		goes out on one channel with one copy and no A2P.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) newSession(tmpl SessionTemplate) uint16 {
	k.sessions.Flush()

	var s = k.sessions.New(0, NETSTATE_INIT|NETSTATE_REQTX, tmpl.Channel)
	if s == nil {
		return 0
	}

	s.Subnet = (k.dll.netconf.Subnet &^ tmpl.SubnetMask) | (tmpl.Subnet & tmpl.SubnetMask)
	s.Flags = (k.dll.netconf.DDFlags &^ tmpl.FlagMask) | (tmpl.Flags & tmpl.FlagMask)

	k.dll.comm.Tc = tmpl.Timeout
	k.dll.comm.Redundants = 1
	k.dll.comm.TxChannels = []uint8{s.Channel}
	k.dll.comm.RxChannels = []uint8{s.Channel}
	k.dll.comm.CSMAParams = CSMACA_NA2P | CSMACA_MACCA

	return s.ID
}

// Unicast and anycast addresses (bit 6 clear) carry routing.
func (k *Kernel) openRequest(addr uint8, routing []byte) bool {
	var s = k.sessions.Top()
	if s == nil {
		return false
	}

	if addr&0x40 == 0 {
		k.link.Routing = append(k.link.Routing[:0], routing...)
	}

	k.network.Header(k.link, s, addr, 0)

	return true
}

func (k *Kernel) closeRequest() bool {
	var s = k.sessions.Top()
	if s == nil {
		return false
	}

	k.network.Footer(k.link, s)

	return true
}

/*
 * Stop whatever is running and get the kernel to pick up the new session.
 * Killing the radio works any time, but it is bad form while data is
 * moving, so check Mutex() first.
 */

func (k *Kernel) startDialog() {
	if k.sys.mutex != 0 {
		k.sys.mutex = 0
		k.radio.Kill()
	}

	k.platform.Preempt()
}

func (k *Kernel) NewSession(tmpl SessionTemplate) uint16 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.newSession(tmpl)
}

func (k *Kernel) OpenRequest(addr uint8, routing []byte) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.openRequest(addr, routing)
}

func (k *Kernel) CloseRequest() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.closeRequest()
}

func (k *Kernel) StartDialog() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.startDialog()
}

/*-------------------------------------------------------------------
 *
 * Name:        StartFlood
 *
 * Purpose:     Advertise the top session with a background flood
 *		before sending it.
 *
 * Inputs:	duration	- Advertising time, ticks.  0 skips the
 *				  flood and starts the dialog directly.
 *
 * Returns:	What EventManager returns, 1 when there was no flood,
 *		or 0 when the flood could not be set up (the session is
 *		dropped).
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) StartFlood(duration int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	if duration == 0 {
		k.startDialog()
		return 1
	}

	var s = k.sessions.Top()
	if s == nil || !k.features.Flood {
		return 0
	}

	if k.network.InitFlood(k.link, s, duration) < 0 {
		k.sessions.Pop()
		return 0
	}

	k.sys.advTime = duration
	k.sysevtInitBTX()

	return k.eventManager(0)
}

func (k *Kernel) ChangeSettings(mask uint16, settings uint16) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.changeSettings(mask, settings)
}

// Panic runs the panic path from outside the kernel.
func (k *Kernel) Panic(code int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.sysPanic(code)
}

// RTCAlarm is called when RTC alarm id fires.  Safe from any goroutine.
func (k *Kernel) RTCAlarm(id uint8) {
	k.Post(Event{Kind: EVENT_RTC_ALARM, Aux: int(id)})
}

// TopSession returns a copy of the session due next.
func (k *Kernel) TopSession() (Session, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var s = k.sessions.Top()
	if s == nil {
		return Session{}, false
	}

	return *s, true
}

func (k *Kernel) NetConfig() NetConfig {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.dll.netconf
}

type kernelControl struct {
	k *Kernel
}

func (c *kernelControl) NewSession(tmpl SessionTemplate) uint16 {
	return c.k.newSession(tmpl)
}

func (c *kernelControl) OpenRequest(addr uint8, routing []byte) bool {
	return c.k.openRequest(addr, routing)
}

func (c *kernelControl) CloseRequest() bool {
	return c.k.closeRequest()
}

func (c *kernelControl) StartDialog() {
	c.k.startDialog()
}

func (c *kernelControl) SetExternalEvent(eventNo int, nextEvent int) {
	c.k.setExternalEvent(eventNo, nextEvent)
}

func (c *kernelControl) Sessions() SessionStack {
	return c.k.sessions
}
