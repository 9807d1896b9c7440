package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Kernel event manager for DASH7 Mode 2.
 *
 * Description:	The "system" is an event manager doing part of the job
 *		of the session layer and part of the MAC.  There is a set
 *		of events, each needs a certain kind of action, and running
 *		one event usually schedules another.
 *
 *		EventManager is the only way in.  Call it at startup, after
 *		every preemption request, and whenever the time it last
 *		returned has passed.  It dispatches ready tasks one at a
 *		time, highest priority first, and returns the number of
 *		ticks until it next needs to run.
 *
 *		Everything below is guarded by one mutex, held for the
 *		whole of any dispatch or radio callback.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"fmt"
	"sync"
)

type NetConfig struct {
	Subnet         uint8
	BeaconSubnet   uint8
	DDFlags        uint8
	BeaconAttempts uint8
	Active         uint16
	HoldLimit      uint16
}

/*
 * Parameters of the radio operation in progress.
 *
 * Tca is the contention window still left, clocked down by the kernel.
 * Negative Tca means the window is gone.
 */

type CommDescriptor struct {
	Tc         int
	Tca        int
	Redundants int
	TxChannels []uint8
	RxChannels []uint8
	CSMAParams uint8
	RxTimeout  int
}

type PhyMac struct {
	LinkQuality int /* Largest acceptable link loss, dB. */
	Tg          int /* Guard time, ticks. */
}

/* Optional parts of the kernel.  These were build options once. */

type Features struct {
	Endpoint       bool
	Beacons        bool
	ExternalEvent  bool
	Flood          bool
	RTCSleep       bool
	RTCHold        bool
	RTCBeacon      bool
	WatchdogPeriod int /* Software watchdog period in loop passes, 0 disables. */
}

type taskIndex int

const (
	TASK_IDLE taskIndex = iota
	TASK_PROCESSING
	TASK_RADIO
	TASK_SESSION
	TASK_HOLD
	TASK_SLEEP
	TASK_BEACON
	TASK_EXTERNAL
	TASK_TERMINUS
)

func (t taskIndex) String() string {
	switch t {
	case TASK_IDLE:
		return "idle"
	case TASK_PROCESSING:
		return "processing"
	case TASK_RADIO:
		return "radio"
	case TASK_SESSION:
		return "session"
	case TASK_HOLD:
		return "hold"
	case TASK_SLEEP:
		return "sleep"
	case TASK_BEACON:
		return "beacon"
	case TASK_EXTERNAL:
		return "external"
	case TASK_TERMINUS:
	}

	return fmt.Sprintf("task(%d)", int(t))
}

type KernelStats struct {
	Dispatched    [TASK_TERMINUS]int
	Terminations  int
	CSMAFailures  int
	FilterRejects int
	WatchdogKills int
	Panics        int
	EventsPosted  int
	EventsDrained int
	EventsPending int
}

type KernelOptions struct {
	Radio    Radio
	Platform Platform
	Network  Network
	Store    ConfigStore
	Sessions SessionStack /* Default: bounded stack of SESSION_DEPTH. */
	Signals  Signals      /* Default: NopSignals. */
	Trace    *TraceLog    /* Optional CSV event trace. */
	PhyMac   PhyMac
	Features Features
}

type Kernel struct {
	mu sync.Mutex

	dll struct {
		netconf   NetConfig
		comm      CommDescriptor
		idleState uint8
	}

	sys struct {
		mutex     uint8
		watchdog  int
		holdCycle int
		advTime   int /* Flood advertising time left. */
		idle      [IDLE_EVENTS]idleEvent
		rfa       rfaEvent
	}

	phymac   PhyMac
	features Features

	radio    Radio
	platform Platform
	network  Network
	store    ConfigStore
	sessions SessionStack
	signals  Signals
	trace    *TraceLog

	events  *eventQueue
	txq     bytes.Buffer
	link    *Link
	control *kernelControl
	stats   KernelStats
}

func NewKernel(opts KernelOptions) *Kernel {
	Assert(opts.Radio != nil)
	Assert(opts.Platform != nil)
	Assert(opts.Network != nil)
	Assert(opts.Store != nil)

	var k = &Kernel{
		phymac:   opts.PhyMac,
		features: opts.Features,
		radio:    opts.Radio,
		platform: opts.Platform,
		network:  opts.Network,
		store:    opts.Store,
		sessions: opts.Sessions,
		signals:  opts.Signals,
		trace:    opts.Trace,
		events:   newEventQueue(),
	}

	if k.sessions == nil {
		k.sessions = NewSessionStack(SESSION_DEPTH)
	}

	if k.signals == nil {
		k.signals = NopSignals{}
	}

	k.sys.idle[IDLE_HOLD].class = IDLE_HOLD
	k.sys.idle[IDLE_HOLD].table = ISF_HOLD_SCAN_SEQ
	k.sys.idle[IDLE_SLEEP].class = IDLE_SLEEP
	k.sys.idle[IDLE_SLEEP].table = ISF_SLEEP_SCAN_SEQ
	k.sys.idle[IDLE_BEACON].class = IDLE_BEACON
	k.sys.idle[IDLE_BEACON].table = ISF_BEACON_TRANSMIT_SEQ
	k.sys.idle[IDLE_EXTERNAL].class = IDLE_EXTERNAL
	k.sys.idle[IDLE_EXTERNAL].table = ISF_NONE

	k.link = &Link{
		Comm:     &k.dll.comm,
		Sessions: k.sessions,
		TxQueue:  &k.txq,
		Netconf:  &k.dll.netconf,
	}
	k.control = &kernelControl{k: k}

	k.radio.Attach(k)
	k.watchdogReset()

	return k
}

/*-------------------------------------------------------------------
 *
 * Name:        Init
 *
 * Purpose:     Load the network settings and send the system to idle.
 *
 * Returns:	Error if the network settings file can't be read.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) Init() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.refresh()
}

/*
 * Post is how drivers hand events to the kernel.  Safe from any
 * goroutine, never blocks.
 */

func (k *Kernel) Post(ev Event) {
	k.events.post(ev)
}

/* Wake delivers a value whenever something has been posted. */

func (k *Kernel) Wake() <-chan struct{} {
	return k.events.wake
}

func (k *Kernel) Stats() KernelStats {
	k.mu.Lock()
	defer k.mu.Unlock()

	var s = k.stats
	s.EventsPosted, s.EventsDrained = k.events.counts()
	s.EventsPending = k.events.pending()

	return s
}

/*-------------------------------------------------------------------
 *
 * Name:        EventManager
 *
 * Purpose:     Run the kernel until there is nothing to do right now.
 *
 * Inputs:	elapsed	- Ticks since the last return.
 *
 * Returns:	Ticks until the kernel wants to run again.
 *
 * Description:	Each pass:
 *		  - Run any radio callbacks that were posted.
 *		  - Flush the timer; the time a task takes is measured and
 *		    subtracted from all timers on the next pass.
 *		  - Check the software watchdog.
 *		  - Clock everything and pick the highest priority task.
 *		  - Dispatch exactly that one task.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) EventManager(elapsed int) int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.eventManager(elapsed)
}

func (k *Kernel) eventManager(elapsed int) int {
	for {
		k.drainEvents()

		k.platform.Flush()

		k.watchdogCheck()

		var task = k.clockTasks(elapsed)
		if task != TASK_IDLE && task < TASK_TERMINUS {
			k.stats.Dispatched[task]++
		}
		kernelLog.Debug("dispatch", "task", task, "elapsed", elapsed, "mutex", k.sys.mutex)

		switch task {

		/*
		 * Completely idle.  Give the application a chance to start
		 * something.  If it doesn't, leave and report when the next
		 * known event is due.
		 */
		case TASK_IDLE:
			var eta = ETA_NEVER

			if k.sessions.Count() >= 0 {
				var s = k.sessions.Top()
				if s.Netstate&NETSTATE_CONNECTED != 0 {
					return s.Counter
				}
				eta = s.Counter
			}

			if k.signals.LoadApp(k.control) {
				k.stats.Dispatched[TASK_IDLE]++
				break
			}

			eta = min(eta, k.nextEvent())
			if eta <= 0 {
				break
			}

			return eta

		/*
		 * Packet processing.  Not assumed to be instantaneous: to keep
		 * slot timing precise it gets clocked like anything else.
		 */
		case TASK_PROCESSING:
			k.processFrame()

		/*
		 * Radio management.
		 *   - Listening: time out the RX in software.
		 *   - Contending: run the next CSMA step.
		 *   - Sending: wait for the driver, come back in 1 tick.
		 *   - Not due yet: report when it is.
		 */
		case TASK_RADIO:
			if k.sys.rfa.nextEvent > 0 {
				return k.sys.rfa.nextEvent
			}

			switch {
			case k.sys.rfa.phase.receiving():
				if !k.sysevtReceive() {
					k.watchdogRun()
					return 1
				}
			case k.sys.rfa.phase.contending():
				k.sysevtTxCSMA()
			default:
				k.watchdogRun()
				return 1
			}

		/*
		 * Session due.  The top session's role picks what happens:
		 * scrap it, start foreground TX, foreground scan, background
		 * TX (flood) or background scan.
		 */
		case TASK_SESSION:
			k.sessions.Drop()
			k.dll.idleState = k.defaultIdle()

			var s = k.sessions.Top()
			if s == nil {
				k.sysIdle()
				break
			}

			var callCode = s.Netstate >> 5
			if callCode&4 != 0 {
				k.sessions.Pop()
				k.sysIdle()
				break
			}

			switch callCode {
			case 0:
				k.sysevtInitFTX()
			case 1:
				k.sysevtFscan()
			case 2:
				k.sysevtInitBTX()
			case 3:
				k.sysevtBscan()
			}

		/*
		 * Hold scan.  An endpoint that has gone through the whole
		 * hold sequence hold_limit times drops into sleep scanning.
		 */
		case TASK_HOLD:
			var hss = &k.sys.idle[IDLE_HOLD]
			if hss.cursor == 0 {
				k.sys.holdCycle++
			}

			if k.features.Endpoint &&
				(k.dll.netconf.Active&SET_CLASSMASK) == SET_ENDPOINT &&
				k.sys.holdCycle == int(k.dll.netconf.HoldLimit) {
				k.gotoSleep()
				k.sysevtSleepScan()
			} else {
				k.sysevtHoldScan()
			}

		case TASK_SLEEP:
			k.sysevtSleepScan()

		case TASK_BEACON:
			k.sysevtBeacon()

		case TASK_EXTERNAL:
			k.signals.ExtProcess(k.control)

		default:
			k.sysPanic(PANIC_BAD_TASK)
		}

		k.watchdogReset()

		elapsed = k.platform.Elapsed()
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        clockTasks
 *
 * Purpose:     Clock every timer and find the task to run.
 *
 * Returns:	Highest priority ready task.  Priority, highest first:
 *		processing, radio, session, hold, sleep, beacon, external.
 *
 * Description:	Later assignments win, so the checks go from lowest to
 *		highest priority.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) clockTasks(elapsed int) taskIndex {
	var output = TASK_IDLE

	k.dll.comm.Tca -= elapsed

	for i := IDLE_EVENTS - 1; i >= 0; i-- {
		if k.advanceIdle(&k.sys.idle[i], elapsed) {
			output = TASK_HOLD + taskIndex(i)
		}
	}

	if k.sessions.Refresh(elapsed) {
		output = TASK_SESSION
	}

	if k.sys.rfa.phase != PHASE_IDLE {
		output = TASK_RADIO
		k.sys.rfa.nextEvent -= elapsed
	}

	if k.sys.mutex&MUTEX_PROCESSING != 0 {
		output = TASK_PROCESSING
	}

	return output
}

/*-------------------------------------------------------------------
 *
 * Name:        processFrame
 *
 * Purpose:     Hand a fully received frame to the network layer.
 *
 * Description:	A non-negative score means the frame was for us and a
 *		response may follow.  When the request asked us to listen
 *		afterwards, the session is cloned into a receive session
 *		that starts when the response contention period ends.
 *
 *--------------------------------------------------------------------*/

func (k *Kernel) processFrame() {
	defer k.clearMutex(MUTEX_PROCESSING)

	var s = k.sessions.Top()
	if s == nil {
		return
	}

	s.Counter = 0

	var score = k.network.RouteIncoming(k.link, s, k.radio.RxFrame())
	if score < 0 {
		return
	}

	k.fcEval(score)
	k.sys.holdCycle = 0
	k.dll.idleState = MACIDLE_HOLD

	if s.Flags&FLAG_LISTEN == 0 {
		return
	}

	k.sessions.Refresh(k.dll.comm.Tc)
	k.sessions.Drop()

	var rxChannel = s.Channel
	if len(k.dll.comm.RxChannels) > 0 {
		rxChannel = k.dll.comm.RxChannels[0]
	}

	var clone = k.sessions.New(k.dll.comm.Tc, NETSTATE_REQRX|NETSTATE_ASSOCIATED, rxChannel)
	if clone == nil {
		kernelLog.Warn("no room for listen session", "dialog", s.DialogID)
		return
	}

	clone.DialogID = s.DialogID
	clone.Subnet = s.Subnet
	clone.Channel = s.Channel
	k.dll.comm.Redundants = 0
	k.dll.comm.RxChannels = []uint8{s.Channel}
	k.dll.comm.RxTimeout = 10
	k.dll.comm.Tc -= k.radio.PacketDuration(k.txq.Len())
}

/*
 * Radio events and RTC alarms posted since the last pass.  Callbacks run
 * in the order they were posted.
 */

func (k *Kernel) drainEvents() {
	for _, ev := range k.events.take() {
		switch ev.Kind {
		case EVENT_RADIO_DONE:
			k.runCallback(ev.Callback, ev.Code, ev.Aux)

		case EVENT_RADIO_DATA:
			k.setMutex(MUTEX_RADIO_DATA)

		case EVENT_RTC_ALARM:
			k.rtcAlarm(uint8(ev.Aux)) //nolint:gosec

		default:
			kernelLog.Warn("unknown event", "kind", ev.Kind)
		}
	}
}

func (k *Kernel) runCallback(cb RadioCallback, code int, aux int) {
	switch cb {
	case CALLBACK_BSCAN:
		k.rfevtBscan(code, aux)
	case CALLBACK_FRX:
		k.rfevtFRX(code, aux)
	case CALLBACK_FTX:
		k.rfevtFTX(code, aux)
	case CALLBACK_BTX:
		k.rfevtBTX(code, aux)
	case CALLBACK_NONE:
		kernelLog.Warn("radio event without callback", "code", code)
	default:
		kernelLog.Warn("unknown radio callback", "callback", cb, "code", code)
	}
}

/*
 * Software watchdog.  Radio operations are interrupt driven; if one never
 * finishes, the watchdog runs out and the radio is killed.
 */

func (k *Kernel) watchdogRun() {
	if k.features.WatchdogPeriod > 0 {
		k.sys.watchdog--
	}
}

func (k *Kernel) watchdogReset() {
	k.sys.watchdog = k.features.WatchdogPeriod
}

func (k *Kernel) watchdogCheck() {
	if k.features.WatchdogPeriod > 0 && k.sys.watchdog <= 0 {
		kernelLog.Warn("watchdog expired, killing radio", "phase", k.sys.rfa.phase)
		k.stats.WatchdogKills++
		k.trace.Write("watchdog", int(k.sys.rfa.phase), 0, "")
		k.radio.Kill()
		k.watchdogReset()
	}
}

func (k *Kernel) setMutex(mask uint8) {
	k.sys.mutex |= mask
}

func (k *Kernel) clearMutex(mask uint8) {
	k.sys.mutex &^= mask
}

func (k *Kernel) SetMutex(mask uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.setMutex(mask)
}

func (k *Kernel) ClearMutex(mask uint8) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.clearMutex(mask)
}

func (k *Kernel) Mutex() uint8 {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.sys.mutex
}
