package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Hooks an application can hang off the kernel.
 *
 * Description:	Signals are chosen when the kernel is built.  Anything
 *		not interesting can embed NopSignals and override just the
 *		methods it cares about.
 *
 *		Hooks run with the kernel locked.  They get a Control rather
 *		than the Kernel so they can start sessions without taking
 *		the lock a second time.
 *
 *---------------------------------------------------------------*/

type IdleClass int

const (
	IDLE_HOLD IdleClass = iota
	IDLE_SLEEP
	IDLE_BEACON
	IDLE_EXTERNAL
	IDLE_EVENTS
)

func (c IdleClass) String() string {
	switch c {
	case IDLE_HOLD:
		return "hold"
	case IDLE_SLEEP:
		return "sleep"
	case IDLE_BEACON:
		return "beacon"
	case IDLE_EXTERNAL:
		return "external"
	case IDLE_EVENTS:
	}

	return "unknown"
}

type Control interface {
	NewSession(tmpl SessionTemplate) uint16
	OpenRequest(addr uint8, routing []byte) bool
	CloseRequest() bool
	StartDialog()
	// SetExternalEvent arms (eventNo != 0) or disarms the external idle event.
	SetExternalEvent(eventNo int, nextEvent int)
	Sessions() SessionStack
}

type Signals interface {
	// LoadApp runs when the kernel has nothing to do.  Return true to
	// make the kernel go around again, usually after creating a session.
	LoadApp(ctl Control) bool
	Panic(code int)
	RFAInit(phase int)
	RFATerminate(phase int, code int)
	IdlePrestart(class IdleClass)
	ExtProcess(ctl Control)
}

type NopSignals struct{}

func (NopSignals) LoadApp(Control) bool   { return false }
func (NopSignals) Panic(int)              {}
func (NopSignals) RFAInit(int)            {}
func (NopSignals) RFATerminate(int, int)  {}
func (NopSignals) IdlePrestart(IdleClass) {}
func (NopSignals) ExtProcess(ctl Control) { ctl.SetExternalEvent(0, 0) }
