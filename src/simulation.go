package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Run a kernel against the simulated platform, radio and
 *		network.
 *
 * Description:	The clock moves one tick at a time.  On every tick the
 *		radio is moved on, due RTC alarms are delivered, and the
 *		kernel is entered if anything asks for it: an event was
 *		posted, a preemption was requested, or the time it last
 *		returned has passed.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// SimSignals counts what the kernel reports.
type SimSignals struct {
	NopSignals

	Inits        int
	Terminations [RFA_TERM_TX + 1]int
	Failures     int /* Terminations with a negative code. */
	Panics       int
	Prestarts    [IDLE_EVENTS]int
}

func (s *SimSignals) RFAInit(int) {
	s.Inits++
}

func (s *SimSignals) RFATerminate(phase int, code int) {
	if phase >= 0 && phase < len(s.Terminations) {
		s.Terminations[phase]++
	}

	if code < 0 {
		s.Failures++
	}
}

func (s *SimSignals) Panic(int) {
	s.Panics++
}

func (s *SimSignals) IdlePrestart(class IdleClass) {
	if class >= 0 && class < IDLE_EVENTS {
		s.Prestarts[class]++
	}
}

type Simulation struct {
	Platform *SimPlatform
	Radio    *SimRadio
	Network  *SimNetwork
	Signals  *SimSignals
	Kernel   *Kernel

	eta     int
	entries int /* Times the kernel was entered. */
	started bool
}

func NewSimulation(cfg *Config, seed int64, trace *TraceLog) (*Simulation, error) {
	var validateErr = cfg.Validate()
	if validateErr != nil {
		return nil, errors.Wrap(validateErr, "simulation config")
	}

	var s = &Simulation{
		Platform: NewSimPlatform(seed),
		Network:  NewSimNetwork(cfg.PhyMac.EIRPdBm),
		Signals:  new(SimSignals),
	}

	s.Radio = NewSimRadio(s.Platform, seed+1)
	s.Radio.CCABusyPercent = cfg.CCABusyPercent

	for _, f := range cfg.SimTraffic() {
		s.Radio.Inject(f)
	}

	s.Kernel = NewKernel(KernelOptions{
		Radio:    s.Radio,
		Platform: s.Platform,
		Network:  s.Network,
		Store:    cfg.ISF(),
		Signals:  s.Signals,
		Trace:    trace,
		PhyMac:   cfg.KernelPhyMac(),
		Features: cfg.KernelFeatures(),
	})

	var initErr = s.Kernel.Init()
	if initErr != nil {
		return nil, errors.Wrap(initErr, "starting kernel")
	}

	return s, nil
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:     Move the simulation on by some number of ticks.
 *
 *--------------------------------------------------------------------*/

func (s *Simulation) Run(ticks int) {
	var end = s.Platform.Now() + ticks

	if !s.started {
		s.started = true
		s.Radio.Tick()
		s.enter(true)
	}

	for s.Platform.Now() < end {
		s.Platform.Advance(1)
		s.Radio.Tick()

		for _, id := range s.Platform.DueAlarms() {
			s.Kernel.RTCAlarm(id)
		}

		s.enter(false)
	}
}

func (s *Simulation) enter(force bool) {
	var woken = false

	select {
	case <-s.Kernel.Wake():
		woken = true
	default:
	}

	var preempted = s.Platform.TakePreempt()

	if force || woken || preempted || s.Platform.Elapsed() >= s.eta {
		s.eta = s.Kernel.EventManager(s.Platform.Elapsed())
		s.entries++
	}
}

func (s *Simulation) Entries() int {
	return s.entries
}

func (s *Simulation) PrintSummary(w io.Writer) {
	var ks = s.Kernel.Stats()

	fmt.Fprintf(w, "Simulated %d ticks, kernel entered %d times.\n", s.Platform.Now(), s.entries)

	fmt.Fprintf(w, "\nTasks dispatched:\n")
	for t := TASK_IDLE; t < TASK_TERMINUS; t++ {
		fmt.Fprintf(w, "  %-12s %d\n", t, ks.Dispatched[t])
	}

	fmt.Fprintf(w, "\nRadio terminations:\n")
	for _, term := range []struct {
		name  string
		phase int
	}{
		{"bscan", RFA_TERM_BSCAN},
		{"frx", RFA_TERM_FRX},
		{"csma", RFA_TERM_CSMA},
		{"flood", RFA_TERM_FLOOD},
		{"tx", RFA_TERM_TX},
	} {
		fmt.Fprintf(w, "  %-12s %d\n", term.name, s.Signals.Terminations[term.phase])
	}
	fmt.Fprintf(w, "  %-12s %d\n", "failed", s.Signals.Failures)

	fmt.Fprintf(w, "\nRadio: heard %d, missed %d, crc errors %d, cca fails %d, sent %d, killed %d\n",
		s.Radio.Stats.FramesHeard, s.Radio.Stats.FramesMissed, s.Radio.Stats.CRCErrors,
		s.Radio.Stats.CCAFails, s.Radio.Stats.Transmissions, s.Radio.Stats.Kills)

	fmt.Fprintf(w, "Network: requests %d, responses %d, background %d, rejected %d\n",
		s.Network.Stats.Requests, s.Network.Stats.Responses, s.Network.Stats.Background, s.Network.Stats.Rejected)

	fmt.Fprintf(w, "Kernel: csma failures %d, filter rejects %d, watchdog kills %d, panics %d, events %d/%d\n",
		ks.CSMAFailures, ks.FilterRejects, ks.WatchdogKills, ks.Panics, ks.EventsDrained, ks.EventsPosted)
}
