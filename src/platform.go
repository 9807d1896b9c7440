package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Platform services used by the kernel: the general purpose
 *		tick timer, kernel preemption, the real time clock alarms
 *		and the pseudo random number source.
 *
 *		One tick is 1/1024 second throughout.
 *
 *---------------------------------------------------------------*/

import (
	"math/rand"
	"slices"
)

type Platform interface {
	// Elapsed returns ticks since the last Flush.
	Elapsed() int
	Flush()
	// Preempt asks for the kernel loop to be re-entered as soon as possible.
	Preempt()
	SetRTCAlarm(id uint8, mask uint16, value uint16)
	ActivateRTC(id uint8)
	Rand16() uint16
	Rand8() uint8
}

type RTCAlarm struct {
	Mask   uint16
	Value  uint16
	Active bool
}

/*-------------------------------------------------------------------
 *
 * Name:        SimPlatform
 *
 * Purpose:     Platform with a virtual clock, for the simulator and tests.
 *
 * Description:	Time only moves when Advance is called.  Preemption
 *		requests are latched until TakePreempt reads them.
 *
 *--------------------------------------------------------------------*/

type SimPlatform struct {
	now       int
	mark      int
	preempted bool
	rng       *rand.Rand
	Alarms    map[uint8]*RTCAlarm
}

func NewSimPlatform(seed int64) *SimPlatform {
	return &SimPlatform{
		rng:    rand.New(rand.NewSource(seed)), //nolint:gosec
		Alarms: make(map[uint8]*RTCAlarm),
	}
}

func (p *SimPlatform) Now() int {
	return p.now
}

func (p *SimPlatform) Advance(ticks int) {
	if ticks > 0 {
		p.now += ticks
	}
}

func (p *SimPlatform) Elapsed() int {
	return p.now - p.mark
}

func (p *SimPlatform) Flush() {
	p.mark = p.now
}

func (p *SimPlatform) Preempt() {
	p.preempted = true
}

func (p *SimPlatform) TakePreempt() bool {
	var was = p.preempted
	p.preempted = false

	return was
}

func (p *SimPlatform) SetRTCAlarm(id uint8, mask uint16, value uint16) {
	var alarm, ok = p.Alarms[id]
	if !ok {
		alarm = new(RTCAlarm)
		p.Alarms[id] = alarm
	}

	alarm.Mask = mask
	alarm.Value = value
}

func (p *SimPlatform) ActivateRTC(id uint8) {
	var alarm, ok = p.Alarms[id]
	if !ok {
		alarm = new(RTCAlarm)
		p.Alarms[id] = alarm
	}

	alarm.Active = true
}

/*
 * DueAlarms returns the ids of active alarms matching the current time,
 * (now & mask) == value, as the RTC hardware would.
 */
func (p *SimPlatform) DueAlarms() []uint8 {
	var due []uint8

	for id, alarm := range p.Alarms {
		if alarm.Active && alarm.Mask != 0 && (uint16(p.now)&alarm.Mask) == alarm.Value {
			due = append(due, id)
		}
	}

	slices.Sort(due)

	return due
}

func (p *SimPlatform) Rand16() uint16 {
	return uint16(p.rng.Intn(1 << 16)) //nolint:gosec
}

func (p *SimPlatform) Rand8() uint8 {
	return uint8(p.rng.Intn(1 << 8)) //nolint:gosec
}
