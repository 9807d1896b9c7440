package otkernel

/*------------------------------------------------------------------
 *
 * Purpose:   	Session stack.
 *
 * Description:	A session is one dialog (or one scan) that the kernel is
 *		going to run at some time in the future.  The stack is kept
 *		in order of the session counters so the top is always the
 *		next one due.
 *
 *		The kernel only uses the SessionStack interface.  The
 *		bounded stack below is what ships with the module and what
 *		the simulator uses.
 *
 *---------------------------------------------------------------*/

type Session struct {
	ID         uint16
	DialogID   uint8
	Channel    uint8
	Subnet     uint8
	Flags      uint8
	Netstate   uint8
	Counter    int  /* Ticks until the session is due.  <= 0 means due now. */
	Datastream bool /* Multi-frame datastream dialog. */
}

func (s *Session) role() uint8 {
	return s.Netstate & NETSTATE_TMASK
}

type SessionStack interface {
	// New places a session on the stack, ordered by delay.  Returns nil
	// when the stack is full.
	New(delay int, netstate uint8, channel uint8) *Session
	Top() *Session
	Pop()
	// Drop removes sessions beneath the top whose counters have run out.
	Drop()
	Flush()
	// Refresh counts all sessions down and reports whether the top is due.
	Refresh(elapsed int) bool
	// Count returns the index of the top session, -1 when empty.
	Count() int
}

const SESSION_DEPTH = 4

type FixedSessionStack struct {
	sessions   []*Session /* Top of stack is the last element. */
	depth      int
	lastID     uint16
	lastDialog uint8
}

func NewSessionStack(depth int) *FixedSessionStack {
	if depth <= 0 {
		depth = SESSION_DEPTH
	}

	return &FixedSessionStack{
		sessions: make([]*Session, 0, depth),
		depth:    depth,
	}
}

func (ss *FixedSessionStack) New(delay int, netstate uint8, channel uint8) *Session {
	if len(ss.sessions) >= ss.depth {
		return nil
	}

	ss.lastID++
	if ss.lastID == 0 {
		ss.lastID = 1 // 0 is reserved for "no session"
	}
	ss.lastDialog++

	var s = &Session{
		ID:       ss.lastID,
		DialogID: ss.lastDialog,
		Channel:  channel,
		Netstate: netstate,
		Counter:  delay,
	}

	/* Everything above the insertion point is due strictly sooner. */
	var at = len(ss.sessions)
	for at > 0 && ss.sessions[at-1].Counter < delay {
		at--
	}

	ss.sessions = append(ss.sessions, nil)
	copy(ss.sessions[at+1:], ss.sessions[at:])
	ss.sessions[at] = s

	return s
}

func (ss *FixedSessionStack) Top() *Session {
	if len(ss.sessions) == 0 {
		return nil
	}

	return ss.sessions[len(ss.sessions)-1]
}

func (ss *FixedSessionStack) Pop() {
	if len(ss.sessions) == 0 {
		return
	}

	ss.sessions[len(ss.sessions)-1] = nil
	ss.sessions = ss.sessions[:len(ss.sessions)-1]
}

func (ss *FixedSessionStack) Drop() {
	if len(ss.sessions) < 2 {
		return
	}

	var top = ss.sessions[len(ss.sessions)-1]
	var kept = ss.sessions[:0]
	for _, s := range ss.sessions[:len(ss.sessions)-1] {
		if s.Counter > 0 {
			kept = append(kept, s)
		}
	}
	kept = append(kept, top)

	for i := len(kept); i < len(ss.sessions); i++ {
		ss.sessions[i] = nil
	}
	ss.sessions = kept
}

func (ss *FixedSessionStack) Flush() {
	for i := range ss.sessions {
		ss.sessions[i] = nil
	}
	ss.sessions = ss.sessions[:0]
}

func (ss *FixedSessionStack) Refresh(elapsed int) bool {
	for _, s := range ss.sessions {
		s.Counter -= elapsed
	}

	var top = ss.Top()

	return top != nil && top.Counter <= 0
}

func (ss *FixedSessionStack) Count() int {
	return len(ss.sessions) - 1
}
