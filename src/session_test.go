package otkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSessionStack_Empty(t *testing.T) {
	var ss = NewSessionStack(0)

	assert.Nil(t, ss.Top())
	assert.Equal(t, -1, ss.Count())
	assert.False(t, ss.Refresh(10))

	ss.Pop()
	ss.Drop()
	assert.Equal(t, -1, ss.Count())
}

func TestSessionStack_Order(t *testing.T) {
	var ss = NewSessionStack(4)

	ss.New(10, NETSTATE_REQRX, 1)
	ss.New(5, NETSTATE_REQRX, 2)
	ss.New(7, NETSTATE_REQRX, 3)

	require.NotNil(t, ss.Top())
	assert.Equal(t, uint8(2), ss.Top().Channel)
	assert.Equal(t, 2, ss.Count())

	ss.Pop()
	assert.Equal(t, uint8(3), ss.Top().Channel)

	ss.Pop()
	assert.Equal(t, uint8(1), ss.Top().Channel)
}

func TestSessionStack_EqualDelayGoesOnTop(t *testing.T) {
	var ss = NewSessionStack(4)

	ss.New(0, NETSTATE_REQRX, 1)
	ss.New(0, NETSTATE_REQTX, 2)

	assert.Equal(t, uint8(2), ss.Top().Channel)
}

func TestSessionStack_Full(t *testing.T) {
	var ss = NewSessionStack(2)

	require.NotNil(t, ss.New(0, 0, 1))
	require.NotNil(t, ss.New(0, 0, 2))
	assert.Nil(t, ss.New(0, 0, 3))
}

func TestSessionStack_RefreshAndDrop(t *testing.T) {
	var ss = NewSessionStack(4)

	ss.New(100, 0, 1)
	ss.New(20, 0, 2)
	ss.New(10, 0, 3)

	assert.False(t, ss.Refresh(5))
	assert.True(t, ss.Refresh(20))

	// Top has -15, the 20 tick one is at -5 and goes, the 100 tick one stays.
	ss.Drop()
	assert.Equal(t, 1, ss.Count())
	assert.Equal(t, uint8(3), ss.Top().Channel)

	ss.Pop()
	assert.Equal(t, uint8(1), ss.Top().Channel)
	assert.Equal(t, 75, ss.Top().Counter)
}

func TestSessionStack_IDs(t *testing.T) {
	var ss = NewSessionStack(1)
	ss.lastID = 0xFFFF

	var s = ss.New(0, 0, 0)
	require.NotNil(t, s)
	assert.NotZero(t, s.ID)
}

func TestSessionStack_TopIsSoonest(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var delays = rapid.SliceOfN(rapid.IntRange(-100, 1000), 1, SESSION_DEPTH).Draw(t, "delays")

		var ss = NewSessionStack(SESSION_DEPTH)
		for i, d := range delays {
			ss.New(d, 0, uint8(i)) //nolint:gosec
		}

		var lowest = delays[0]
		for _, d := range delays {
			lowest = min(lowest, d)
		}

		assert.Equal(t, lowest, ss.Top().Counter)

		// Popping goes in order of counter.
		var last = ss.Top().Counter
		for ss.Count() >= 0 {
			assert.GreaterOrEqual(t, ss.Top().Counter, last)
			last = ss.Top().Counter
			ss.Pop()
		}
	})
}
