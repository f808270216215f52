package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/asyncweb/pkg/asyncweb/bufpool"
)

type stubItem struct {
	progressed int
	removeAt   int
	onProgress func()
}

func (s *stubItem) MakeProgress(budget int) bool {
	s.progressed++
	if s.onProgress != nil {
		s.onProgress()
	}
	return s.removeAt > 0 && s.progressed >= s.removeAt
}

func TestSchedulerAddArmsAndTickVisitsEveryEntry(t *testing.T) {
	armed := 0
	disarmed := 0
	s := New(bufpool.New(1), func() { armed++ }, func() { disarmed++ })

	a := &stubItem{}
	b := &stubItem{}
	s.Add(a)
	s.Add(b)
	require.Equal(t, 1, armed, "arming should only fire once across multiple adds")
	require.Equal(t, 2, s.Len())

	s.Tick()

	require.Equal(t, 1, a.progressed)
	require.Equal(t, 1, b.progressed)
	require.Equal(t, 0, disarmed)
}

func TestSchedulerRemoveDuringTickLeavesCursorValid(t *testing.T) {
	s := New(bufpool.New(1), nil, nil)
	a := &stubItem{removeAt: 1}
	b := &stubItem{}
	c := &stubItem{}
	s.Add(a)
	s.Add(b)
	s.Add(c)

	s.Tick()
	require.Equal(t, 2, s.Len(), "the entry reporting remove=true must be gone")

	// A second tick must still visit the two survivors exactly once each,
	// proving the cursor wasn't left pointing at the removed slot.
	s.Tick()
	require.Equal(t, 2, b.progressed)
	require.Equal(t, 2, c.progressed)
}

func TestSchedulerDisarmsWhenRingEmpties(t *testing.T) {
	disarmed := 0
	s := New(bufpool.New(1), nil, func() { disarmed++ })
	a := &stubItem{removeAt: 1}
	s.Add(a)

	s.Tick()

	require.Equal(t, 0, s.Len())
	require.Equal(t, 1, disarmed)
}

func TestSchedulerReentrantAddDuringMakeProgress(t *testing.T) {
	s := New(bufpool.New(1), nil, nil)
	var mu sync.Mutex
	added := false

	a := &stubItem{}
	a.onProgress = func() {
		mu.Lock()
		defer mu.Unlock()
		if !added {
			added = true
			s.Add(&stubItem{})
		}
	}
	s.Add(a)

	require.NotPanics(t, func() { s.Tick() })
	require.Equal(t, 2, s.Len())
}
