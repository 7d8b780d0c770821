package battery

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_StartsUnset(t *testing.T) {
	s := New()

	_, ok := s.HouseSoC()
	assert.False(t, ok)
	_, ok = s.EVSoC()
	assert.False(t, ok)

	_, _, ok = s.Snapshot()
	assert.False(t, ok)
}

func TestState_SnapshotRequiresBothFields(t *testing.T) {
	s := New()

	s.SetHouseSoC(85)
	_, _, ok := s.Snapshot()
	assert.False(t, ok, "snapshot should not be ready with only house SoC")

	s.SetEVSoC(20)
	house, ev, ok := s.Snapshot()
	assert.True(t, ok)
	assert.Equal(t, 85.0, house)
	assert.Equal(t, 20.0, ev)
}

func TestState_LastWriteWins(t *testing.T) {
	s := New()

	s.SetHouseSoC(50)
	s.SetHouseSoC(51)
	s.SetHouseSoC(49.5)

	v, ok := s.HouseSoC()
	assert.True(t, ok)
	assert.Equal(t, 49.5, v)
}

func TestState_ZeroIsAValidValue(t *testing.T) {
	s := New()

	s.SetEVSoC(0)
	v, ok := s.EVSoC()
	assert.True(t, ok, "an explicit zero must read as set")
	assert.Equal(t, 0.0, v)
}

func TestState_ConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v float64) {
			defer wg.Done()
			s.SetHouseSoC(v)
			s.SetEVSoC(v)
		}(float64(i))
		go func() {
			defer wg.Done()
			s.Snapshot()
		}()
	}
	wg.Wait()

	_, _, ok := s.Snapshot()
	assert.True(t, ok)
}
