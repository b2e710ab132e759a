package usecase

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/netocloud/slack-relay/internal/biz/domain"
)

func key(id string) domain.DeliveryKey {
	return domain.DeliveryKey{EventID: id, EventTS: "1700000000.000100"}
}

func TestDeduplicator_AdmitOnce(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig)

	assert.True(t, d.Admit(key("Ev1")))
	assert.False(t, d.Admit(key("Ev1")))
	assert.False(t, d.Admit(key("Ev1")))
	assert.True(t, d.Admit(key("Ev2")))
}

func TestDeduplicator_SameIDDifferentTS(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig)

	assert.True(t, d.Admit(domain.DeliveryKey{EventID: "Ev1", EventTS: "1.1"}))
	assert.True(t, d.Admit(domain.DeliveryKey{EventID: "Ev1", EventTS: "1.2"}))
}

func TestDeduplicator_Retract(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig)

	assert.True(t, d.Admit(key("Ev1")))
	d.Retract(key("Ev1"))
	assert.True(t, d.Admit(key("Ev1")))
	assert.False(t, d.Admit(key("Ev1")))

	// retracting an unknown key is a no-op
	d.Retract(key("unknown"))
	assert.Equal(t, 1, d.Len())
}

func TestDeduplicator_WindowExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := NewDeduplicator(DedupConfig{Window: time.Minute, Capacity: 10})
	d.now = func() time.Time { return now }

	assert.True(t, d.Admit(key("Ev1")))
	now = now.Add(30 * time.Second)
	assert.False(t, d.Admit(key("Ev1")))

	now = now.Add(31 * time.Second)
	assert.True(t, d.Admit(key("Ev1")))
}

func TestDeduplicator_Sweep(t *testing.T) {
	now := time.Unix(1700000000, 0)
	d := NewDeduplicator(DedupConfig{Window: time.Minute, Capacity: 10})
	d.now = func() time.Time { return now }

	d.Admit(key("Ev1"))
	d.Admit(key("Ev2"))
	now = now.Add(40 * time.Second)
	d.Admit(key("Ev3"))
	now = now.Add(30 * time.Second)

	assert.Equal(t, 2, d.Sweep())
	assert.Equal(t, 1, d.Len())
}

func TestDeduplicator_CapacityEvictsOldest(t *testing.T) {
	d := NewDeduplicator(DedupConfig{Window: time.Hour, Capacity: 2})

	d.Admit(key("Ev1"))
	d.Admit(key("Ev2"))
	d.Admit(key("Ev3"))

	assert.Equal(t, 2, d.Len())
	assert.True(t, d.Admit(key("Ev1")), "oldest key should have been evicted")
	assert.False(t, d.Admit(key("Ev3")))
}

func TestDeduplicator_ConcurrentAdmitSingleWinner(t *testing.T) {
	d := NewDeduplicator(DefaultDedupConfig)

	for round := 0; round < 20; round++ {
		k := key(fmt.Sprintf("Ev%d", round))
		var admitted atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if d.Admit(k) {
					admitted.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), admitted.Load())
	}
}
