package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Notify(_ Category, message string) {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestThrottled_SuppressesRepeatsWithinCooldown(t *testing.T) {
	rec := &recordingNotifier{}
	current := time.Now()
	n := NewThrottled(rec, 5*time.Minute).WithClock(func() time.Time { return current })

	n.Notify(CategoryPosition, "opened")
	n.Notify(CategoryPosition, "opened again")
	assert.Equal(t, 1, rec.count())

	current = current.Add(5*time.Minute + time.Second)
	n.Notify(CategoryPosition, "later")
	assert.Equal(t, 2, rec.count())
}

func TestThrottled_CategoriesAreIndependent(t *testing.T) {
	rec := &recordingNotifier{}
	current := time.Now()
	n := NewThrottled(rec, 5*time.Minute).WithClock(func() time.Time { return current })

	n.Notify(CategoryPosition, "position")
	n.Notify(CategoryRisk, "risk")
	n.Notify(CategorySystem, "system")

	assert.Equal(t, 3, rec.count())
}
