// Package notify delivers trading alerts. Notifications are
// fire-and-forget: delivery failure is logged and never propagates into
// the trading path.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Category groups notifications for cooldown purposes so a noisy
// category cannot drown out the rest.
type Category string

const (
	CategoryOpportunity Category = "opportunity"
	CategoryPosition    Category = "position"
	CategoryRisk        Category = "risk"
	CategorySystem      Category = "system"
)

// Notifier pushes a message to the operator.
type Notifier interface {
	Notify(category Category, message string)
}

// LogNotifier writes notifications to the log. Used in tests and when no
// bot token is configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(category Category, message string) {
	n.Log.WithField("category", string(category)).Info(message)
}

// Throttled wraps a Notifier with a per-category cooldown. The first
// message of a category is always delivered; repeats within the cooldown
// window are dropped.
type Throttled struct {
	next     Notifier
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[Category]time.Time
}

// NewThrottled wraps next with the given cooldown.
func NewThrottled(next Notifier, cooldown time.Duration) *Throttled {
	return &Throttled{
		next:     next,
		cooldown: cooldown,
		now:      time.Now,
		lastSent: make(map[Category]time.Time),
	}
}

// WithClock overrides the time source. Test hook.
func (t *Throttled) WithClock(now func() time.Time) *Throttled {
	t.now = now
	return t
}

// Notify implements Notifier.
func (t *Throttled) Notify(category Category, message string) {
	t.mu.Lock()
	current := t.now()
	if last, ok := t.lastSent[category]; ok && current.Sub(last) < t.cooldown {
		t.mu.Unlock()
		return
	}
	t.lastSent[category] = current
	t.mu.Unlock()

	t.next.Notify(category, message)
}

var (
	_ Notifier = LogNotifier{}
	_ Notifier = (*Throttled)(nil)
)
