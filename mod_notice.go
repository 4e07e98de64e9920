package starfield

import (
	"sync"
	"time"
)

const DefaultNoticeInterval = 10 * time.Second

// Notices forwards recovery messages to the mount, at most one per key per
// interval, and logs every one of them.
type Notices struct {
	mu       sync.Mutex
	notify   func(string)
	log      Logger
	interval time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

// Post shows message unless another notice with the same key was shown
// within the interval. It reports whether the message was shown.
func (n *Notices) Post(key, message string) bool {
	n.mu.Lock()
	now := n.now()
	if at, ok := n.last[key]; ok && now.Sub(at) < n.interval {
		n.mu.Unlock()
		n.log.Debugf("notice %q throttled: %s", key, message)
		return false
	}
	n.last[key] = now
	n.mu.Unlock()

	n.log.Infof("notice: %s", message)
	n.notify(message)
	return true
}

type NoticeModule struct {
	Interval time.Duration
	Now      func() time.Time
}

func (m NoticeModule) Install(app *App, cmd *Commands) {
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultNoticeInterval
	}
	now := m.Now
	if now == nil {
		now = time.Now
	}
	notify := func(string) {}
	if host := ResourceOf[Host](app); host != nil {
		notify = host.Mount.Notify
	}
	cmd.AddResources(&Notices{
		notify:   notify,
		log:      app.Logger(),
		interval: interval,
		last:     make(map[string]time.Time),
		now:      now,
	})
}
