package form

import "time"

// debouncer keeps at most one live timer per field. It is not safe for
// concurrent use; the engine calls it with its lock held.
type debouncer struct {
	delay  time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

// schedule replaces any pending timer for field with fn.
func (d *debouncer) schedule(field string, fn func()) {
	d.cancel(field)
	d.timers[field] = time.AfterFunc(d.delay, fn)
}

func (d *debouncer) cancel(field string) {
	if t, ok := d.timers[field]; ok {
		t.Stop()
		delete(d.timers, field)
	}
}

func (d *debouncer) stopAll() {
	for field := range d.timers {
		d.cancel(field)
	}
}
