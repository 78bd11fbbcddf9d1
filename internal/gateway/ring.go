package gateway

// notificationRing is a fixed-capacity buffer of received notifications,
// oldest evicted first. Each observer owns its own ring; there is no
// shared history.
type notificationRing struct {
	buf   []WireMessage
	start int
	count int
}

func newNotificationRing(capacity int) *notificationRing {
	return &notificationRing{buf: make([]WireMessage, capacity)}
}

func (r *notificationRing) add(msg WireMessage) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = msg
		r.count++
		return
	}
	// Full: overwrite the oldest slot.
	r.buf[r.start] = msg
	r.start = (r.start + 1) % len(r.buf)
}

// snapshot returns the buffered notifications, newest first.
func (r *notificationRing) snapshot() []WireMessage {
	out := make([]WireMessage, 0, r.count)
	for i := r.count - 1; i >= 0; i-- {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func (r *notificationRing) markRead(id string) bool {
	for i := 0; i < r.count; i++ {
		idx := (r.start + i) % len(r.buf)
		if r.buf[idx].ID == id {
			r.buf[idx].Read = true
			return true
		}
	}
	return false
}

func (r *notificationRing) unread() int {
	n := 0
	for i := 0; i < r.count; i++ {
		if !r.buf[(r.start+i)%len(r.buf)].Read {
			n++
		}
	}
	return n
}
