package events

// DefaultCapacity is how many events a Log keeps.
const DefaultCapacity = 1000

// Log is a fixed-capacity ring of events. Once full, each append evicts
// the oldest entry. It is not safe for concurrent use.
type Log struct {
	buf   []Event
	start int // index of the oldest entry
	size  int
}

// NewLog creates a log holding at most capacity events. A non-positive
// capacity uses DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]Event, capacity)}
}

// Append records e, evicting the oldest event when the log is full.
func (l *Log) Append(e Event) {
	if l.size < len(l.buf) {
		l.buf[(l.start+l.size)%len(l.buf)] = e
		l.size++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % len(l.buf)
}

// Len returns the number of retained events.
func (l *Log) Len() int { return l.size }

// Cap returns the maximum number of retained events.
func (l *Log) Cap() int { return len(l.buf) }

// Recent returns up to n events, newest first. n <= 0 returns all of them.
func (l *Log) Recent(n int) []Event {
	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.start + l.size - 1 - i) % len(l.buf)
		out = append(out, l.buf[idx].Clone())
	}
	return out
}

// All returns every retained event, oldest first.
func (l *Log) All() []Event {
	out := make([]Event, 0, l.size)
	for i := 0; i < l.size; i++ {
		out = append(out, l.buf[(l.start+i)%len(l.buf)].Clone())
	}
	return out
}
