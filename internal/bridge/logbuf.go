package bridge

import (
	"sync"
	"time"
)

// Source identifies where a log entry came from.
type Source string

const (
	SourceConsole Source = "console"
	SourceEditor  Source = "editor"
	SourceAll     Source = "all"
)

// Level is a Unity console log level.
type Level string

const (
	LevelLog       Level = "log"
	LevelWarning   Level = "warning"
	LevelError     Level = "error"
	LevelException Level = "exception"
	LevelAssert    Level = "assert"
)

// LogEntry is one line of the unified log pipeline. Seq is assigned by the
// buffer on acceptance and never repeats within a process lifetime.
type LogEntry struct {
	Seq        uint64    `json:"sequenceNumber"`
	Timestamp  time.Time `json:"timestamp"`
	Source     Source    `json:"source"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	StackTrace string    `json:"stackTrace,omitempty"`
	Color      string    `json:"color,omitempty"`
}

// TailResult is a snapshot returned by Tail.
type TailResult struct {
	Entries     []LogEntry `json:"entries"`
	Watermark   uint64     `json:"watermark"`
	ClearedAt   string     `json:"clearedAt,omitempty"`
	ClearReason string     `json:"clearReason,omitempty"`
}

// LogBuffer is a bounded ring of log entries with a clear watermark and
// push-subscriber fan-out. Sequence numbers are strictly increasing; the
// watermark is monotonic non-decreasing.
type LogBuffer struct {
	mu          sync.RWMutex
	buf         []LogEntry
	capacity    int
	nextSeq     uint64
	head        int // oldest element index
	count       int
	watermark   uint64
	clearedAt   time.Time
	clearReason string

	subMu sync.Mutex
	subs  map[chan LogEntry]struct{}
}

// NewLogBuffer creates a ring buffer with the given capacity.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity < 1 {
		capacity = 1000
	}
	return &LogBuffer{
		buf:      make([]LogEntry, capacity),
		capacity: capacity,
		nextSeq:  1,
		subs:     make(map[chan LogEntry]struct{}),
	}
}

// Append accepts an entry, assigns its sequence number, and fans it out to
// subscribers. Slow subscribers are dropped and their channel closed so their
// reader observes end-of-stream; the producer never blocks.
func (b *LogBuffer) Append(e LogEntry) uint64 {
	b.mu.Lock()
	e.Seq = b.nextSeq
	b.nextSeq++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if b.count < b.capacity {
		idx := (b.head + b.count) % b.capacity
		b.buf[idx] = e
		b.count++
	} else {
		b.buf[b.head] = e
		b.head = (b.head + 1) % b.capacity
	}

	// Fan-out before releasing the ring lock, so concurrent producers cannot
	// deliver out of sequence order. The sends are non-blocking, and the full
	// subscriber lock lets a dropped channel be closed without racing a
	// concurrent send.
	b.subMu.Lock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			delete(b.subs, ch)
			close(ch)
		}
	}
	b.subMu.Unlock()
	b.mu.Unlock()

	return e.Seq
}

// Tail returns the last `lines` entries matching the source filter.
// lines == 0 means all. Unless full is set, entries at or below the
// watermark are excluded.
func (b *LogBuffer) Tail(lines int, source Source, full bool) TailResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []LogEntry
	for i := 0; i < b.count; i++ {
		e := b.buf[(b.head+i)%b.capacity]
		if source != "" && source != SourceAll && e.Source != source {
			continue
		}
		if !full && e.Seq <= b.watermark {
			continue
		}
		matched = append(matched, e)
	}
	if lines > 0 && len(matched) > lines {
		matched = matched[len(matched)-lines:]
	}

	res := TailResult{
		Entries:     matched,
		Watermark:   b.watermark,
		ClearReason: b.clearReason,
	}
	if !b.clearedAt.IsZero() {
		res.ClearedAt = b.clearedAt.Format(time.RFC3339)
	}
	return res
}

// Clear advances the watermark to the current maximum sequence number and
// records the reason. Clearing never rewinds the watermark.
func (b *LogBuffer) Clear(reason string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nextSeq-1 > b.watermark {
		b.watermark = b.nextSeq - 1
	}
	b.clearedAt = time.Now().UTC()
	b.clearReason = reason
	return b.watermark
}

// Watermark returns the current watermark.
func (b *LogBuffer) Watermark() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.watermark
}

// LastSeq returns the most recently assigned sequence number.
func (b *LogBuffer) LastSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq - 1
}

// Len returns the number of buffered entries.
func (b *LogBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Subscribe registers a push subscriber. Only entries accepted after
// registration are delivered; there is no replay.
func (b *LogBuffer) Subscribe() chan LogEntry {
	ch := make(chan LogEntry, 64)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber. Safe to call after the buffer already
// dropped the channel for falling behind.
func (b *LogBuffer) Unsubscribe(ch chan LogEntry) {
	b.subMu.Lock()
	_, present := b.subs[ch]
	delete(b.subs, ch)
	b.subMu.Unlock()
	if present {
		close(ch)
	}
}
