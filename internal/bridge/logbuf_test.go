package bridge

import (
	"sync"
	"testing"
)

func TestLogBufferAppendAssignsSequence(t *testing.T) {
	buf := NewLogBuffer(10)

	for i := 0; i < 3; i++ {
		buf.Append(LogEntry{Source: SourceConsole, Level: LevelLog, Message: "m"})
	}

	res := buf.Tail(0, SourceAll, false)
	if len(res.Entries) != 3 {
		t.Fatalf("Tail returned %d entries, want 3", len(res.Entries))
	}
	for i, e := range res.Entries {
		if e.Seq != uint64(i+1) {
			t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestLogBufferOverflowEvictsOldest(t *testing.T) {
	buf := NewLogBuffer(1000)

	for i := 0; i < 1001; i++ {
		buf.Append(LogEntry{Source: SourceConsole, Message: "m"})
	}

	if buf.Len() != 1000 {
		t.Errorf("Len = %d, want 1000", buf.Len())
	}
	res := buf.Tail(1000, SourceAll, false)
	if len(res.Entries) != 1000 {
		t.Fatalf("Tail returned %d entries, want 1000", len(res.Entries))
	}
	if res.Entries[0].Seq != 2 {
		t.Errorf("oldest seq = %d, want 2 (seq 1 evicted)", res.Entries[0].Seq)
	}
	if res.Entries[999].Seq != 1001 {
		t.Errorf("newest seq = %d, want 1001", res.Entries[999].Seq)
	}
}

func TestLogBufferTailLinesAndSourceFilter(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append(LogEntry{Source: SourceConsole, Message: "c1"})
	buf.Append(LogEntry{Source: SourceEditor, Message: "e1"})
	buf.Append(LogEntry{Source: SourceConsole, Message: "c2"})

	res := buf.Tail(0, SourceConsole, false)
	if len(res.Entries) != 2 {
		t.Fatalf("console tail returned %d entries, want 2", len(res.Entries))
	}

	res = buf.Tail(1, SourceConsole, false)
	if len(res.Entries) != 1 || res.Entries[0].Message != "c2" {
		t.Errorf("lines=1 tail = %+v, want just c2", res.Entries)
	}

	// lines larger than buffer caps at contents.
	res = buf.Tail(100, SourceAll, false)
	if len(res.Entries) != 3 {
		t.Errorf("lines=100 tail returned %d entries, want 3", len(res.Entries))
	}
}

func TestLogBufferClearWatermark(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append(LogEntry{Source: SourceConsole, Message: "a"})
	buf.Append(LogEntry{Source: SourceConsole, Message: "b"})
	buf.Append(LogEntry{Source: SourceConsole, Message: "c"})

	wm := buf.Clear("test")
	if wm != 3 {
		t.Errorf("Clear watermark = %d, want 3", wm)
	}

	res := buf.Tail(0, SourceAll, false)
	if len(res.Entries) != 0 {
		t.Errorf("post-clear tail returned %d entries, want 0", len(res.Entries))
	}
	if res.ClearReason != "test" {
		t.Errorf("clearReason = %q, want %q", res.ClearReason, "test")
	}
	if res.ClearedAt == "" {
		t.Error("clearedAt not set")
	}

	buf.Append(LogEntry{Source: SourceConsole, Message: "d"})
	res = buf.Tail(0, SourceAll, false)
	if len(res.Entries) != 1 || res.Entries[0].Message != "d" {
		t.Errorf("post-clear append tail = %+v, want just d", res.Entries)
	}

	// full=true ignores the watermark.
	res = buf.Tail(0, SourceAll, true)
	if len(res.Entries) != 4 {
		t.Errorf("full tail returned %d entries, want 4", len(res.Entries))
	}
}

func TestLogBufferClearIdempotent(t *testing.T) {
	buf := NewLogBuffer(10)
	buf.Append(LogEntry{Source: SourceConsole, Message: "a"})

	wm1 := buf.Clear("first")
	wm2 := buf.Clear("second")
	if wm2 < wm1 {
		t.Errorf("watermark decreased: %d -> %d", wm1, wm2)
	}
}

func TestLogBufferSubscribeReceivesInOrder(t *testing.T) {
	buf := NewLogBuffer(10)
	ch := buf.Subscribe()
	defer buf.Unsubscribe(ch)

	buf.Append(LogEntry{Source: SourceConsole, Message: "one"})
	buf.Append(LogEntry{Source: SourceConsole, Message: "two"})

	e1 := <-ch
	e2 := <-ch
	if e1.Seq >= e2.Seq {
		t.Errorf("subscriber order violated: %d then %d", e1.Seq, e2.Seq)
	}
	if e1.Message != "one" || e2.Message != "two" {
		t.Errorf("got %q, %q", e1.Message, e2.Message)
	}
}

func TestLogBufferConcurrentProducersKeepOrder(t *testing.T) {
	buf := NewLogBuffer(2000)
	ch := buf.Subscribe()

	const producers = 8
	const perProducer = 200

	received := make(chan []uint64, 1)
	go func() {
		var seqs []uint64
		for e := range ch {
			seqs = append(seqs, e.Seq)
			if len(seqs) == producers*perProducer {
				break
			}
		}
		received <- seqs
	}()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				buf.Append(LogEntry{Source: SourceConsole, Message: "m"})
			}
		}()
	}
	wg.Wait()
	buf.Unsubscribe(ch)

	// The subscriber may have been dropped for falling behind; whatever was
	// delivered must still be in strictly increasing sequence order.
	seqs := <-received
	for i := 1; i < len(seqs); i++ {
		if seqs[i] <= seqs[i-1] {
			t.Fatalf("sequence inversion at %d: %d then %d", i, seqs[i-1], seqs[i])
		}
	}
}

func TestLogBufferSlowSubscriberDropped(t *testing.T) {
	buf := NewLogBuffer(2000)
	ch := buf.Subscribe()

	// Never read: the 64-slot channel fills and the subscriber is dropped.
	for i := 0; i < 100; i++ {
		buf.Append(LogEntry{Source: SourceConsole, Message: "m"})
	}

	// Drain what was buffered; the channel must end with a close.
	closed := false
	for i := 0; i < 200; i++ {
		if _, open := <-ch; !open {
			closed = true
			break
		}
	}
	if !closed {
		t.Fatal("slow subscriber channel was not closed")
	}

	// Unsubscribe after the drop must not panic.
	buf.Unsubscribe(ch)
}
