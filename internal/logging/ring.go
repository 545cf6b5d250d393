package logging

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one captured log line.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type ringBuf struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

// Ring is a zapcore.Core that keeps the last N entries in memory.
type Ring struct {
	zapcore.LevelEnabler
	buf    *ringBuf
	fields []zapcore.Field
}

func NewRing(size int, enab zapcore.LevelEnabler) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{
		LevelEnabler: enab,
		buf:          &ringBuf{entries: make([]Entry, size)},
	}
}

func (r *Ring) With(fields []zapcore.Field) zapcore.Core {
	f := make([]zapcore.Field, 0, len(r.fields)+len(fields))
	f = append(f, r.fields...)
	f = append(f, fields...)
	return &Ring{LevelEnabler: r.LevelEnabler, buf: r.buf, fields: f}
}

func (r *Ring) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(e.Level) {
		return ce.AddCore(e, r)
	}
	return ce
}

func (r *Ring) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range r.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	entry := Entry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Logger:  e.LoggerName,
		Message: e.Message,
	}
	if len(enc.Fields) > 0 {
		entry.Fields = enc.Fields
	}

	b := r.buf
	b.mu.Lock()
	b.entries[b.next] = entry
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
	b.mu.Unlock()
	return nil
}

func (r *Ring) Sync() error { return nil }

// Entries returns the captured entries, oldest first.
func (r *Ring) Entries() []Entry {
	b := r.buf
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		out := make([]Entry, b.next)
		copy(out, b.entries[:b.next])
		return out
	}
	out := make([]Entry, 0, len(b.entries))
	out = append(out, b.entries[b.next:]...)
	out = append(out, b.entries[:b.next]...)
	return out
}
