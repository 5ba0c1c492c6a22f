package pipeline

import (
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// logRing is a bounded ring of the most recent log lines, exposed to the
// admin surface as part of the pipeline-state snapshot.
type logRing struct {
	mu       sync.Mutex
	lines    []string
	capacity int
}

func newLogRing(capacity int) *logRing {
	return &logRing{capacity: capacity}
}

// core wraps the ring in a zapcore.Core so it can be teed alongside the
// application's regular log sinks with no separate logging call site.
func (r *logRing) core(enc zapcore.Encoder, enab zapcore.LevelEnabler) zapcore.Core {
	return &ringCore{ring: r, enc: enc, level: enab}
}

func (r *logRing) append(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.capacity {
		r.lines = r.lines[len(r.lines)-r.capacity:]
	}
}

// snapshot returns a copy of the current ring contents, oldest first.
func (r *logRing) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

type ringCore struct {
	ring  *logRing
	enc   zapcore.Encoder
	level zapcore.LevelEnabler
}

func (c *ringCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl)
}

func (c *ringCore) With(fields []zapcore.Field) zapcore.Core {
	clone := c.enc.Clone()
	for _, f := range fields {
		f.AddTo(clone)
	}
	return &ringCore{ring: c.ring, enc: clone, level: c.level}
}

func (c *ringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *ringCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	buf, err := c.enc.EncodeEntry(ent, fields)
	if err != nil {
		return err
	}
	line := strings.TrimRight(buf.String(), "\n")
	buf.Free()
	c.ring.append(line)
	return nil
}

func (c *ringCore) Sync() error {
	return nil
}
