package main

import "tilesync.ai/internal/level"

// multiTickLogger fans tick stats out to the JSONL log and the index.
// Either side may be nil.
type multiTickLogger struct {
	a level.TickLogger
	b level.TickLogger
}

func (m multiTickLogger) WriteTick(entry level.TickStats) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiEditLogger struct {
	a level.EditLogger
	b level.EditLogger
}

func (m multiEditLogger) WriteEdit(entry level.EditAudit) error {
	if m.a != nil {
		_ = m.a.WriteEdit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteEdit(entry)
	}
	return nil
}
