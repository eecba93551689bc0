package divelog

import (
	"github.com/daedaluz/divecomputer/status"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EventSink receives the events a Dump emits, synchronously on the
// caller's thread (spec §5, §6). Implementations must not call back into
// the driver that is invoking them.
type EventSink interface {
	// OnProgress reports (current, maximum) byte counters. May be called
	// many times; current is monotonically non-decreasing within one Dump.
	OnProgress(current, maximum uint32)
	// OnDeviceInfo is emitted once per download: the enum family emits it
	// from Dump, the stream family from Foreach after its Dump returns.
	OnDeviceInfo(model byte, firmware, serial uint32)
	// OnClock is emitted at most once per Dump.
	OnClock(systime, devtime int64)
	// OnWarning reports a non-fatal anomaly, e.g. the fixed-slot
	// extractor's remaining-budget underflow (spec §9 Open Question a).
	OnWarning(message string)
	// OnDiagnostic reports a failure path's status and context (spec §7
	// "each failure path emits at least one diagnostic message").
	OnDiagnostic(s status.Status, context string)
}

// LogrusEventSink adapts EventSink onto a *logrus.Entry, so a caller that
// just wants "log everything" does not need to write their own sink.
// Grounded on dividat-driver's logrus.Entry/WithField structured-logging
// idiom (other_examples). Every log line carries a session id so that
// concurrent downloads (e.g. in a front-end juggling more than one driver)
// can be told apart in aggregated log output.
type LogrusEventSink struct {
	Log     *logrus.Entry
	Session uuid.UUID
}

// NewLogrusEventSink wraps log (or logrus.StandardLogger().WithField(...)
// if log is nil) as an EventSink, tagging every entry with a freshly
// generated session id.
func NewLogrusEventSink(log *logrus.Entry) *LogrusEventSink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	session := uuid.New()
	return &LogrusEventSink{Log: log.WithField("session", session.String()), Session: session}
}

func (s *LogrusEventSink) OnProgress(current, maximum uint32) {
	s.Log.WithFields(logrus.Fields{"current": current, "maximum": maximum}).Debug("dump progress")
}

func (s *LogrusEventSink) OnDeviceInfo(model byte, firmware, serial uint32) {
	s.Log.WithFields(logrus.Fields{
		"model":    model,
		"firmware": firmware,
		"serial":   serial,
	}).Info("device info")
}

func (s *LogrusEventSink) OnClock(systime, devtime int64) {
	s.Log.WithFields(logrus.Fields{"systime": systime, "devtime": devtime}).Info("device clock")
}

func (s *LogrusEventSink) OnWarning(message string) {
	s.Log.Warn(message)
}

func (s *LogrusEventSink) OnDiagnostic(st status.Status, context string) {
	s.Log.WithField("status", st.String()).Error(context)
}

// nopEventSink discards everything; used as the default sink when none is set.
type nopEventSink struct{}

func (nopEventSink) OnProgress(uint32, uint32)          {}
func (nopEventSink) OnDeviceInfo(byte, uint32, uint32)  {}
func (nopEventSink) OnClock(int64, int64)               {}
func (nopEventSink) OnWarning(string)                   {}
func (nopEventSink) OnDiagnostic(status.Status, string) {}

// NopEvents is the zero-cost EventSink drivers fall back to when SetEvents
// has not been called.
var NopEvents EventSink = nopEventSink{}
