// Package synclog is the thread-safe diagnostic logger shared by every portfolio component.
//
// Each observable occurrence has its own method so that callers never build field maps by hand and
// so that tests can match entries on the "event" field. Per-clause events are emitted at Trace
// level and cost a level check when disabled.
package synclog

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

type Event string

const (
	EventClausePublished    Event = "clause_published"
	EventClauseDuplicate    Event = "clause_duplicate"
	EventClauseFiltered     Event = "clause_filtered"
	EventClauseEvicted      Event = "clause_evicted"
	EventClausesDrained     Event = "clauses_drained"
	EventSharingRound       Event = "sharing_round"
	EventVerdictClaimed     Event = "verdict_claimed"
	EventAdapterStarted     Event = "adapter_started"
	EventAdapterFinished    Event = "adapter_finished"
	EventAdapterInterrupted Event = "adapter_interrupted"
	EventAdapterFault       Event = "adapter_fault"
	EventClause             Event = "clause"
	EventModel              Event = "model"
)

// EventKey is the field holding the Event of every entry.
const EventKey = "event"

type Log struct {
	entry *logrus.Entry
}

func New(logger *logrus.Logger) *Log {
	return &Log{entry: logrus.NewEntry(logger)}
}

// Discard returns a Log that drops everything.
func Discard() *Log {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
	return New(logger)
}

// With derives a Log tagging entries with the component name.
func (l *Log) With(component string) *Log {
	return &Log{entry: l.entry.WithField("component", component)}
}

func (l *Log) Enabled(level logrus.Level) bool {
	return l.entry.Logger.IsLevelEnabled(level)
}

func (l *Log) Debugf(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l *Log) Infof(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l *Log) Warnf(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l *Log) Errorf(format string, args ...any) { l.entry.Errorf(format, args...) }

func (l *Log) emit(level logrus.Level, event Event, fields logrus.Fields, message string) {
	if !l.Enabled(level) {
		return
	}
	fields[EventKey] = event
	l.entry.WithFields(fields).Log(level, message)
}

func (l *Log) ClausePublished(producer, size, lbd int, fingerprint uint64) {
	l.emit(logrus.TraceLevel, EventClausePublished, logrus.Fields{"producer": producer, "size": size, "lbd": lbd, "fingerprint": fingerprint}, "clause published")
}

func (l *Log) ClauseDuplicate(producer int, fingerprint uint64) {
	l.emit(logrus.TraceLevel, EventClauseDuplicate, logrus.Fields{"producer": producer, "fingerprint": fingerprint}, "duplicate clause discarded")
}

func (l *Log) ClauseFiltered(producer, size, lbd, limit int) {
	l.emit(logrus.TraceLevel, EventClauseFiltered, logrus.Fields{"producer": producer, "size": size, "lbd": lbd, "limit": limit}, "clause filtered before publish")
}

func (l *Log) ClauseEvicted(consumer, size, lbd int) {
	l.emit(logrus.DebugLevel, EventClauseEvicted, logrus.Fields{"consumer": consumer, "size": size, "lbd": lbd}, "pending clause evicted")
}

func (l *Log) ClausesDrained(consumer, count int) {
	l.emit(logrus.TraceLevel, EventClausesDrained, logrus.Fields{"consumer": consumer, "count": count}, "clauses drained")
}

func (l *Log) SharingRound(sharer, round, published, duplicates, delivered int, elapsed time.Duration) {
	l.emit(logrus.DebugLevel, EventSharingRound, logrus.Fields{
		"sharer":     sharer,
		"round":      round,
		"published":  published,
		"duplicates": duplicates,
		"delivered":  delivered,
		"elapsed":    elapsed,
	}, "sharing round done")
}

func (l *Log) VerdictClaimed(adapter int, engine, status string) {
	l.emit(logrus.InfoLevel, EventVerdictClaimed, logrus.Fields{"adapter": adapter, "engine": engine, "status": status}, "verdict claimed")
}

func (l *Log) AdapterStarted(adapter int, engine string, seed int64) {
	l.emit(logrus.DebugLevel, EventAdapterStarted, logrus.Fields{"adapter": adapter, "engine": engine, "seed": seed}, "adapter started")
}

func (l *Log) AdapterFinished(adapter int, engine, status string, elapsed time.Duration) {
	l.emit(logrus.InfoLevel, EventAdapterFinished, logrus.Fields{"adapter": adapter, "engine": engine, "status": status, "elapsed": elapsed}, "adapter finished")
}

func (l *Log) AdapterInterrupted(adapter int) {
	l.emit(logrus.DebugLevel, EventAdapterInterrupted, logrus.Fields{"adapter": adapter}, "adapter interrupted")
}

func (l *Log) AdapterFault(adapter int, engine string, err error) {
	l.emit(logrus.WarnLevel, EventAdapterFault, logrus.Fields{"adapter": adapter, "engine": engine, logrus.ErrorKey: err}, "adapter fault")
}

// Clause dumps one clause in DIMACS notation.
func (l *Log) Clause(prefix string, text string) {
	l.emit(logrus.TraceLevel, EventClause, logrus.Fields{"clause": text}, prefix)
}

// Model dumps a satisfying assignment.
func (l *Log) Model(text string) {
	l.emit(logrus.DebugLevel, EventModel, logrus.Fields{"model": text}, "model")
}
