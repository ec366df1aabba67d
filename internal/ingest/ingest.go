// Package ingest runs the polling loop: fetch the decoder snapshot at a
// fixed tick, project records, append them to the hour segment, and keep the
// archive pruned.
package ingest

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
	"github.com/marcoculver/adsb-logger/internal/natsfeed"
	"github.com/marcoculver/adsb-logger/internal/segment"
)

// Failure escalation thresholds for consecutive fetch errors.
const (
	failWarnAt     = 1
	failErrorAt    = 10
	failRepeatEach = 60
)

// Config holds the ingest loop settings.
type Config struct {
	Tick       time.Duration
	KeepDays   int
	PruneEvery time.Duration
}

// DefaultConfig matches the long-running archiver deployment.
func DefaultConfig() Config {
	return Config{
		Tick:       time.Second,
		KeepDays:   30,
		PruneEvery: time.Hour,
	}
}

// Loop owns one ingest run.
type Loop struct {
	Cfg     Config
	Fetcher *adsb.Fetcher
	Writer  *segment.Writer
	Store   *segment.Store
	Feed    *natsfeed.Publisher // optional

	// Now is the wall clock; replaceable in tests.
	Now func() time.Time
	// Sleep paces the loop; replaceable in tests.
	Sleep func(time.Duration)

	consecutiveFails int
	pollIdx          int64
}

// NewLoop wires a loop over the archive directory.
func NewLoop(cfg Config, fetcher *adsb.Fetcher, writer *segment.Writer, store *segment.Store) *Loop {
	return &Loop{
		Cfg:     cfg,
		Fetcher: fetcher,
		Writer:  writer,
		Store:   store,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// noteFetchFailure applies the graduated escalation: warn on the first
// consecutive failure, error at the tenth, then a repeat error every
// sixtieth so a dead decoder stays visible without flooding the log.
func (l *Loop) noteFetchFailure(err error) {
	l.consecutiveFails++
	entry := logrus.WithError(err).WithField("consecutive", l.consecutiveFails)
	switch {
	case l.consecutiveFails == failWarnAt:
		entry.Warn("snapshot fetch failed")
	case l.consecutiveFails == failErrorAt:
		entry.Error("snapshot fetch still failing")
	case l.consecutiveFails%failRepeatEach == 0:
		entry.Error("snapshot fetch still failing")
	}
}

func (l *Loop) noteFetchSuccess() {
	if l.consecutiveFails >= failErrorAt {
		logrus.WithField("after", l.consecutiveFails).Info("snapshot fetch recovered")
	}
	l.consecutiveFails = 0
}

// Tick runs one poll cycle: fetch, project, write, publish. A failed fetch
// or empty snapshot writes nothing.
func (l *Loop) Tick(ctx context.Context) {
	l.pollIdx++

	now := l.Now().UTC()
	tsEpoch := now.Unix()
	tsISO := now.Format("2006-01-02T15:04:05Z")

	snap, err := l.Fetcher.Fetch(ctx)
	if err != nil {
		l.noteFetchFailure(err)
		return
	}
	l.noteFetchSuccess()

	recs := adsb.Project(snap, tsEpoch, tsISO, l.pollIdx)
	if len(recs) == 0 {
		return
	}

	before := l.Writer.CurrentKey()
	if err := l.Writer.WriteRecords(recs); err != nil {
		logrus.WithError(err).Error("segment write failed")
		return
	}

	// Prune piggybacks on the hour roll.
	if after := l.Writer.CurrentKey(); before != "" && after != before {
		l.prune()
	}

	if l.Feed != nil {
		l.Feed.PublishRecords(recs)
	}
}

func (l *Loop) prune() {
	removed, err := l.Store.Prune(l.Cfg.KeepDays, l.Now())
	if err != nil {
		logrus.WithError(err).Warn("prune failed")
		return
	}
	if removed > 0 {
		logrus.WithField("removed", removed).Info("pruned old segments")
	}
}

// Run polls until the context is canceled, then finalizes the active hour.
// The pacer sleeps the remainder of each tick; an overrun cycle starts the
// next fetch immediately with no catch-up burst.
func (l *Loop) Run(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"url":       l.Fetcher.URL,
		"tick":      l.Cfg.Tick,
		"keep_days": l.Cfg.KeepDays,
	}).Info("ingest started")

	lastPrune := l.Now()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("ingest stopping, finalizing active segment")
			if err := l.Writer.Close(); err != nil {
				logrus.WithError(err).Error("finalize on shutdown failed")
			}
			if l.Feed != nil {
				l.Feed.Close()
			}
			return ctx.Err()
		default:
		}

		start := l.Now()
		l.Tick(ctx)

		// Independent prune pacing, for archives with no traffic around
		// the hour roll.
		if l.Now().Sub(lastPrune) >= l.Cfg.PruneEvery {
			l.prune()
			lastPrune = l.Now()
		}

		if elapsed := l.Now().Sub(start); elapsed < l.Cfg.Tick {
			l.Sleep(l.Cfg.Tick - elapsed)
		}
	}
}
