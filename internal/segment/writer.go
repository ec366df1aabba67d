package segment

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/marcoculver/adsb-logger/internal/adsb"
)

const compressChunk = 1 << 20 // stream-compress in 1 MiB chunks

// Writer owns the active hour segment. It is single-threaded: one ingest
// loop appends, rotates on hour change, and finalizes on shutdown. Readers
// of the plain file see a consistent prefix because every record is written
// as one buffered line and flushed at line granularity.
type Writer struct {
	Dir        string
	FsyncEvery time.Duration

	// Now is the wall clock; replaceable in tests.
	Now func() time.Time

	key       string
	f         *os.File
	bw        *bufio.Writer
	lastFsync time.Time
}

// NewWriter creates a writer for the archive directory, creating it if
// needed.
func NewWriter(dir string, fsyncEvery time.Duration) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	if fsyncEvery <= 0 {
		fsyncEvery = time.Second
	}
	return &Writer{
		Dir:        dir,
		FsyncEvery: fsyncEvery,
		Now:        time.Now,
	}, nil
}

// CurrentKey returns the hour key of the open segment, or "".
func (w *Writer) CurrentKey() string {
	return w.key
}

// WriteRecords appends records to the segment for the current UTC hour,
// rotating (finalize old, open new) when the hour changed since the last
// call. Rotation happens before any record of the new hour is written.
func (w *Writer) WriteRecords(recs []adsb.Record) error {
	key := HourKey(w.Now())

	if w.f == nil {
		if err := w.open(key); err != nil {
			return err
		}
	} else if key != w.key {
		if err := w.Rotate(); err != nil {
			return err
		}
		if err := w.open(key); err != nil {
			return err
		}
	}

	for _, rec := range recs {
		line, err := json.Marshal(rec)
		if err != nil {
			logrus.WithError(err).Debug("dropping unmarshalable record")
			continue
		}
		if _, err := w.bw.Write(line); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
	}

	// Line-granularity flush keeps the active file readable by others.
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush segment: %w", err)
	}

	if now := w.Now(); now.Sub(w.lastFsync) >= w.FsyncEvery {
		// Best-effort durability: the data is in the page cache either way.
		_ = w.f.Sync()
		w.lastFsync = now
	}
	return nil
}

func (w *Writer) open(key string) error {
	path := ActivePath(w.Dir, key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open segment %s: %w", path, err)
	}
	w.f = f
	w.bw = bufio.NewWriter(f)
	w.key = key
	w.lastFsync = w.Now()
	return nil
}

// Rotate finalizes the currently held hour and leaves the writer with no
// open segment. The next WriteRecords opens the segment for the then-current
// hour.
func (w *Writer) Rotate() error {
	if w.f == nil {
		return nil
	}
	key := w.key

	if err := w.bw.Flush(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("flush on rotate failed")
	}
	_ = w.f.Sync()
	if err := w.f.Close(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("close on rotate failed")
	}
	w.f = nil
	w.bw = nil
	w.key = ""

	if err := Finalize(w.Dir, key); err != nil {
		// Leave the plain file; the next startup retries.
		logrus.WithError(err).WithField("key", key).Error("finalize failed, keeping plain segment")
		return nil
	}
	logrus.WithField("key", key).Info("finalized hour segment")
	return nil
}

// Close finalizes the held hour. Safe to call with nothing open.
func (w *Writer) Close() error {
	return w.Rotate()
}

// Finalize converts the plain segment for key into its compressed form:
// stream-compress to a .part file, atomically rename, then delete the
// source. A missing source is a no-op.
func Finalize(dir, key string) error {
	src := ActivePath(dir, key)
	dst := FinalPath(dir, key)
	tmp := partPath(dir, key)

	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	gz, err := gzip.NewWriterLevel(out, 6)
	if err != nil {
		_ = out.Close()
		return fmt.Errorf("gzip writer: %w", err)
	}

	buf := make([]byte, compressChunk)
	if _, err := io.CopyBuffer(gz, in, buf); err != nil {
		_ = gz.Close()
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("compress %s: %w", src, err)
	}
	if err := gz.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("finish gzip %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove %s: %w", src, err)
	}
	return nil
}

// Recover repairs the archive after a crash. For every hour key it removes
// stale .part files and re-runs Finalize on leftover plain segments (except
// the current hour, which the writer is about to reopen). When both the
// plain and compressed file exist the compressed one wins and the plain
// file is removed: that state only arises when a crash hit between
// Finalize's rename and its source delete, so the .gz already holds the
// full hour.
func Recover(dir string, now time.Time) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read archive dir: %w", err)
	}

	currentKey := HourKey(now)

	// Drop interrupted compressions first.
	for _, e := range entries {
		name := e.Name()
		if len(name) > len(suffixPart) && name[len(name)-len(suffixPart):] == suffixPart {
			p := dir + string(os.PathSeparator) + name
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				logrus.WithError(err).WithField("file", name).Warn("could not remove stale .part")
				continue
			}
			logrus.WithField("file", name).Info("removed stale .part from interrupted finalize")
		}
	}

	for _, e := range entries {
		key := ParseKey(e.Name())
		if key == "" {
			continue
		}
		if key == currentKey {
			if _, err := os.Stat(ActivePath(dir, key)); err == nil {
				logrus.WithField("key", key).Warn("resuming existing active segment")
			}
			continue
		}
		plain := ActivePath(dir, key)
		final := FinalPath(dir, key)

		if _, err := os.Stat(plain); err != nil {
			continue
		}
		if _, err := os.Stat(final); err == nil {
			if rmErr := os.Remove(plain); rmErr != nil {
				logrus.WithError(rmErr).WithField("key", key).Warn("could not remove superseded plain segment")
			} else {
				logrus.WithField("key", key).Info("removed plain segment superseded by finalized .gz")
			}
			continue
		}
		if err := Finalize(dir, key); err != nil {
			logrus.WithError(err).WithField("key", key).Warn("finalize retry failed")
			continue
		}
		logrus.WithField("key", key).Info("finalized leftover segment from previous run")
	}
	return nil
}
