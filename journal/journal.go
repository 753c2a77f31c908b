// Package journal owns the append-only command log consumed by the host.
//
// The log has a single writer: one Log per file per machine, enforced with an
// exclusive advisory lock for as long as the Log is open. Ids are allocated
// from the recovered tail of the file, so they keep increasing across
// restarts and never repeat.
package journal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rustyeddy/bridge/command"
)

var (
	// ErrWrite marks a command that was not delivered.
	ErrWrite = errors.New("command log write failed")

	// ErrCorrupt means the final line has no usable leading id. A safe next
	// id cannot be established, so the caller must not continue.
	ErrCorrupt = errors.New("command log corrupt")

	// ErrLocked means another process already owns the log.
	ErrLocked = errors.New("command log locked by another writer")

	// ErrPoisoned is returned after a failed write could not be rolled back.
	ErrPoisoned = errors.New("command log in unknown state")

	ErrNoAction = errors.New("NO_ACTION is never logged")
)

// file is the subset of *os.File the log writes through.
type file interface {
	io.Writer
	io.ReaderAt
	io.Closer
	Stat() (os.FileInfo, error)
	Sync() error
	Truncate(size int64) error
}

type Log struct {
	path     string
	f        file
	unlock   func() error
	next     int64
	poisoned bool
	log      *slog.Logger
}

// Open opens or creates the log at path, takes the writer lock, drops a
// torn final line left by an interrupted append and recovers the next id
// from the last complete line.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open command log %s: %w", path, err)
	}
	unlock, err := lockFile(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrLocked, path, err)
	}

	dropped, err := dropTornTail(f)
	if err != nil {
		unlock()
		f.Close()
		return nil, fmt.Errorf("%s: repair tail: %w", path, err)
	}
	if dropped > 0 {
		logger.Warn("dropped partial last line", "path", path, "bytes", dropped)
	}

	last, err := lastID(f)
	if err != nil {
		unlock()
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l := &Log{
		path:   path,
		f:      f,
		unlock: unlock,
		next:   last + 1,
		log:    logger,
	}
	logger.Info("command log opened", "path", path, "last_id", last, "next_id", l.next)
	return l, nil
}

func (l *Log) Path() string { return l.path }

// NextID returns the id the next successful Append will use.
func (l *Log) NextID() int64 { return l.next }

// Append stamps cmd with the next id and writes it as one line. The id is
// consumed only when the write and sync succeed; on failure the file is
// truncated back to its previous length and the command counts as not
// delivered.
func (l *Log) Append(cmd command.Command) (command.Command, error) {
	if cmd.IsNoAction() {
		return cmd, ErrNoAction
	}
	if l.poisoned {
		return cmd, ErrPoisoned
	}

	info, err := l.f.Stat()
	if err != nil {
		return cmd, fmt.Errorf("%w: stat: %v", ErrWrite, err)
	}
	size := info.Size()

	cmd.ID = l.next
	line := []byte(cmd.Line())

	n, err := l.f.Write(line)
	if err == nil && n < len(line) {
		err = io.ErrShortWrite
	}
	if err == nil {
		err = l.f.Sync()
	}
	if err != nil {
		if terr := l.f.Truncate(size); terr != nil {
			l.poisoned = true
			return cmd, fmt.Errorf("%w: %w: %v (rollback: %v)", ErrWrite, ErrPoisoned, err, terr)
		}
		return cmd, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	l.next++
	return cmd, nil
}

// Close releases the writer lock and the file.
func (l *Log) Close() error {
	var errs []error
	if l.unlock != nil {
		errs = append(errs, l.unlock())
		l.unlock = nil
	}
	if l.f != nil {
		errs = append(errs, l.f.Close())
		l.f = nil
	}
	return errors.Join(errs...)
}

const tailChunk = 4096

// dropTornTail truncates bytes after the last newline. Every complete
// append ends in '\n', so anything after it is a write that never finished
// and was never delivered. It returns the number of bytes removed.
func dropTornTail(r file) (int64, error) {
	info, err := r.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	end := int64(0)
	for off := size; off > 0; {
		n := int64(tailChunk)
		if off < n {
			n = off
		}
		off -= n

		chunk := make([]byte, n)
		if _, err := r.ReadAt(chunk, off); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			end = off + int64(i) + 1
			break
		}
	}
	if end == size {
		return 0, nil
	}
	if err := r.Truncate(end); err != nil {
		return 0, err
	}
	if err := r.Sync(); err != nil {
		return 0, err
	}
	return size - end, nil
}

// lastID returns the leading id of the final non-blank line, or 0 for an
// empty log.
func lastID(r file) (int64, error) {
	line, err := lastLine(r)
	if err != nil {
		return 0, fmt.Errorf("read command log tail: %w", err)
	}
	if line == "" {
		return 0, nil
	}
	id, err := command.LeadingID(line)
	if err != nil {
		return 0, fmt.Errorf("%w: last line %q", ErrCorrupt, line)
	}
	return id, nil
}

// lastLine reads backwards from EOF in chunks until a complete final line is
// found. Trailing blank lines are skipped.
func lastLine(r file) (string, error) {
	info, err := r.Stat()
	if err != nil {
		return "", err
	}

	var buf []byte
	for off := info.Size(); off > 0; {
		n := int64(tailChunk)
		if off < n {
			n = off
		}
		off -= n

		chunk := make([]byte, n)
		if _, err := r.ReadAt(chunk, off); err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		buf = append(chunk, buf...)

		trimmed := bytes.TrimRight(buf, " \t\r\n")
		if len(trimmed) == 0 {
			continue
		}
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return strings.TrimSpace(string(trimmed[i+1:])), nil
		}
	}
	return strings.TrimSpace(string(buf)), nil
}
