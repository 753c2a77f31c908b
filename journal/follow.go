package journal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/rustyeddy/bridge/command"
)

// Follow calls fn for every line appended to the log after the call starts,
// until ctx is done. Truncation rewinds to the start of the file.
func Follow(ctx context.Context, path string, fn func(Entry)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch command log: %w", err)
	}
	defer w.Close()

	// Watch the directory so a log created after we start is picked up.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch command log: %w", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			offset, err = drain(path, offset, fn)
			if err != nil {
				return err
			}
		}
	}
}

// drain emits complete lines past offset and returns the new offset.
// A partial trailing line is left for the next event.
func drain(path string, offset int64, fn func(Entry)) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// incomplete line; wait for the rest
			return offset, nil
		}
		if err != nil {
			return offset, err
		}
		offset += int64(len(line))
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		e := Entry{Line: text}
		e.Cmd, e.Err = command.Parse(text)
		fn(e)
	}
}
