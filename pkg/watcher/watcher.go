// Package watcher re-runs analysis when the level XML or a page script changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/finder"
	"github.com/NathanReed2/Battalion-Wars-2-Menu/pkg/logging"
)

// ChangeType is the kind of input that changed
type ChangeType int

const (
	ChangeTypeXML ChangeType = iota
	ChangeTypeScript
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeXML:
		return "xml"
	case ChangeTypeScript:
		return "script"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(t))
	}
}

// ChangeEvent is a batch of changed paths of one type
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

const batchWindow = 100 * time.Millisecond

// FileWatcher watches the level XML and the script directory
type FileWatcher struct {
	watcher    *fsnotify.Watcher
	xmlPath    string
	scriptsDir string
	events     chan ChangeEvent
}

// NewFileWatcher creates a watcher; call Start to begin delivering events
func NewFileWatcher(xmlPath, scriptsDir string) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher:    w,
		xmlPath:    filepath.Clean(xmlPath),
		scriptsDir: filepath.Clean(scriptsDir),
		events:     make(chan ChangeEvent, 16),
	}, nil
}

// Start watches the XML's directory and the script directory until ctx is done.
// Directories are watched rather than files so editors that replace files on save are seen.
func (fw *FileWatcher) Start(ctx context.Context) error {
	dirs := map[string]bool{filepath.Dir(fw.xmlPath): true, fw.scriptsDir: true}
	for dir := range dirs {
		if err := fw.watcher.Add(dir); err != nil {
			fw.watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	logging.Info("watching for changes", "xml", fw.xmlPath, "scripts", fw.scriptsDir)

	go fw.processEvents(ctx)
	return nil
}

// classify maps a file system path to the input it belongs to
func (fw *FileWatcher) classify(path string) (ChangeType, bool) {
	path = filepath.Clean(path)
	if path == fw.xmlPath {
		return ChangeTypeXML, true
	}
	base := filepath.Base(path)
	if filepath.Dir(path) == fw.scriptsDir && filepath.Ext(base) == finder.ScriptExt && !strings.HasPrefix(base, ".") {
		return ChangeTypeScript, true
	}
	return 0, false
}

// processEvents batches raw events per type over a short window
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := map[ChangeType][]string{}
	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, typ := range []ChangeType{ChangeTypeXML, ChangeTypeScript} {
			if paths := pending[typ]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}:
				case <-ctx.Done():
					return
				}
			}
		}
		pending = map[ChangeType][]string{}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			typ, relevant := fw.classify(event.Name)
			if !relevant {
				continue
			}
			logging.Debug("file changed", "path", event.Name, "op", event.Op.String(), "type", typ)
			pending[typ] = append(pending[typ], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns batched change events; the channel is closed when the watcher stops
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
