package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Reason describes a change event for logs, e.g. "Main.lua, Options.lua changed"
func Reason(event ChangeEvent) string {
	seen := map[string]bool{}
	var names []string
	for _, p := range event.Paths {
		name := filepath.Base(p)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return fmt.Sprintf("%s changed", event.Type)
	}
	if len(names) > 3 {
		return fmt.Sprintf("%s and %d more changed", strings.Join(names[:3], ", "), len(names)-3)
	}
	return strings.Join(names, ", ") + " changed"
}

// Watch runs onChange once per debounced change until ctx is done. Calls are
// sequential; changes arriving during a call are merged into the next one.
func Watch(ctx context.Context, xmlPath, scriptsDir string, quietPeriod, maxWait time.Duration, onChange func(context.Context, ChangeEvent)) error {
	fw, err := NewFileWatcher(xmlPath, scriptsDir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	d := NewDebouncer(fw.Events(), quietPeriod, maxWait)
	d.Start(ctx)

	for event := range d.Output() {
		if ctx.Err() != nil {
			break
		}
		onChange(ctx, event)
	}
	return ctx.Err()
}
