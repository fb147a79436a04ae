package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDebouncer_MergesBurst(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeScript, Paths: []string{"Main.lua"}}
	input <- ChangeEvent{Type: ChangeTypeXML, Paths: []string{"Frontend2_Level.xml"}}
	input <- ChangeEvent{Type: ChangeTypeScript, Paths: []string{"Options.lua"}}

	select {
	case ev := <-d.Output():
		if ev.Type != ChangeTypeXML {
			t.Errorf("Expected XML to dominate the merged event, got %v", ev.Type)
		}
		if len(ev.Paths) != 3 {
			t.Errorf("Expected 3 merged paths, got %v", ev.Paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for debounced event")
	}

	select {
	case ev := <-d.Output():
		t.Errorf("Unexpected second event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDebouncer_MaxWait(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, time.Hour, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeScript, Paths: []string{"Main.lua"}}

	select {
	case ev := <-d.Output():
		if len(ev.Paths) != 1 {
			t.Errorf("Unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("maxWait did not force a flush")
	}
}

func TestDebouncer_FlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeScript, Paths: []string{"Main.lua"}}
	close(input)

	ev, ok := <-d.Output()
	if !ok || len(ev.Paths) != 1 {
		t.Fatalf("Expected pending event on close, got %+v (%v)", ev, ok)
	}
	if _, ok := <-d.Output(); ok {
		t.Error("Output should be closed after input closes")
	}
}

func TestClassify(t *testing.T) {
	fw := &FileWatcher{xmlPath: "/game/Frontend2_Level.xml", scriptsDir: "/game/scripts"}

	tests := []struct {
		path     string
		want     ChangeType
		relevant bool
	}{
		{"/game/Frontend2_Level.xml", ChangeTypeXML, true},
		{"/game/scripts/Main.lua", ChangeTypeScript, true},
		{"/game/scripts/.Main.lua.swp", 0, false},
		{"/game/scripts/old/Main.lua", 0, false},
		{"/game/scripts/notes.txt", 0, false},
		{"/game/Other.xml", 0, false},
	}
	for _, tt := range tests {
		typ, ok := fw.classify(tt.path)
		if ok != tt.relevant || (ok && typ != tt.want) {
			t.Errorf("classify(%q) = %v, %v; want %v, %v", tt.path, typ, ok, tt.want, tt.relevant)
		}
	}
}

func TestReason(t *testing.T) {
	tests := []struct {
		event ChangeEvent
		want  string
	}{
		{ChangeEvent{Type: ChangeTypeScript, Paths: []string{"/a/Options.lua", "/a/Main.lua", "/a/Main.lua"}}, "Main.lua, Options.lua changed"},
		{ChangeEvent{Type: ChangeTypeXML}, "xml changed"},
		{ChangeEvent{Type: ChangeTypeScript, Paths: []string{"A.lua", "B.lua", "C.lua", "D.lua", "E.lua"}}, "A.lua, B.lua, C.lua and 2 more changed"},
	}
	for _, tt := range tests {
		if got := Reason(tt.event); got != tt.want {
			t.Errorf("Reason() = %q, want %q", got, tt.want)
		}
	}
}

func TestWatch_ScriptChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file system watch test in short mode")
	}

	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "Frontend2_Level.xml")
	if err := os.WriteFile(xmlPath, []byte("<Instances/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan ChangeEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, xmlPath, dir, 20*time.Millisecond, time.Second, func(_ context.Context, ev ChangeEvent) {
			select {
			case changes <- ev:
			default:
			}
		})
	}()

	// Give the watcher time to register before touching files
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case ev := <-changes:
			if ev.Type != ChangeTypeScript {
				t.Errorf("Expected a script change, got %v", ev.Type)
			}
			cancel()
			<-done
			return
		case <-tick.C:
			if err := os.WriteFile(filepath.Join(dir, "Main.lua"), []byte("PopPageStack()\n"), 0o644); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("no change event received")
		}
	}
}
