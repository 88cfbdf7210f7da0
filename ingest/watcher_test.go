package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	config := WatchConfig{
		Enabled:        true,
		Debounce:       100 * time.Millisecond,
		FileExtensions: []string{".xml", "gz"},
		ExcludeDirs:    []string{".git"},
	}

	watcher, err := NewWatcher(config, tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	// Verify extensions are properly set, with the dot prefix added
	if !watcher.extensions[".xml"] {
		t.Error("expected .xml extension to be watched")
	}
	if !watcher.extensions[".gz"] {
		t.Error("expected .gz extension to be watched")
	}

	// Verify excludes are properly set
	if !watcher.excludes[".git"] {
		t.Error("expected .git to be excluded")
	}
}

func TestWatchConfigDebounce(t *testing.T) {
	tests := []struct {
		name   string
		delay  time.Duration
		expect time.Duration
	}{
		{
			name:   "explicit duration",
			delay:  100 * time.Millisecond,
			expect: 100 * time.Millisecond,
		},
		{
			name:   "zero uses default",
			delay:  0,
			expect: 500 * time.Millisecond,
		},
		{
			name:   "negative uses default",
			delay:  -time.Second,
			expect: 500 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := WatchConfig{Debounce: tt.delay}
			got := config.debounce()
			if got != tt.expect {
				t.Errorf("debounce() = %v, want %v", got, tt.expect)
			}
		})
	}
}

func TestDefaultWatchConfig(t *testing.T) {
	config := DefaultWatchConfig()

	if config.Enabled {
		t.Error("default config should have watching disabled")
	}

	if config.Debounce != 500*time.Millisecond {
		t.Errorf("unexpected default debounce: %v", config.Debounce)
	}

	if len(config.FileExtensions) != 3 {
		t.Errorf("expected 3 default extensions, got %d", len(config.FileExtensions))
	}

	if len(config.ExcludeDirs) != 3 {
		t.Errorf("expected 3 default excludes, got %d", len(config.ExcludeDirs))
	}
}

func TestWatcherFileCreation(t *testing.T) {
	tmpDir := t.TempDir()

	config := WatchConfig{
		Enabled:        true,
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".xml"},
		ExcludeDirs:    []string{".git"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewWatcher(config, tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	// Create a manuscript file
	testFile := filepath.Join(tmpDir, "paper.xml")
	if err := os.WriteFile(testFile, []byte("<article/>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Wait for event
	select {
	case event := <-watcher.Events():
		if event.Operation != WatchOpCreate {
			t.Errorf("expected create operation, got %s", event.Operation)
		}
		if event.Path != "paper.xml" {
			t.Errorf("expected path paper.xml, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for create event")
	}
}

func TestWatcherFileModification(t *testing.T) {
	tmpDir := t.TempDir()

	// Pre-create the file
	testFile := filepath.Join(tmpDir, "paper.xml")
	if err := os.WriteFile(testFile, []byte("<article/>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	config := WatchConfig{
		Enabled:        true,
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".xml"},
		ExcludeDirs:    []string{".git"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewWatcher(config, tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Set the hash for the initial content
	watcher.SetHash("paper.xml", "initial-hash")

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	// Modify the file
	if err := os.WriteFile(testFile, []byte("<article dtd-version=\"1.2\"/>"), 0644); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	// Wait for event
	select {
	case event := <-watcher.Events():
		if event.Operation != WatchOpModify {
			t.Errorf("expected modify operation, got %s", event.Operation)
		}
		if event.Path != "paper.xml" {
			t.Errorf("expected path paper.xml, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for modify event")
	}
}

func TestWatcherFileDeletion(t *testing.T) {
	tmpDir := t.TempDir()

	// Pre-create the file
	testFile := filepath.Join(tmpDir, "shard.tfrecord")
	if err := os.WriteFile(testFile, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	config := WatchConfig{
		Enabled:        true,
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".tfrecord"},
		ExcludeDirs:    []string{".git"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewWatcher(config, tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Set the hash so we track the file
	watcher.SetHash("shard.tfrecord", "some-hash")

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	// Delete the file
	if err := os.Remove(testFile); err != nil {
		t.Fatalf("failed to remove test file: %v", err)
	}

	// Wait for event
	select {
	case event := <-watcher.Events():
		if event.Operation != WatchOpDelete {
			t.Errorf("expected delete operation, got %s", event.Operation)
		}
		if event.Path != "shard.tfrecord" {
			t.Errorf("expected path shard.tfrecord, got %s", event.Path)
		}
	case <-time.After(1 * time.Second):
		t.Error("timeout waiting for delete event")
	}
}

func TestWatcherIgnoresNonWatchedExtensions(t *testing.T) {
	tmpDir := t.TempDir()

	config := WatchConfig{
		Enabled:        true,
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".xml"},
		ExcludeDirs:    []string{".git"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewWatcher(config, tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	// Create a non-watched file
	testFile := filepath.Join(tmpDir, "notes.txt")
	if err := os.WriteFile(testFile, []byte("notes"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Wait briefly - should not receive event
	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for non-watched extension: %+v", event)
	case <-time.After(300 * time.Millisecond):
		// Expected - no event for non-watched extension
	}
}

func TestWatcherIgnoresExcludedDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	// Create excluded directory
	excludedDir := filepath.Join(tmpDir, ".git")
	if err := os.MkdirAll(excludedDir, 0755); err != nil {
		t.Fatalf("failed to create excluded dir: %v", err)
	}

	config := WatchConfig{
		Enabled:        true,
		Debounce:       50 * time.Millisecond,
		FileExtensions: []string{".xml"},
		ExcludeDirs:    []string{".git"},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	watcher, err := NewWatcher(config, tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer watcher.Stop()

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)

	// Create a file in excluded directory
	testFile := filepath.Join(excludedDir, "paper.xml")
	if err := os.WriteFile(testFile, []byte("<article/>"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	// Wait briefly - should not receive event
	select {
	case event := <-watcher.Events():
		t.Errorf("unexpected event for file in excluded directory: %+v", event)
	case <-time.After(300 * time.Millisecond):
		// Expected - no event for excluded directory
	}
}

func TestWatcherSetGetHash(t *testing.T) {
	tmpDir := t.TempDir()

	config := DefaultWatchConfig()
	watcher, err := NewWatcher(config, tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	// Test SetHash and GetHash
	watcher.SetHash("paper.xml", "abc123")

	hash, ok := watcher.GetHash("paper.xml")
	if !ok {
		t.Error("expected hash to exist")
	}
	if hash != "abc123" {
		t.Errorf("expected hash abc123, got %s", hash)
	}

	// Test non-existent
	_, ok = watcher.GetHash("nonexistent.xml")
	if ok {
		t.Error("expected hash to not exist for nonexistent file")
	}
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("content"))
	b := ContentHash([]byte("content"))
	c := ContentHash([]byte("different"))

	if a != b {
		t.Error("same content must hash identically")
	}
	if a == c {
		t.Error("different content must hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(a))
	}
}

func TestWatcherDroppedEvents(t *testing.T) {
	tmpDir := t.TempDir()

	config := DefaultWatchConfig()
	watcher, err := NewWatcher(config, tmpDir, nil)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Stop()

	// Initially no dropped events
	if watcher.DroppedEvents() != 0 {
		t.Errorf("expected 0 dropped events, got %d", watcher.DroppedEvents())
	}
}
