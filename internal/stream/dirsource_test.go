package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSpoolFile(t *testing.T, dir, name string, data []byte, modTime time.Time) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("failed to write spool file: %v", err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}
}

func TestDirSource(t *testing.T) {
	t.Parallel()

	t.Run("channels are subdirectories with positional ids", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		for _, name := range []string{"leaks", "announcements"} {
			if err := os.Mkdir(filepath.Join(root, name), 0750); err != nil {
				t.Fatalf("failed to create channel dir: %v", err)
			}
		}
		writeSpoolFile(t, root, "stray.png", []byte("x"), time.Time{})

		source, err := NewDirSource(root)
		if err != nil {
			t.Fatalf("NewDirSource failed: %v", err)
		}
		channels, err := source.Channels(t.Context())
		if err != nil {
			t.Fatalf("Channels failed: %v", err)
		}

		if len(channels) != 2 {
			t.Fatalf("got %d channels, want 2", len(channels))
		}
		if channels[0].Name != "announcements" || channels[0].ID != 1 {
			t.Errorf("channels[0] = %+v", channels[0])
		}
		if channels[1].Name != "leaks" || channels[1].ID != 2 {
			t.Errorf("channels[1] = %+v", channels[1])
		}
	})

	t.Run("history returns image items newest first with limit", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		dir := filepath.Join(root, "leaks")
		if err := os.Mkdir(dir, 0750); err != nil {
			t.Fatalf("failed to create channel dir: %v", err)
		}
		base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
		writeSpoolFile(t, dir, "1_alice.png", []byte("one"), base)
		writeSpoolFile(t, dir, "2_bob.jpg", []byte("two"), base.Add(time.Minute))
		writeSpoolFile(t, dir, "3_carol.png", []byte("three"), base.Add(2*time.Minute))
		writeSpoolFile(t, dir, "notes.txt", []byte("not an image"), base)

		source, err := NewDirSource(root)
		if err != nil {
			t.Fatalf("NewDirSource failed: %v", err)
		}
		items, err := source.History(t.Context(), Channel{ID: 1, Name: "leaks"}, 2)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}

		if len(items) != 2 {
			t.Fatalf("got %d items, want 2", len(items))
		}
		if items[0].MessageID != 3 || items[0].Sender != "carol" {
			t.Errorf("items[0] = id %d from %q, want 3 from carol", items[0].MessageID, items[0].Sender)
		}
		if items[1].MessageID != 2 {
			t.Errorf("items[1].MessageID = %d, want 2", items[1].MessageID)
		}
		if string(items[0].Data) != "three" {
			t.Errorf("items[0].Data = %q", items[0].Data)
		}
	})

	t.Run("missing root is an error", func(t *testing.T) {
		t.Parallel()

		if _, err := NewDirSource(filepath.Join(t.TempDir(), "absent")); err == nil {
			t.Error("NewDirSource succeeded on a missing directory")
		}
	})

	t.Run("subscribe delivers newly dropped files", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		dir := filepath.Join(root, "leaks")
		if err := os.Mkdir(dir, 0750); err != nil {
			t.Fatalf("failed to create channel dir: %v", err)
		}

		source, err := NewDirSource(root)
		if err != nil {
			t.Fatalf("NewDirSource failed: %v", err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		items, err := source.Subscribe(ctx, Channel{ID: 1, Name: "leaks"})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		// Rename into the watched directory so the create event is only
		// observable once the bytes are fully in place.
		staging := filepath.Join(root, "10_dave.png")
		if err := os.WriteFile(staging, []byte("payload"), 0600); err != nil {
			t.Fatalf("failed to stage spool file: %v", err)
		}
		if err := os.Rename(staging, filepath.Join(dir, "10_dave.png")); err != nil {
			t.Fatalf("failed to move spool file: %v", err)
		}

		select {
		case item := <-items:
			if item.MessageID != 10 || item.Sender != "dave" {
				t.Errorf("item = id %d from %q, want 10 from dave", item.MessageID, item.Sender)
			}
			if string(item.Data) != "payload" {
				t.Errorf("item.Data = %q", item.Data)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no item delivered within 5s")
		}

		cancel()
		select {
		case _, ok := <-items:
			if ok {
				t.Error("received an item after cancellation, want closed channel")
			}
		case <-time.After(5 * time.Second):
			t.Fatal("item channel not closed after cancellation")
		}
	})

	t.Run("subscribe delivers files created empty and written later", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		dir := filepath.Join(root, "leaks")
		if err := os.Mkdir(dir, 0750); err != nil {
			t.Fatalf("failed to create channel dir: %v", err)
		}

		source, err := NewDirSource(root)
		if err != nil {
			t.Fatalf("NewDirSource failed: %v", err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		items, err := source.Subscribe(ctx, Channel{ID: 1, Name: "leaks"})
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}

		// The downloader pattern: the file exists (and is empty) well
		// before its bytes land.
		path := filepath.Join(dir, "11_erin.png")
		f, err := os.Create(path)
		if err != nil {
			t.Fatalf("failed to create spool file: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("failed to close spool file: %v", err)
		}
		time.Sleep(300 * time.Millisecond)
		if err := os.WriteFile(path, []byte("late payload"), 0600); err != nil {
			t.Fatalf("failed to fill spool file: %v", err)
		}

		select {
		case item := <-items:
			if string(item.Data) != "late payload" {
				t.Errorf("item.Data = %q, want the written bytes", item.Data)
			}
			if item.MessageID != 11 || item.Sender != "erin" {
				t.Errorf("item = id %d from %q, want 11 from erin", item.MessageID, item.Sender)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no item delivered within 5s")
		}

		// Re-writing identical bytes is suppressed; the next delivery
		// must be the genuinely new content.
		if err := os.WriteFile(path, []byte("late payload"), 0600); err != nil {
			t.Fatalf("failed to rewrite spool file: %v", err)
		}
		if err := os.WriteFile(path, []byte("updated payload"), 0600); err != nil {
			t.Fatalf("failed to update spool file: %v", err)
		}

		select {
		case item := <-items:
			if string(item.Data) != "updated payload" {
				t.Errorf("item.Data = %q, want the updated bytes", item.Data)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no updated item delivered within 5s")
		}
	})
}
