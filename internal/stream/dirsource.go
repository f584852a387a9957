package stream

import (
	"context"
	"crypto/md5" //nolint:gosec // Content dedupe key, not used for security
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// imageExtensions lists file extensions the spool treats as image items.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
}

// DirSource is a Source backed by a spool directory. Each immediate
// subdirectory is one channel; image files dropped into a channel
// directory are its items. The layout suits exports from chat tooling
// and makes live monitoring testable without network credentials.
//
// File names of the form "<messageID>_<sender>.<ext>" carry the message
// id and sender; anything else is accepted with both left unset.
type DirSource struct {
	root string

	mu       sync.Mutex
	channels []Channel
}

// NewDirSource creates a DirSource rooted at dir. The directory must
// exist.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open spool directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("spool path %s is not a directory", dir)
	}
	return &DirSource{root: dir}, nil
}

// Channels lists the channel subdirectories in name order, assigning ids
// by position. Ids are stable across calls as long as no directory is
// removed.
func (d *DirSource) Channels(_ context.Context) ([]Channel, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list spool directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	channels := make([]Channel, 0, len(names))
	for i, name := range names {
		channels = append(channels, Channel{ID: i + 1, Name: name})
	}

	d.mu.Lock()
	d.channels = channels
	d.mu.Unlock()
	return channels, nil
}

// History returns up to limit image items from the channel directory,
// newest first by message id, then by modification time.
func (d *DirSource) History(_ context.Context, ch Channel, limit int) ([]Item, error) {
	dir := filepath.Join(d.root, ch.Name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel %s: %w", ch.Name, err)
	}

	items := make([]Item, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		item, err := d.loadItem(ch, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].MessageID != items[j].MessageID {
			return items[i].MessageID > items[j].MessageID
		}
		return items[i].When.After(items[j].When)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Subscribe watches the channel directory and delivers each newly created
// image file as an item. The returned channel closes when ctx is
// canceled.
func (d *DirSource) Subscribe(ctx context.Context, ch Channel) (<-chan Item, error) {
	dir := filepath.Join(d.root, ch.Name)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch channel %s: %w", ch.Name, err)
	}

	out := make(chan Item)
	go func() {
		defer close(out)
		defer watcher.Close()

		// Downloaders often create a file empty and fill it with a later
		// write, so a Create event alone does not mean the bytes are
		// there yet. Deduplicate by delivered content, not by the first
		// event seen: an empty or partial read is retried on the next
		// event, and identical re-writes are not delivered twice.
		delivered := make(map[string]string)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
					continue
				}
				if !imageExtensions[strings.ToLower(filepath.Ext(event.Name))] {
					continue
				}
				item, err := d.loadItem(ch, event.Name)
				if err != nil || len(item.Data) == 0 {
					continue
				}
				digest := contentDigest(item.Data)
				if delivered[event.Name] == digest {
					continue
				}
				delivered[event.Name] = digest
				select {
				case out <- item:
				case <-ctx.Done():
					return
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return out, nil
}

// contentDigest fingerprints spool file contents for delivery dedupe.
func contentDigest(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // dedupe key, not used for security
	return hex.EncodeToString(sum[:])
}

// loadItem reads one spool file into an Item.
func (d *DirSource) loadItem(ch Channel, path string) (Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Item{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return Item{}, err
	}

	id, sender := parseSpoolName(filepath.Base(path))
	return Item{
		Channel:   ch.Name,
		MessageID: id,
		Sender:    sender,
		When:      info.ModTime(),
		Data:      data,
	}, nil
}

// parseSpoolName extracts "<messageID>_<sender>" from a file name,
// tolerating names that do not follow the convention.
func parseSpoolName(name string) (int, string) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idPart, sender, ok := strings.Cut(base, "_")
	if !ok {
		return 0, ""
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return 0, base
	}
	return id, sender
}
