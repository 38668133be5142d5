package checker

import (
	"context"
	"sync"

	"github.com/alucardeht/typeline/internal/textenc"
	"github.com/alucardeht/typeline/internal/watcher"
)

// docNotifier is the slice of Client document sync depends on. Tests
// substitute a fake so version bookkeeping can be exercised without a
// live connection.
type docNotifier interface {
	DidOpen(ctx context.Context, uri, text string, version int) error
	DidChange(ctx context.Context, uri, text string, version int) error
	DidClose(ctx context.Context, uri string) error
}

// DocSync mirrors on-disk edits into the checker's open-document set.
// First sight of a path opens it at version 1, later edits bump the
// version, deletes and renames close it. Versions are per server
// session; Reset after a restart.
type DocSync struct {
	mu       sync.Mutex
	versions map[string]int
	read     func(path string) (string, error)
}

func NewDocSync() *DocSync {
	return &DocSync{
		versions: make(map[string]int),
		read: func(path string) (string, error) {
			text, _, err := textenc.ReadFile(path)
			return text, err
		},
	}
}

// Apply forwards a debounced batch of file events to the client.
// Notification failures are logged and skipped so one bad path cannot
// stall the rest of the batch.
func (d *DocSync) Apply(ctx context.Context, client docNotifier, events []watcher.FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ev := range events {
		uri := FileURI(ev.Path)

		switch ev.Type {
		case watcher.EventDelete, watcher.EventRename:
			if _, open := d.versions[ev.Path]; !open {
				continue
			}
			delete(d.versions, ev.Path)
			if err := client.DidClose(ctx, uri); err != nil {
				log.Warn("didClose failed", "path", ev.Path, "error", err)
			}

		default:
			text, err := d.read(ev.Path)
			if err != nil {
				log.Debug("skipping unreadable file", "path", ev.Path, "error", err)
				continue
			}

			version, open := d.versions[ev.Path]
			if !open {
				d.versions[ev.Path] = 1
				if err := client.DidOpen(ctx, uri, text, 1); err != nil {
					log.Warn("didOpen failed", "path", ev.Path, "error", err)
					delete(d.versions, ev.Path)
				}
				continue
			}

			version++
			d.versions[ev.Path] = version
			if err := client.DidChange(ctx, uri, text, version); err != nil {
				log.Warn("didChange failed", "path", ev.Path, "error", err)
			}
		}
	}
}

// Reset drops all tracked documents. A freshly started server has no
// open documents, so every path is reopened at version 1 on its next
// event.
func (d *DocSync) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.versions = make(map[string]int)
}
