package index

import (
	"context"
	"log/slog"
	"path"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/document"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/overlay"
	"github.com/starford/othala/internal/schema"
)

type fileUpdate struct {
	row   FileRow
	cands []CandidateRow
	locs  []LocRow
}

// Sync brings the index up to date with the merged overlay view:
//   - new/changed files are scanned and upserted
//   - files gone from both trees are deleted from the index
//
// Category scans run concurrently (reads only); SQLite writes happen on one
// goroutine afterwards, since the index has a single writer.
func Sync(ctx context.Context, db ReferenceIndex, r *overlay.Resolver, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var updates []fileUpdate
	seen := make(map[string]struct{})

	g, _ := errgroup.WithContext(ctx)
	for _, cat := range overlay.Categories() {
		g.Go(func() error {
			entries, err := r.List(cat)
			if err != nil {
				return err
			}
			for _, e := range entries {
				mu.Lock()
				seen[e.Path] = struct{}{}
				unchanged := checksums[e.Path] == e.Checksum
				mu.Unlock()
				if unchanged {
					continue
				}
				u, err := scanFile(r, cat, e)
				if err != nil {
					logger.Warn("sync: scan failed",
						slog.String("path", e.Path), slog.String("error", err.Error()))
					continue
				}
				mu.Lock()
				updates = append(updates, u)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, u := range updates {
		if err := db.UpsertFile(u.row, u.cands, u.locs); err != nil {
			logger.Warn("sync: upsert failed",
				slog.String("path", u.row.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", u.row.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := seen[p]; !ok {
			if err := db.DeleteFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// scanFile derives the candidate and localization rows one file contributes.
func scanFile(r *overlay.Resolver, cat overlay.Category, e models.Entry) (fileUpdate, error) {
	u := fileUpdate{row: FileRow{
		Path:      e.Path,
		Category:  string(cat),
		Origin:    string(e.Origin),
		Checksum:  e.Checksum,
		UpdatedAt: e.UpdatedAt,
	}}

	// Every file is a generic file-path target.
	u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefFilePath), Key: e.Path})

	switch cat {
	case overlay.CategoryTextures:
		u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefTexturePath), Key: e.Path})
	case overlay.CategorySounds:
		u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefSoundPath), Key: e.Path})
	case overlay.CategoryEntities:
		u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefEntityID), Key: stemOf(e.Path)})
		data, _, err := r.Read(e.Path)
		if err != nil {
			return u, err
		}
		// A root "id" member differing from the file stem is referenceable too.
		root := document.Parse(data)
		if root.Kind == document.KindObject {
			if idNode, _ := root.Member("id"); idNode != nil {
				if id, ok := idNode.Value.(string); ok && id != "" && id != stemOf(e.Path) {
					u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefEntityID), Key: id})
				}
			}
		}
	case overlay.CategoryLocalization:
		data, _, err := r.Read(e.Path)
		if err != nil {
			return u, err
		}
		root := document.Parse(data)
		if root.Kind == document.KindObject {
			for _, m := range root.Members {
				text, _ := m.Node.Value.(string)
				u.cands = append(u.cands, CandidateRow{Kind: string(schema.RefLocalizationKey), Key: m.Name})
				u.locs = append(u.locs, LocRow{Key: m.Name, Text: text})
			}
		}
	}
	return u, nil
}

func stemOf(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
