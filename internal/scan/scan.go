// Package scan keeps the hash store in step with the files under the sync
// folder.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TypeTerrors/rsum/conf"
	"github.com/TypeTerrors/rsum/internal/blocks"
	"github.com/TypeTerrors/rsum/internal/store"
	"github.com/TypeTerrors/rsum/pkg/rsum"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

type Scanner struct {
	cfg     conf.Config
	store   *store.Store
	hasher  blocks.Hasher
	workers int
}

func NewScanner(cfg conf.Config, s *store.Store) *Scanner {
	return &Scanner{
		cfg:     cfg,
		store:   s,
		hasher:  blocks.Hasher{BlockSize: cfg.BlockSize, PadLastBlock: true},
		workers: runtime.NumCPU(),
	}
}

// IsTemporaryFile reports editor backups, partial downloads and the like.
func IsTemporaryFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".#") || strings.HasSuffix(base, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".tmp", ".swp", ".swx", ".part", ".crdownload":
		return true
	}
	return false
}

// relPath turns an absolute file path into the slash separated key used by
// the store.
func (s *Scanner) relPath(path string) (string, error) {
	rel, err := filepath.Rel(s.cfg.SyncFolder, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside of %s", path, s.cfg.SyncFolder)
	}
	return filepath.ToSlash(rel), nil
}

// HashFile computes and stores the hashes of one file.
func (s *Scanner) HashFile(ctx context.Context, path string) (store.FileHashes, error) {
	rel, err := s.relPath(path)
	if err != nil {
		return store.FileHashes{}, err
	}

	cr, err := blocks.NewChunkReader(path)
	if err != nil {
		return store.FileHashes{}, err
	}
	defer cr.Close()

	info := cr.Info()
	fh := store.FileHashes{
		Path:    rel,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	// The whole-file rsum only exists within the zsync length contract.
	if fh.Size <= rsum.MaxLen {
		h := rsum.New()
		if _, err := copyAt(ctx, h, cr, fh.Size); err != nil {
			return store.FileHashes{}, err
		}
		copy(fh.Rsum[:], h.Sum(nil))
	}

	if s.cfg.ZsyncHashes {
		fh.BlockSize = s.cfg.BlockSize
		fh.Blocks, err = s.hasher.HashReader(ctx, cr, fh.Size)
		if err != nil {
			return store.FileHashes{}, err
		}
	}

	if s.cfg.ChunkedHashes {
		fh.ChunkSize = s.cfg.ChunkSize
		fh.Chunks, err = blocks.ChunkHashes(ctx, cr, fh.Size, s.cfg.ChunkSize)
		if err != nil {
			return store.FileHashes{}, err
		}
	}

	if err := s.store.Put(fh); err != nil {
		return store.FileHashes{}, err
	}
	log.Debugf("Hashed %s: rsum %s, %d blocks, %d chunks", rel, fh.Rsum, len(fh.Blocks), len(fh.Chunks))
	return fh, nil
}

// Forget drops the stored hashes of a path that no longer exists. A removed
// or renamed directory takes the hashes of everything below it along.
func (s *Scanner) Forget(path string) error {
	rel, err := s.relPath(path)
	if err != nil {
		return err
	}
	if rel == "." {
		return fmt.Errorf("refusing to forget the sync folder %s", s.cfg.SyncFolder)
	}
	removed, err := s.store.DeleteTree(rel)
	if err != nil {
		return err
	}
	if removed > 1 {
		log.Infof("Forgot %d files under %s", removed, rel)
	}
	return nil
}

// ScanFolder rehashes files that changed since the last scan and forgets files
// that are gone. A file that fails to hash is logged and skipped.
func (s *Scanner) ScanFolder(ctx context.Context) error {
	seen := make(map[string]bool)
	var stale []string

	err := filepath.WalkDir(s.cfg.SyncFolder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() || IsTemporaryFile(path) {
			return nil
		}

		rel, err := s.relPath(path)
		if err != nil {
			return err
		}
		seen[rel] = true

		info, err := d.Info()
		if err != nil {
			log.Errorf("Failed to stat %s: %v", path, err)
			return nil
		}
		if s.store.Stale(rel, info) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range stale {
		g.Go(func() error {
			log.Infof("Hashing file: %s", path)
			if _, err := s.HashFile(gctx, path); err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Errorf("Failed to hash file %s: %v", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, rel := range s.store.List() {
		if seen[rel] {
			continue
		}
		log.Infof("Forgetting removed file: %s", rel)
		if err := s.store.Delete(rel); err != nil {
			log.Errorf("Failed to forget %s: %v", rel, err)
		}
	}
	return nil
}

// Run scans the folder every SyncInterval until ctx is done.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Warn("Shutting down periodic scan...")
			return nil
		case <-ticker.C:
			log.Info("Starting periodic scan of sync folder.")
			if err := s.ScanFolder(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("Error during periodic scan: %v", err)
			}
		}
	}
}
