// Package scan indexes a directory tree of media files into the database.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/franz/media-index/internal/report"
	"github.com/franz/media-index/internal/schema"
	"github.com/franz/media-index/internal/store"
	"github.com/franz/media-index/internal/util"
	"github.com/schollz/progressbar/v3"
)

// Scanner discovers media files in a directory tree
type Scanner struct {
	handle      *store.Handle
	mountPoint  string
	concurrency int
	logger      *report.EventLogger
}

// Config holds scanner configuration
type Config struct {
	Handle *store.Handle

	// MountPoint is the device path the scanned directory is indexed
	// under, e.g. /storage/emulated/0. Empty keeps host paths.
	MountPoint string

	Concurrency int
	Logger      *report.EventLogger
}

// New creates a new Scanner
func New(cfg *Config) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Scanner{
		handle:      cfg.Handle,
		mountPoint:  cfg.MountPoint,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
}

// Result represents a scan result
type Result struct {
	FilesDiscovered int // new rows
	FilesUpdated    int // rows whose size or mtime changed
	FilesSkipped    int // unchanged rows
	Errors          []error
}

type errorList struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorList) add(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

// candidate is a file read by a worker, waiting for the writer.
type candidate struct {
	record *store.MediaRecord
	genre  string
}

// Scan walks the source directory and indexes media files
func (s *Scanner) Scan(ctx context.Context, sourcePath string) (*Result, error) {
	util.InfoLog("Starting scan of: %s", sourcePath)

	// Migrate before the workers start so errors surface once
	if _, err := s.handle.Writable(ctx); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", sourcePath, err)
	}

	errs := &errorList{}
	filePaths := make(chan string, 100)
	candidates := make(chan *candidate, 100)

	var filesFound atomic.Int64
	var filesProcessed atomic.Int64
	var filesNew, filesUpdated, filesSkipped atomic.Int64

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()

	// Check if stdout is a terminal (disable progress bar if piped/redirected)
	isTTY := util.IsTerminal(os.Stdout.Fd())
	var bar *progressbar.ProgressBar

	if isTTY && !util.IsQuiet() {
		// Indeterminate, the total is unknown while walking
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("Scanning"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				found := filesFound.Load()
				processed := filesProcessed.Load()
				if found == 0 {
					continue
				}
				if bar != nil {
					bar.Describe(fmt.Sprintf("Scanning | %d found | %d new | %d unchanged",
						found, filesNew.Load(), filesSkipped.Load()))
					bar.Set64(processed)
				} else {
					util.InfoLog("Progress: found %d media files, processed %d", found, processed)
				}
			}
		}
	}()

	// SQLite has a single writer, so one goroutine does all inserts
	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		w := &writer{handle: s.handle, genres: make(map[string]int64)}

		for c := range candidates {
			outcome, err := w.write(ctx, c)
			filesProcessed.Add(1)
			s.logger.LogScan(c.record.Path, c.record.MediaType, err)

			switch {
			case err != nil:
				util.ErrorLog("Failed to index %s: %v", c.record.Path, err)
				errs.add(err)
			case outcome == outcomeNew:
				filesNew.Add(1)
			case outcome == outcomeUpdated:
				filesUpdated.Add(1)
			default:
				filesSkipped.Add(1)
			}
		}
	}()

	// Workers stat files and read tags
	var wg sync.WaitGroup
	for i := 0; i < s.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range filePaths {
				c, err := s.read(root, p)
				if err != nil {
					util.WarnLog("Failed to read %s: %v", p, err)
					errs.add(err)
					filesProcessed.Add(1)
					continue
				}
				select {
				case candidates <- c:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			util.WarnLog("Error accessing path %s: %v", p, err)
			errs.add(fmt.Errorf("access error: %s: %w", p, err))
			return nil // Continue walking
		}
		if d.IsDir() {
			return nil
		}

		if mediaType, _ := classify(p); mediaType != schema.MediaTypeNone {
			filesFound.Add(1)
			select {
			case filePaths <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	close(filePaths)
	wg.Wait()
	close(candidates)
	writerWg.Wait()

	cancelProgress()
	if bar != nil {
		bar.Finish()
	}

	result := &Result{
		FilesDiscovered: int(filesNew.Load()),
		FilesUpdated:    int(filesUpdated.Load()),
		FilesSkipped:    int(filesSkipped.Load()),
		Errors:          errs.errs,
	}

	if walkErr != nil && walkErr != context.Canceled {
		return result, fmt.Errorf("walk error: %w", walkErr)
	}

	util.SuccessLog("Scan complete: %d new, %d updated, %d unchanged, %d errors",
		result.FilesDiscovered, result.FilesUpdated, result.FilesSkipped, len(result.Errors))

	return result, nil
}

// devicePath maps a host path below root to the path stored in the index.
func (s *Scanner) devicePath(root, p string) (string, error) {
	if s.mountPoint == "" {
		return filepath.ToSlash(p), nil
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	return path.Join(s.mountPoint, filepath.ToSlash(rel)), nil
}

func (s *Scanner) read(root, p string) (*candidate, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	devPath, err := s.devicePath(root, p)
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", p, err)
	}

	mediaType, mime := classify(p)
	rec := &store.MediaRecord{
		Path:         devPath,
		Size:         info.Size(),
		MediaType:    mediaType,
		MimeType:     mime,
		DateModified: info.ModTime().Unix(),
	}
	c := &candidate{record: rec}

	if mediaType == schema.MediaTypeAudio {
		t := tagsOrDefaults(p)
		rec.Title = t.Title
		rec.Artist = t.Artist
		rec.Album = t.Album
		rec.AlbumArtist = t.AlbumArtist
		rec.Composer = t.Composer
		rec.Year = t.Year
		rec.Track = t.Track
		rec.IsAudiobook = isAudiobook(p)
		rec.IsMusic = !rec.IsAudiobook
		c.genre = t.Genre
	}

	return c, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeNew
	outcomeUpdated
)

type writer struct {
	handle *store.Handle
	genres map[string]int64
}

func (w *writer) write(ctx context.Context, c *candidate) (outcome, error) {
	rec := c.record

	existing, err := w.handle.GetFileByPath(ctx, rec.Path)
	if err != nil {
		return outcomeUnchanged, err
	}
	if existing != nil && existing.Size == rec.Size && existing.DateModified == rec.DateModified {
		util.DebugLog("Unchanged: %s", rec.Path)
		return outcomeUnchanged, nil
	}

	if rec.MediaType == schema.MediaTypeAudio {
		if rec.ArtistID, err = w.handle.UpsertArtist(ctx, rec.Artist); err != nil {
			return outcomeUnchanged, err
		}
		if rec.AlbumID, err = w.handle.UpsertAlbum(ctx, rec.Album); err != nil {
			return outcomeUnchanged, err
		}
	}

	if err := w.handle.InsertFile(ctx, rec); err != nil {
		return outcomeUnchanged, err
	}

	if c.genre != "" && !w.handle.Internal() {
		if err := w.addGenre(ctx, rec.ID, c.genre); err != nil {
			return outcomeUnchanged, err
		}
	}

	if existing != nil {
		util.DebugLog("Updated: %s", rec.Path)
		return outcomeUpdated, nil
	}
	util.DebugLog("Discovered: %s", rec.Path)
	return outcomeNew, nil
}

func (w *writer) addGenre(ctx context.Context, audioID int64, name string) error {
	id, ok := w.genres[name]
	if !ok {
		var err error
		if id, err = w.handle.InsertGenre(ctx, name); err != nil {
			return err
		}
		w.genres[name] = id
	}
	return w.handle.AddToGenre(ctx, audioID, id)
}
