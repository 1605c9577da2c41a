// Package scanner walks a library root, fingerprints video files, and
// upserts the Movie-with-Videos graph into the manifest. Moves are detected
// by fingerprint so renamed files keep their processing history.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"yakusub/internal/avcode"
	"yakusub/internal/logging"
	"yakusub/internal/manifest"
)

// Scanner discovers and registers video files.
type Scanner struct {
	extractor   *avcode.Extractor
	hashWorkers int
	logger      *slog.Logger
}

// New builds a Scanner. hashWorkers bounds concurrent fingerprint reads.
func New(extractor *avcode.Extractor, hashWorkers int, logger *slog.Logger) *Scanner {
	if hashWorkers <= 0 {
		hashWorkers = 4
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		extractor:   extractor,
		hashWorkers: hashWorkers,
		logger:      logging.NewComponentLogger(logger, "scanner"),
	}
}

type discovered struct {
	path string
	sha  string
}

// Scan walks root and registers every allowed video file, returning the ids
// of movies whose videos were touched. Per-file failures log and skip; the
// walk itself never aborts on one bad file.
func (s *Scanner) Scan(ctx context.Context, store *manifest.Store, root string) ([]int64, error) {
	paths, err := s.collectPaths(root)
	if err != nil {
		return nil, err
	}
	files := s.fingerprintAll(ctx, paths)

	session, err := store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = session.Rollback() }()

	touched := make(map[int64]struct{})
	for _, file := range files {
		movieID, err := s.register(ctx, session, file)
		if err != nil {
			s.logger.Warn("skipping file",
				logging.String("path", file.path), logging.Error(err))
			continue
		}
		if movieID != 0 {
			touched[movieID] = struct{}{}
		}
	}

	if err := session.Commit(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	s.logger.Info("scan complete",
		logging.Int("files", len(files)), logging.Int("movies", len(ids)))
	return ids, nil
}

func (s *Scanner) collectPaths(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("walk error", logging.String("path", path), logging.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		if manifest.SuffixAllowed(filepath.Ext(entry.Name())) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// fingerprintAll hashes candidates concurrently. Hash failures drop the
// file from this run.
func (s *Scanner) fingerprintAll(ctx context.Context, paths []string) []discovered {
	var mu sync.Mutex
	files := make([]discovered, 0, len(paths))

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(s.hashWorkers)
	for _, path := range paths {
		path := path
		group.Go(func() error {
			sha, err := Fingerprint(path)
			if err != nil {
				s.logger.Warn("fingerprint failed",
					logging.String("path", path), logging.Error(err))
				return nil
			}
			mu.Lock()
			files = append(files, discovered{path: path, sha: sha})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files
}

func (s *Scanner) register(ctx context.Context, session *manifest.Session, file discovered) (int64, error) {
	existing, err := session.FindVideoBySHA(ctx, file.sha)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if existing.AbsolutePath == file.path {
			return 0, nil
		}
		s.logger.Info("video moved",
			logging.String("from", existing.AbsolutePath),
			logging.String("to", file.path))
		if err := session.UpdateVideoLocation(ctx, existing, file.path); err != nil {
			return 0, err
		}
		return existing.MovieID, nil
	}

	movie, err := s.identify(ctx, session, file)
	if err != nil {
		return 0, err
	}
	if _, err := session.RegisterVideo(ctx, movie.ID, file.sha, file.path); err != nil {
		return 0, err
	}
	return movie.ID, nil
}

// identify resolves the movie for a new video: extracted code when
// possible, anonymous fingerprint identity otherwise.
func (s *Scanner) identify(ctx context.Context, session *manifest.Session, file discovered) (*manifest.Movie, error) {
	filename := filepath.Base(file.path)
	code, err := s.extractor.Extract(ctx, filename)
	if err != nil {
		if !errors.Is(err, avcode.ErrNoCandidate) {
			return nil, err
		}
		s.logger.Info("no code extracted, registering anonymous movie",
			logging.String(logging.FieldVideo, filename))
		return session.GetOrCreateMovie(ctx, manifest.AnonymousLabel, file.sha)
	}
	return session.GetOrCreateMovie(ctx, code.Label, code.Number)
}
