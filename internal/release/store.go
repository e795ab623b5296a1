package release

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	binderrors "git.home.luguber.info/inful/bindery/internal/errors"
)

// Store persists releases in sqlite. The version components are stored as
// separate integer columns so "latest" is a plain ORDER BY, not a string
// comparison.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewStore initializes the release schema on the given database handle.
// The handle is shared with other owners (channel state); Close is the
// caller's job.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("initialize release schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS releases (
		version TEXT PRIMARY KEY,
		major INTEGER NOT NULL,
		minor INTEGER NOT NULL,
		patch INTEGER NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		published_at INTEGER
	);
	CREATE TABLE IF NOT EXISTS release_artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		version TEXT NOT NULL REFERENCES releases(version),
		position INTEGER NOT NULL,
		target TEXT NOT NULL,
		format TEXT NOT NULL,
		filename TEXT NOT NULL,
		size INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		payload_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_release_artifacts_version ON release_artifacts(version);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert writes a release and its artifact references in one transaction.
func (s *Store) Insert(ctx context.Context, rel *Release) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := ParseVersion(rel.Version)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return binderrors.StoreFailed("begin insert release", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO releases (version, major, minor, patch, status, notes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rel.Version, v.Major, v.Minor, v.Patch, string(rel.Status), rel.Notes, rel.CreatedAt.Unix(),
	)
	if err != nil {
		return binderrors.StoreFailed("insert release", err)
	}
	for i, a := range rel.Artifacts {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO release_artifacts (version, position, target, format, filename, size, content_hash, payload_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rel.Version, i, a.Target, a.Format, a.Filename, a.Size, a.ContentHash, a.PayloadHash,
		)
		if err != nil {
			return binderrors.StoreFailed("insert release artifact", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return binderrors.StoreFailed("commit release", err)
	}
	return nil
}

// MarkPublished records the draft→published transition. The caller checks
// state beforehand; this only flips rows still in draft.
func (s *Store) MarkPublished(ctx context.Context, version string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE releases SET status = ?, published_at = ? WHERE version = ? AND status = ?`,
		string(StatusPublished), at.Unix(), version, string(StatusDraft),
	)
	if err != nil {
		return binderrors.StoreFailed("mark published", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return binderrors.StoreFailed("mark published", err)
	}
	if n == 0 {
		return fmt.Errorf("release %s not in draft", version)
	}
	return nil
}

const releaseColumns = `version, status, notes, created_at, published_at`

// Get returns one release by canonical version, nil when absent.
func (s *Store) Get(ctx context.Context, version string) (*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE version = ?`, version)
	return s.scanOne(ctx, row)
}

// Latest returns the highest-versioned release regardless of status, nil
// when the ledger is empty.
func (s *Store) Latest(ctx context.Context) (*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases ORDER BY major DESC, minor DESC, patch DESC LIMIT 1`)
	return s.scanOne(ctx, row)
}

// LatestPublished returns the highest-versioned published release, nil
// when none has been published.
func (s *Store) LatestPublished(ctx context.Context) (*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+releaseColumns+` FROM releases WHERE status = ? ORDER BY major DESC, minor DESC, patch DESC LIMIT 1`,
		string(StatusPublished))
	return s.scanOne(ctx, row)
}

// List returns all releases, newest version first.
func (s *Store) List(ctx context.Context) ([]*Release, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+releaseColumns+` FROM releases ORDER BY major DESC, minor DESC, patch DESC`)
	if err != nil {
		return nil, binderrors.StoreFailed("list releases", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, binderrors.StoreFailed("iterate releases", err)
	}
	for _, rel := range releases {
		if err := s.loadArtifacts(ctx, rel); err != nil {
			return nil, err
		}
	}
	return releases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanOne(ctx context.Context, row *sql.Row) (*Release, error) {
	rel, err := scanRelease(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := s.loadArtifacts(ctx, rel); err != nil {
		return nil, err
	}
	return rel, nil
}

func scanRelease(row rowScanner) (*Release, error) {
	var rel Release
	var status string
	var createdAt int64
	var publishedAt sql.NullInt64
	if err := row.Scan(&rel.Version, &status, &rel.Notes, &createdAt, &publishedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, binderrors.StoreFailed("scan release", err)
	}
	rel.Status = Status(status)
	rel.CreatedAt = time.Unix(createdAt, 0).UTC()
	if publishedAt.Valid {
		t := time.Unix(publishedAt.Int64, 0).UTC()
		rel.PublishedAt = &t
	}
	return &rel, nil
}

func (s *Store) loadArtifacts(ctx context.Context, rel *Release) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target, format, filename, size, content_hash, payload_hash
		 FROM release_artifacts WHERE version = ? ORDER BY position`, rel.Version)
	if err != nil {
		return binderrors.StoreFailed("load release artifacts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a ArtifactRef
		if err := rows.Scan(&a.Target, &a.Format, &a.Filename, &a.Size, &a.ContentHash, &a.PayloadHash); err != nil {
			return binderrors.StoreFailed("scan release artifact", err)
		}
		rel.Artifacts = append(rel.Artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return binderrors.StoreFailed("iterate release artifacts", err)
	}
	return nil
}
