package core

import (
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Store is the persistent, indexed fragment store: a single SQLite
// connection wrapped in one mutex that every call takes, reads included, so
// reads and writes are all serialized; readers do not run concurrently with
// each other. It is modeled on
// the teacher's gateway-backed Storage, but the transport is gone — fragments
// live directly in SQLite rows, not on a remote IPFS gateway.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *logrus.Logger
}

// OpenStore opens (or creates) a fragment store at path. Use ":memory:" for
// an in-memory store, matching §4.C's "supports file-backed and in-memory
// modes, selected at open."
func OpenStore(path string, logger *logrus.Logger) (s *Store, err error) {
	if logger == nil {
		logger = logrus.New()
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}
	db, openErr := sql.Open("sqlite3", dsn)
	if openErr != nil {
		return nil, wrapStorageErr(DatabaseError, openErr)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if pingErr := db.Ping(); pingErr != nil {
		return nil, wrapStorageErr(DatabaseError, pingErr)
	}

	s = &Store{db: db, logger: logger}
	if err = s.initSchema(); err != nil {
		return nil, err
	}
	logger.Debugf("fragment store opened at %s", path)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fragments (
		repo_hash BLOB NOT NULL,
		fragment_id INTEGER NOT NULL,
		share_id INTEGER NOT NULL,
		data BLOB NOT NULL,
		data_hash BLOB NOT NULL,
		stored_at INTEGER NOT NULL,
		last_challenged_at INTEGER,
		PRIMARY KEY (repo_hash, fragment_id, share_id)
	);

	CREATE TABLE IF NOT EXISTS challenges (
		challenge_id TEXT PRIMARY KEY,
		repo_hash BLOB NOT NULL,
		fragment_id INTEGER NOT NULL,
		share_id INTEGER NOT NULL,
		range_start INTEGER NOT NULL,
		range_len INTEGER NOT NULL,
		issued_at INTEGER NOT NULL,
		outcome TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	return nil
}

// Chunk is one fixed-size slice of a repository's raw bytes, tagged with its
// position in the original stream.
type Chunk struct {
	Index uint32
	Data  []byte
}

// ChunkData splits data into chunkSize-byte pieces, indexed from 0. The last
// chunk may be shorter; empty input yields an empty sequence.
func ChunkData(data []byte, chunkSize int) []Chunk {
	if len(data) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (len(data)+chunkSize-1)/chunkSize)
	for i, idx := 0, uint32(0); i < len(data); i, idx = i+chunkSize, idx+1 {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, Chunk{Index: idx, Data: data[i:end]})
	}
	return chunks
}

// Reassemble concatenates chunks ordered by index, regardless of input
// order. Missing indices (a gap in 0..max) are reported as MissingChunk.
func Reassemble(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	sorted := make([]Chunk, len(chunks))
	copy(sorted, chunks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	for i, c := range sorted {
		if c.Index != uint32(i) {
			return nil, &StorageError{Kind: MissingChunk, Index: uint32(i)}
		}
	}

	var out []byte
	for _, c := range sorted {
		out = append(out, c.Data...)
	}
	return out, nil
}

// StoreFragment upserts a share's payload, recomputing data_hash and
// stored_at on every write.
func (s *Store) StoreFragment(repo RepoHash, fragmentID uint32, shareID uint8, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := Sha256(data)
	_, err := s.db.Exec(
		`INSERT INTO fragments (repo_hash, fragment_id, share_id, data, data_hash, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repo_hash, fragment_id, share_id)
		 DO UPDATE SET data=excluded.data, data_hash=excluded.data_hash, stored_at=excluded.stored_at`,
		repo[:], fragmentID, shareID, data, hash[:], time.Now().Unix(),
	)
	if err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	return nil
}

// GetFragment returns the stored payload for the given coordinate.
func (s *Store) GetFragment(repo RepoHash, fragmentID uint32, shareID uint8) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.QueryRow(
		`SELECT data FROM fragments WHERE repo_hash = ? AND fragment_id = ? AND share_id = ?`,
		repo[:], fragmentID, shareID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, newStorageErr(NotFound, fmt.Sprintf("repo=%s fragment=%d share=%d", repo, fragmentID, shareID))
	}
	if err != nil {
		return nil, wrapStorageErr(DatabaseError, err)
	}
	return data, nil
}

// FragmentInfo is one row of a repository's fragment listing.
type FragmentInfo struct {
	FragmentID       uint32
	ShareID          uint8
	DataHash         Hash256
	StoredAt         time.Time
	LastChallengedAt *time.Time
}

// ListFragments returns every fragment stored for repo, ordered by
// (fragment_id, share_id).
func (s *Store) ListFragments(repo RepoHash) ([]FragmentInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT fragment_id, share_id, data_hash, stored_at, last_challenged_at
		 FROM fragments WHERE repo_hash = ? ORDER BY fragment_id, share_id`,
		repo[:],
	)
	if err != nil {
		return nil, wrapStorageErr(DatabaseError, err)
	}
	defer rows.Close()

	var out []FragmentInfo
	for rows.Next() {
		var (
			fragmentID uint32
			shareID    uint8
			dataHash   []byte
			storedAt   int64
			lastChal   sql.NullInt64
		)
		if err := rows.Scan(&fragmentID, &shareID, &dataHash, &storedAt, &lastChal); err != nil {
			return nil, wrapStorageErr(DatabaseError, err)
		}
		info := FragmentInfo{
			FragmentID: fragmentID,
			ShareID:    shareID,
			StoredAt:   time.Unix(storedAt, 0).UTC(),
		}
		copy(info.DataHash[:], dataHash)
		if lastChal.Valid {
			t := time.Unix(lastChal.Int64, 0).UTC()
			info.LastChallengedAt = &t
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStorageErr(DatabaseError, err)
	}
	return out, nil
}

// DeleteFragment removes a fragment. An absent key is reported as NotFound
// (Open Question 2, resolved in favor of the stricter behavior).
func (s *Store) DeleteFragment(repo RepoHash, fragmentID uint32, shareID uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM fragments WHERE repo_hash = ? AND fragment_id = ? AND share_id = ?`,
		repo[:], fragmentID, shareID,
	)
	if err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	if n == 0 {
		return newStorageErr(NotFound, fmt.Sprintf("repo=%s fragment=%d share=%d", repo, fragmentID, shareID))
	}
	return nil
}

// TouchChallenged stamps last_challenged_at for the fragment a challenge was
// issued against.
func (s *Store) TouchChallenged(repo RepoHash, fragmentID uint32, shareID uint8, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE fragments SET last_challenged_at = ? WHERE repo_hash = ? AND fragment_id = ? AND share_id = ?`,
		at.Unix(), repo[:], fragmentID, shareID,
	)
	if err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	return nil
}

// RecordChallenge appends one audit row. Challenge rows are never updated.
func (s *Store) RecordChallenge(c Challenge, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO challenges (challenge_id, repo_hash, fragment_id, share_id, range_start, range_len, issued_at, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ChallengeID, c.RepoHash[:], c.FragmentID, c.ShareID, c.RangeStart, c.RangeLen, c.IssuedAt.Unix(), outcome,
	)
	if err != nil {
		return wrapStorageErr(DatabaseError, err)
	}
	return nil
}
