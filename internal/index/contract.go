package index

// ReferenceIndex defines the interface for reference candidate lookups.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ReferenceIndex interface {
	UpsertFile(f FileRow, cands []CandidateRow, locs []LocRow) error
	DeleteFile(path string) error
	AllChecksums() (map[string]string, error)
	Candidates(kind string, limit int) ([]CandidateRow, error)
	LookupCandidates(kind, key string) ([]CandidateRow, error)
	SearchLocalization(query string, limit int) ([]LocSearchResult, error)
	Close() error
}

// Verify *DB satisfies ReferenceIndex at compile time.
var _ ReferenceIndex = (*DB)(nil)
