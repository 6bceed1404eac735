package store

// Store bundles every repository over a single Pool, giving callers one
// construction point instead of wiring each repository by hand.
type Store struct {
	Pool       *Pool
	Documents  *DocumentRepository
	Sources    *SourceRepository
	Jobs       *JobRepository
	Similarity *SimilarityRepository
}

// New builds a Store over an already-opened Pool.
func New(pool *Pool) *Store {
	raw := pool.Raw()
	return &Store{
		Pool:       pool,
		Documents:  NewDocumentRepository(raw),
		Sources:    NewSourceRepository(raw),
		Jobs:       NewJobRepository(raw),
		Similarity: NewSimilarityRepository(raw),
	}
}
