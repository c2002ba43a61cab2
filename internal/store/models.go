package store

// Record is a chunk ready to persist: text, metadata, and its embedding.
// The ID is the deterministic chunk id derived from the owning document,
// so writing the same record twice overwrites rather than duplicates.
type Record struct {
	ID          string
	DocID       string
	ChunkIndex  int
	TotalChunks int
	Hash        string
	Content     string
	Source      string
	Type        string
	Embedding   []float32
}

// Hit is a raw nearest-neighbor match before score conversion and
// threshold filtering.
type Hit struct {
	ID         string
	DocID      string
	ChunkIndex int
	Content    string
	Source     string
	Type       string
	Distance   float64
}
