package domain

import "context"

// Snapshot is the result of reading the reviews document. When the document
// has never been written Exists is false and Doc is the empty collection.
type Snapshot struct {
	Exists  bool
	Version Version
	Doc     Collection
}

// DocumentStore wraps the remote versioned-blob API holding the single
// reviews document. Put succeeds only if version still matches the store's
// current token for the path; pass the empty Version to create the document.
type DocumentStore interface {
	Fetch(ctx context.Context) (Snapshot, error)
	Put(ctx context.Context, doc Collection, version Version, message string) (Version, error)
}

// Throttle rate-limits review submissions per caller key.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}
