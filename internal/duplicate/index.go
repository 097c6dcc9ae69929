// Package duplicate maintains the perceptual-fingerprint index used for
// duplicate image screening. The index is the only shared mutable state in a
// verification pass; check-then-insert for a fingerprint is a single critical
// section so two concurrent submissions of the same image cannot both observe
// "no duplicate".
package duplicate

import (
	"context"
	"sync"
	"time"

	"github.com/civicfix/verification-service/pkg/phash"
)

// Match is the outcome of a duplicate lookup.
type Match struct {
	Found      bool
	Similarity float64
	IssueID    int64
}

// Index stores fingerprints by owning issue and answers nearest-match
// lookups under a similarity threshold.
type Index interface {
	// CheckAndInsert looks for a stored fingerprint at least threshold-similar
	// to fp that belongs to a different issue. On a hit it returns the match
	// and stores nothing; on a miss it stores fp under issueID. The whole
	// operation is atomic with respect to other calls.
	CheckAndInsert(ctx context.Context, fp phash.Fingerprint, issueID int64) (Match, error)

	// Len reports the number of stored fingerprints.
	Len(ctx context.Context) (int, error)

	// Prune drops fingerprints inserted before the cutoff and returns how
	// many were removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

type entry struct {
	fp         phash.Fingerprint
	issueID    int64
	insertedAt time.Time
}

// MemoryIndex is the in-process index. Lookup is a linear scan, acceptable at
// the moderate cardinality this service sees; a vantage-point index would be
// an optimization, not a contract change.
type MemoryIndex struct {
	mu        sync.Mutex
	threshold float64
	entries   []entry
	now       func() time.Time
}

// NewMemoryIndex builds an in-memory index with the given duplicate
// similarity threshold.
func NewMemoryIndex(threshold float64) *MemoryIndex {
	return &MemoryIndex{threshold: threshold, now: time.Now}
}

func (ix *MemoryIndex) CheckAndInsert(_ context.Context, fp phash.Fingerprint, issueID int64) (Match, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := false
	for _, e := range ix.entries {
		// Self-matches are excluded so a re-submitted image cannot flag
		// its own issue.
		if e.issueID == issueID {
			if e.fp == fp {
				stored = true
			}
			continue
		}
		if sim := phash.Similarity(fp, e.fp); sim >= ix.threshold {
			return Match{Found: true, Similarity: sim, IssueID: e.issueID}, nil
		}
	}

	// A re-submission of an already stored fingerprint must not grow the
	// index.
	if !stored {
		ix.entries = append(ix.entries, entry{fp: fp, issueID: issueID, insertedAt: ix.now()})
	}
	return Match{}, nil
}

func (ix *MemoryIndex) Len(_ context.Context) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.entries), nil
}

func (ix *MemoryIndex) Prune(_ context.Context, cutoff time.Time) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	kept := ix.entries[:0]
	removed := 0
	for _, e := range ix.entries {
		if e.insertedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	ix.entries = kept
	return removed, nil
}
