package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"review_board/internal/domain"
)

// Moderation actions accepted on the admin surface.
const (
	ActionApprove   = "approve"
	ActionUnapprove = "unapprove"
	ActionDelete    = "delete"
)

const (
	StatusApproved = "approved"
	StatusPending  = "pending"
)

// Service drives every read and mutation of the reviews document. It holds no
// state between calls: each request refetches, and all coordination between
// concurrent writers is the store's version-token check.
type Service struct {
	store domain.DocumentStore
}

func NewService(store domain.DocumentStore) *Service {
	return &Service{store: store}
}

// List returns one bucket of the collection. Unknown statuses fall back to
// the approved bucket, matching the public read surface.
func (s *Service) List(ctx context.Context, status string) ([]domain.Review, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(status, StatusPending) {
		return snap.Doc.Pending, nil
	}
	return snap.Doc.Approved, nil
}

// Submit sanitizes the input and appends it to the pending bucket. Validation
// failures are reported before any store call.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (string, error) {
	rec, err := sanitizeReview(in, time.Now())
	if err != nil {
		return "", err
	}
	err = s.commit(ctx, "reviews: new pending review "+rec.ID, func(doc *domain.Collection) (bool, error) {
		doc.Pending = append(doc.Pending, rec)
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Moderate applies one admin action to the record with the given id.
// Approve/unapprove on an id on neither side report ErrNotFound without
// writing; on the requested side already, they are a no-op. Delete of an
// absent id is a no-op success.
func (s *Service) Moderate(ctx context.Context, action, id string) error {
	var mutate mutation
	switch action {
	case ActionApprove:
		mutate = func(doc *domain.Collection) (bool, error) { return setStatus(doc, id, true) }
	case ActionUnapprove:
		mutate = func(doc *domain.Collection) (bool, error) { return setStatus(doc, id, false) }
	case ActionDelete:
		mutate = func(doc *domain.Collection) (bool, error) { return remove(doc, id), nil }
	default:
		return &domain.ValidationError{Field: "action", Reason: "must be approve, unapprove or delete"}
	}
	return s.commit(ctx, fmt.Sprintf("reviews: %s %s", action, id), mutate)
}

// mutation transforms a freshly fetched document in place. changed=false
// means the document is already in the requested state and no write happens.
type mutation func(doc *domain.Collection) (changed bool, err error)

// commit is the fetch -> mutate -> conditional-write protocol, bounded to two
// attempts. A version conflict on the first write triggers exactly one fresh
// fetch and a re-application of the same logical mutation; a second conflict,
// or any other store error, propagates to the caller.
func (s *Service) commit(ctx context.Context, message string, mutate mutation) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		snap, err := s.load(ctx)
		if err != nil {
			return err
		}

		next := snap.Doc.Clone()
		changed, err := mutate(&next)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		msg := message
		if attempt > 0 {
			msg += " (retry)"
		}
		if _, err = s.store.Put(ctx, next, snap.Version, msg); err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// load fetches the current snapshot, lazily creating the document on an empty
// store: write the empty collection unconditionally, then refetch for the
// first real version token.
func (s *Service) load(ctx context.Context) (domain.Snapshot, error) {
	snap, err := s.store.Fetch(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if !snap.Exists {
		_, err := s.store.Put(ctx, domain.NewCollection(), "", "reviews: init reviews document")
		// A conflict here means a concurrent request created the document
		// between our fetch and write; the refetch below picks it up.
		if err != nil && !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Snapshot{}, err
		}
		if snap, err = s.store.Fetch(ctx); err != nil {
			return domain.Snapshot{}, err
		}
	}
	snap.Doc.Normalize()
	return snap, nil
}

func indexOf(list []domain.Review, id string) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}

func setStatus(doc *domain.Collection, id string, approved bool) (bool, error) {
	from, to := &doc.Pending, &doc.Approved
	if !approved {
		from, to = &doc.Approved, &doc.Pending
	}
	if i := indexOf(*from, id); i >= 0 {
		rec := (*from)[i]
		rec.Approved = approved
		*from = append((*from)[:i], (*from)[i+1:]...)
		*to = append(*to, rec)
		return true, nil
	}
	if indexOf(*to, id) >= 0 {
		// already on the requested side
		return false, nil
	}
	return false, domain.ErrNotFound
}

func remove(doc *domain.Collection, id string) bool {
	changed := false
	if i := indexOf(doc.Pending, id); i >= 0 {
		doc.Pending = append(doc.Pending[:i], doc.Pending[i+1:]...)
		changed = true
	}
	if i := indexOf(doc.Approved, id); i >= 0 {
		doc.Approved = append(doc.Approved[:i], doc.Approved[i+1:]...)
		changed = true
	}
	return changed
}
