package domain

// Version is the store's opaque revision token for the reviews document.
// It is required on every conditional write against an existing document;
// a mismatch means another writer got there first.
type Version string

// Collection is the entire persisted state: one JSON document with two
// ordered buckets. A review id is unique across both buckets.
type Collection struct {
	Approved []Review `json:"approved"`
	Pending  []Review `json:"pending"`
}

func NewCollection() Collection {
	return Collection{Approved: []Review{}, Pending: []Review{}}
}

// Normalize coerces nil buckets to empty slices so a document decoded from a
// partial or hand-edited file is always safe to append to and serialize.
func (c *Collection) Normalize() {
	if c.Approved == nil {
		c.Approved = []Review{}
	}
	if c.Pending == nil {
		c.Pending = []Review{}
	}
}

// Clone copies both buckets so a mutation never aliases the fetched snapshot.
func (c Collection) Clone() Collection {
	out := NewCollection()
	out.Approved = append(out.Approved, c.Approved...)
	out.Pending = append(out.Pending, c.Pending...)
	return out
}
