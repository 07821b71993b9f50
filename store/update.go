package store

type mutKind int

const (
	mutSet mutKind = iota
	mutSetIfNotExists
	mutRemove
	mutAdd
)

type mutation struct {
	kind  mutKind
	attr  string
	value any
}

// Update is an ordered set of attribute mutations applied to one row.
type Update struct {
	muts []mutation
}

// NewUpdate returns an empty update.
func NewUpdate() *Update {
	return &Update{}
}

// Set assigns v to attr.
func (u *Update) Set(attr string, v any) *Update {
	u.muts = append(u.muts, mutation{kind: mutSet, attr: attr, value: v})
	return u
}

// SetIfNotExists assigns v to attr only when attr is absent.
func (u *Update) SetIfNotExists(attr string, v any) *Update {
	u.muts = append(u.muts, mutation{kind: mutSetIfNotExists, attr: attr, value: v})
	return u
}

// Remove deletes the attributes.
func (u *Update) Remove(attrs ...string) *Update {
	for _, a := range attrs {
		u.muts = append(u.muts, mutation{kind: mutRemove, attr: a})
	}
	return u
}

// Add adds a numeric delta to attr, treating a missing attr as zero.
func (u *Update) Add(attr string, delta any) *Update {
	u.muts = append(u.muts, mutation{kind: mutAdd, attr: attr, value: delta})
	return u
}

// SetOrRemove sets attr to v, or removes attr when v is the zero string.
func (u *Update) SetOrRemove(attr string, v string) *Update {
	if v == "" {
		return u.Remove(attr)
	}
	return u.Set(attr, v)
}

// Empty reports whether the update has no mutations.
func (u *Update) Empty() bool {
	return u == nil || len(u.muts) == 0
}
