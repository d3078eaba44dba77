package models

import "time"

// Identity is embedded by value in every persisted record of the case graph.
// A zero ID means storage has not assigned a surrogate key yet.
type Identity struct {
	ID        uint      `gorm:"primarykey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
	Version   int64     `gorm:"not null;default:0" json:"-"`
}

// Record is the capability set shared by every entity in the graph.
type Record interface {
	HasIdentity() bool
	SurrogateKey() uint
	RecordVersion() int64
}

// HasIdentity reports whether storage has assigned a surrogate key
func (i Identity) HasIdentity() bool {
	return i.ID != 0
}

// SurrogateKey returns the storage-assigned key, zero when unset
func (i Identity) SurrogateKey() uint {
	return i.ID
}

// RecordVersion returns the optimistic lock counter
func (i Identity) RecordVersion() int64 {
	return i.Version
}

// LastModified returns the last write time, falling back to creation time
func (i Identity) LastModified() time.Time {
	if i.UpdatedAt.IsZero() {
		return i.CreatedAt
	}
	return i.UpdatedAt
}

// Fresh returns an Identity with no key, timestamps or version so storage issues new ones.
func Fresh() Identity {
	return Identity{}
}
