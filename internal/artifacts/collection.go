// Package artifacts holds the cached artifact collections that job
// placeholders are reconciled against.
package artifacts

import (
	"sync"
	"time"
)

// Artifact is one generated item (for example an audio episode) in a
// module's gallery. While a generation job is running, ID is a job
// reference; callers must test domain.IsJobReference before treating an ID
// as fetchable content.
type Artifact struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Collection is a mutex-guarded, insertion-ordered artifact list. Readers
// get snapshot copies.
type Collection struct {
	mu    sync.RWMutex
	items []Artifact
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends an artifact.
func (c *Collection) Add(a Artifact) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, a)
}

// Snapshot returns a copy of the collection in insertion order.
func (c *Collection) Snapshot() []Artifact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Artifact, len(c.items))
	copy(out, c.items)
	return out
}

// ReplaceID swaps an artifact's identifier in place, preserving position.
// Returns false if no artifact carries oldID.
func (c *Collection) ReplaceID(oldID, newID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == oldID {
			c.items[i].ID = newID
			return true
		}
	}
	return false
}

// Remove deletes the artifact with the given identifier. Returns false if
// absent.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether an artifact with the identifier exists.
func (c *Collection) Contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.items {
		if c.items[i].ID == id {
			return true
		}
	}
	return false
}
