package token

import (
	"strconv"
	"sync"
)

// Metadata resolves token URIs, falling back to baseURI+id when no
// per-token URI has been set.
type Metadata struct {
	mu      sync.RWMutex
	baseURI string
	uris    map[uint64]string
}

// NewMetadata creates a store with the given default prefix.
func NewMetadata(baseURI string) *Metadata {
	return &Metadata{
		baseURI: baseURI,
		uris:    make(map[uint64]string),
	}
}

// SetBaseURI replaces the default prefix.
func (m *Metadata) SetBaseURI(uri string) {
	m.mu.Lock()
	m.baseURI = uri
	m.mu.Unlock()
}

// BaseURI returns the current default prefix.
func (m *Metadata) BaseURI() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.baseURI
}

// SetTokenURI pins an explicit URI for one token.
func (m *Metadata) SetTokenURI(id uint64, uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uri == "" {
		delete(m.uris, id)
		return
	}
	m.uris[id] = uri
}

// ResolveURI returns the URI for id, explicit value first, otherwise the
// base prefix plus the decimal identifier.
func (m *Metadata) ResolveURI(id uint64) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if uri, ok := m.uris[id]; ok {
		return uri
	}
	if m.baseURI == "" {
		return ""
	}
	return m.baseURI + strconv.FormatUint(id, 10)
}
