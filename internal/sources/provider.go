package sources

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jonesrussell/fincrawl/internal/domain"
)

// ErrNotFound is returned when no source has the requested name.
var ErrNotFound = errors.New("source not found")

// Provider serves the configured sources. The list is a snapshot: callers get
// a copy that does not change during a run.
type Provider struct {
	mu      sync.RWMutex
	path    string
	sources []domain.SourceDescriptor
}

// NewProvider loads the websites file at path.
func NewProvider(path string) (*Provider, error) {
	p := &Provider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticProvider serves a fixed list.
func NewStaticProvider(list ...domain.SourceDescriptor) *Provider {
	return &Provider{sources: slices.Clone(list)}
}

// Reload re-reads the file. A provider without a file keeps its list.
func (p *Provider) Reload() error {
	if p.path == "" {
		return nil
	}
	list, err := LoadFile(p.path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.sources = list
	p.mu.Unlock()
	return nil
}

// AllSources returns every configured source, enabled or not.
func (p *Provider) AllSources(context.Context) ([]domain.SourceDescriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.sources), nil
}

// Find returns the source called name.
func (p *Provider) Find(name string) (domain.SourceDescriptor, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, s := range p.sources {
		if s.Name == name {
			return s, nil
		}
	}
	return domain.SourceDescriptor{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}
