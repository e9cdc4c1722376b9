package catalog

import "context"

// Catalog is the local host catalog the engine reads from and writes to.
//
// FindStudio returns (nil, nil) when the id is unknown.
type Catalog interface {
	FindStudio(ctx context.Context, id string) (*Studio, error)
	AllStudios(ctx context.Context) ([]*Studio, error)
	UpdateStudio(ctx context.Context, update StudioUpdate) (*Studio, error)
	CreateStudio(ctx context.Context, input StudioInput) (*Studio, error)
	StashBoxes(ctx context.Context) ([]StashBox, error)
}

// FindByRef returns the first studio holding the exact (registry, remote id) pair.
func FindByRef(studios []*Studio, registryID, remoteID string) *Studio {
	for _, s := range studios {
		if s.ExternalRefs.Contains(registryID, remoteID) {
			return s
		}
	}
	return nil
}

// FindByName returns the first studio whose name matches case-insensitively.
func FindByName(studios []*Studio, name string) *Studio {
	key := NameKey(name)
	for _, s := range studios {
		if NameKey(s.Name) == key {
			return s
		}
	}
	return nil
}
