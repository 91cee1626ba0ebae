package testutil

import "path"

// MemStore is an in-memory timestamp store for tests that never touch disk.
// It mirrors the archive-once protocol: the first write to a directory
// records the archive marker, later writes just replace the current array.
type MemStore struct {
	// Writes holds the latest array written per dir/file key.
	Writes map[string][]float64
	// ArchivedDirs marks directories whose archive already exists, either
	// pre-seeded by a test or created by the first write.
	ArchivedDirs map[string]bool
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		Writes:       map[string][]float64{},
		ArchivedDirs: map[string]bool{},
	}
}

// WriteAligned records ts under dir/current and marks dir archived.
func (m *MemStore) WriteAligned(dir string, ts []float64, current, archive string) error {
	m.Writes[path.Join(dir, current)] = append([]float64(nil), ts...)
	m.ArchivedDirs[dir] = true
	return nil
}

// Archived reports whether dir holds an archive.
func (m *MemStore) Archived(dir, archive string) (bool, error) {
	return m.ArchivedDirs[dir], nil
}

// Written fetches a recorded array, nil when absent.
func (m *MemStore) Written(dir, current string) []float64 {
	return m.Writes[path.Join(dir, current)]
}
