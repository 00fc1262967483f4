package storage

// NewStorage creates the SQLite-backed article store
func NewStorage(dataDir string) (Storage, error) {
	return NewSQLiteStorage(dataDir)
}
