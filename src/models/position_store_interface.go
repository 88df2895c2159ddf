package models

// PositionStore is the local, single-writer position cache. Load returns
// (nil, nil) when no position is stored.
type PositionStore interface {
	Load() (*StoredPosition, error)
	Save(position *StoredPosition) error
	Clear() error
}
