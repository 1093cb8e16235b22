package storage

import "context"

// Deleter removes a stored object by its public location.
type Deleter interface {
	Delete(ctx context.Context, location string) error
}

// Media pairs a (typically retrying) uploader with the deleter of the same
// backing store, forming the complete asset-store surface handlers consume.
type Media struct {
	Uploader
	deleter Deleter
}

// NewMedia builds a Media facade over the given uploader and deleter.
func NewMedia(uploader Uploader, deleter Deleter) *Media {
	return &Media{Uploader: uploader, deleter: deleter}
}

// Delete removes the object at location from the backing store.
func (m *Media) Delete(ctx context.Context, location string) error {
	return m.deleter.Delete(ctx, location)
}
