package archive

// Handle is an open archive. Lines are buffered by Write and reach stable
// storage on Flush. Close releases the handle; it does not imply Flush.
type Handle interface {
	Write(line []byte) error
	Flush() error
	Close() error
}

// Opener opens archives by relative path. Opening a path that already holds
// lines appends to it.
type Opener interface {
	Open(path string) (Handle, error)
}
