package eventstore

import "context"

// DirChecker implements the observability.Checker interface for the event
// directory: it is ready while a file can be created in it.
type DirChecker struct {
	dir string
}

// NewDirChecker creates a readiness checker for the store's directory.
func NewDirChecker(s *Store) *DirChecker {
	return &DirChecker{dir: s.Dir()}
}

// Name returns the component name.
func (c *DirChecker) Name() string {
	return "eventstore"
}

// Check verifies that the directory is writable.
func (c *DirChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return checkWritable(c.dir)
}
