package observability

import "context"

// Checker is a dependency the readiness endpoint consults: the Postgres registry,
// the Redis session backend or the event directory.
// Check must honour ctx and be safe for concurrent use.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}
