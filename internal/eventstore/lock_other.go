//go:build !unix

package eventstore

import "os"

// Without flock only the in-process mutex guards day-files, so a directory
// must not be shared between processes on these platforms.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
