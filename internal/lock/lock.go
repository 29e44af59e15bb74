// Package lock guards a storage directory against concurrent engine
// instances through an advisory lock file named "LOCK".
package lock

import "os"

const fileName = "LOCK"

// Lock is an acquired directory lock. It is held until Release.
type Lock struct {
	file *os.File
}
