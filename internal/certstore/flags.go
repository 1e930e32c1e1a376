package certstore

import "os"

func osCreateExclFlags() int {
	return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
}
