//go:build !unix

package platform

// Without mmap the segment lives on the Go heap; the garbage collector owns it.
func mmapCodeSegment(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func munmapCodeSegment([]byte) error {
	return nil
}
