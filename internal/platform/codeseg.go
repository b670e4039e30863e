// Package platform includes runtime-specific code needed for the code
// segment memory.
package platform

import (
	"errors"
)

// MmapCodeSegment allocates a read-write memory region of the given size for
// generated code. The region is never made executable: it holds code for a
// foreign target and is only copied out or inspected.
//
// See https://man7.org/linux/man-pages/man2/mmap.2.html for mmap API and flags.
func MmapCodeSegment(size int) ([]byte, error) {
	if size == 0 {
		panic(errors.New("BUG: MmapCodeSegment with zero length"))
	}
	return mmapCodeSegment(size)
}

// MunmapCodeSegment unmaps the given memory region.
func MunmapCodeSegment(code []byte) error {
	if len(code) == 0 {
		panic(errors.New("BUG: MunmapCodeSegment with zero length"))
	}
	return munmapCodeSegment(code)
}

// RemapCodeSegment reallocates the memory mapping of an existing code segment
// to increase its size. The previous code mapping is unmapped and must not be
// reused after the function returns.
//
// This is similar to mremap(2) on linux, and emulated on other platforms.
func RemapCodeSegment(code []byte, size int) ([]byte, error) {
	if size < len(code) {
		panic(errors.New("BUG: RemapCodeSegment with size less than code"))
	}
	if code == nil {
		return MmapCodeSegment(size)
	}
	b, err := mmapCodeSegment(size)
	if err != nil {
		return nil, err
	}
	copy(b, code)
	mustMunmapCodeSegment(code)
	return b, nil
}

// mustMunmapCodeSegment panics instead of returning an error to the
// application.
//
// It is less disruptive to the application to leak the previous block if it
// could be unmapped than to leak the new block and return an error.
func mustMunmapCodeSegment(code []byte) {
	if err := munmapCodeSegment(code); err != nil {
		panic(err)
	}
}
