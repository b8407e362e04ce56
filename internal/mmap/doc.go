// Package mmap provides read-only memory-mapped file access.
//
// On Unix the file is mapped with mmap(2) and access hints go through
// madvise(2). Other platforms read the file into memory and ignore hints.
//
//	m, err := mmap.Open("runs/x/ranked.bin")
//	if err != nil { ... }
//	defer m.Close()
//	data := m.Bytes()
package mmap
