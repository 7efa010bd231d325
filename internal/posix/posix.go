// Package posix wraps the raw storage-I/O syscalls the engine interposes on
// (SPEC_FULL.md #4.4 syscall table) with golang.org/x/sys/unix, converting
// Go's (n, error) convention into the single raw return-code convention the
// graph's Behavior/backend layers expect: success yields the syscall's
// normal non-negative result, failure yields the negated errno — exactly
// what a raw POSIX call site sees in C, and what SPEC_FULL.md #7 calls "not
// an error" and requires to be passed through unmodified.
package posix

import (
	"golang.org/x/sys/unix"
)

// rc converts a (value, error) pair from x/sys/unix into a single raw
// return code: value on success, -errno on failure.
func rc(n int, err error) int64 {
	if err != nil {
		return negErrno(err)
	}
	return int64(n)
}

func negErrno(err error) int64 {
	if errno, ok := err.(unix.Errno); ok {
		return -int64(errno)
	}
	// Not a raw errno (e.g. a path-too-long Go wrapper error); EIO is the
	// closest POSIX-raw-rc fallback.
	return -int64(unix.EIO)
}

// Open issues the open(2) syscall.
func Open(path string, flags int, mode uint32) int64 {
	fd, err := unix.Open(path, flags, mode)
	return rc(fd, err)
}

// Openat issues the openat(2) syscall.
func Openat(dirfd int, path string, flags int, mode uint32) int64 {
	fd, err := unix.Openat(dirfd, path, flags, int(mode))
	return rc(fd, err)
}

// Close issues the close(2) syscall.
func Close(fd int) int64 {
	err := unix.Close(fd)
	if err != nil {
		return negErrno(err)
	}
	return 0
}

// Pread issues the pread(2) syscall, reading into buf at offset.
func Pread(fd int, buf []byte, offset int64) int64 {
	n, err := unix.Pread(fd, buf, offset)
	return rc(n, err)
}

// Pwrite issues the pwrite(2) syscall, writing buf at offset.
func Pwrite(fd int, buf []byte, offset int64) int64 {
	n, err := unix.Pwrite(fd, buf, offset)
	return rc(n, err)
}

// Seek issues the lseek(2) syscall.
func Seek(fd int, offset int64, whence int) int64 {
	off, err := unix.Seek(fd, offset, whence)
	return rc(int(off), err)
}

// Fstat issues the fstat(2) syscall.
func Fstat(fd int) (unix.Stat_t, int64) {
	var st unix.Stat_t
	rc := FstatInto(fd, &st)
	return st, rc
}

// FstatInto issues fstat(2), writing the result through out directly — the
// form backends use so a prepared entry's result lands straight in the
// node's own pooled *unix.Stat_t with no extra copy.
func FstatInto(fd int, out *unix.Stat_t) int64 {
	if err := unix.Fstat(fd, out); err != nil {
		return negErrno(err)
	}
	return 0
}

// Fstatat issues the fstatat(2)/newfstatat(2) syscall.
func Fstatat(dirfd int, path string, flags int) (unix.Stat_t, int64) {
	var st unix.Stat_t
	rc := FstatatInto(dirfd, path, flags, &st)
	return st, rc
}

// FstatatInto is the backend-facing, write-through form of Fstatat.
func FstatatInto(dirfd int, path string, flags int, out *unix.Stat_t) int64 {
	if err := unix.Fstatat(dirfd, path, out, flags); err != nil {
		return negErrno(err)
	}
	return 0
}
