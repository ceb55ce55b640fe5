package errors

import "syscall"

// Sentinel errors for the taxonomy in spec.md §7, in order of abstraction:
// physical (exhaustion), lookup, naming, shape, programmer-error. Programmer
// errors (bad inode number, corrupt image) are not represented here; they are
// reported with panic, per spec.md §7 class 5.
var (
	// ErrNotFound is returned when a path component or directory entry is
	// missing.
	ErrNotFound = New(syscall.ENOENT)
	// ErrExists is returned when a name is already used in a directory.
	ErrExists = New(syscall.EEXIST)
	// ErrNoSpace is returned when a bitmap (block or inode) is exhausted.
	ErrNoSpace = New(syscall.ENOSPC)
	// ErrNotADirectory is returned when an intermediate path component, or
	// the target of an operation that requires a directory, isn't one.
	ErrNotADirectory = New(syscall.ENOTDIR)
	// ErrIsADirectory is returned when an operation that requires a regular
	// file is given a directory.
	ErrIsADirectory = New(syscall.EISDIR)
	// ErrInvalidArgument is returned for impossible offsets, negative sizes,
	// or names that can't be represented on this file system.
	ErrInvalidArgument = New(syscall.EINVAL)
	// ErrNotEmpty is returned when an attempt is made to remove a directory
	// that still has entries besides "." and "..".
	ErrNotEmpty = New(syscall.ENOTEMPTY)
	// ErrNameTooLong is returned when a path component exceeds the on-disk
	// name field width.
	ErrNameTooLong = New(syscall.ENAMETOOLONG)
)
