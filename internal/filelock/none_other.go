//go:build !unix && !windows

package filelock

func platformLocker() Locker { return None{} }
