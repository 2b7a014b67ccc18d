//go:build linux

package harness

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func allocImpl() (*Region, error) {
	id, err := unix.SysvShmGet(unix.IPC_PRIVATE, BitmapSize, unix.IPC_CREAT|0o600)
	if err != nil {
		return nil, fmt.Errorf("harness: shmget: %w", err)
	}
	return &Region{id: id}, nil
}

func (r *Region) readImpl() ([]byte, error) {
	addr, err := unix.SysvShmAttach(r.id, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("harness: shmat: %w", err)
	}
	out := make([]byte, BitmapSize)
	copy(out, addr)
	if err := unix.SysvShmDetach(addr); err != nil {
		return out, fmt.Errorf("harness: shmdt: %w", err)
	}
	return out, nil
}

func (r *Region) closeImpl() error {
	_, err := unix.SysvShmCtl(r.id, unix.IPC_RMID, nil)
	return err
}
