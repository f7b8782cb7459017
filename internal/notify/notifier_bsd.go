//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package notify

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueNotifier implements Notifier on top of kqueue.
type kqueueNotifier struct {
	kq int
	// interest tracks the last registered read/write state per fd, since
	// kqueue's EV_ADD/EV_DELETE model two independent filters rather than
	// one combined mask the way epoll does.
	interest map[int][2]bool // [read, write]
}

// New constructs the platform readiness notifier.
func New() (Notifier, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueNotifier{kq: kq, interest: make(map[int][2]bool)}, nil
}

func (n *kqueueNotifier) apply(fd int, read, write bool) error {
	var changes []unix.Kevent_t
	prev, had := n.interest[fd]

	if read != (had && prev[0]) {
		flag := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !read {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  flag,
		})
	}
	if write != (had && prev[1]) {
		flag := uint16(unix.EV_ADD | unix.EV_ENABLE)
		if !write {
			flag = unix.EV_DELETE
		}
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  flag,
		})
	}
	n.interest[fd] = [2]bool{read, write}

	if len(changes) == 0 {
		return nil
	}
	_, err := unix.Kevent(n.kq, changes, nil, nil)
	return err
}

func (n *kqueueNotifier) Add(fd int, read, write bool) error {
	return n.apply(fd, read, write)
}

func (n *kqueueNotifier) Modify(fd int, read, write bool) error {
	return n.apply(fd, read, write)
}

func (n *kqueueNotifier) Remove(fd int) error {
	delete(n.interest, fd)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	// Best-effort: deleting a filter that was never added returns ENOENT,
	// which we ignore since Remove must be safe to call unconditionally.
	_, _ = unix.Kevent(n.kq, changes, nil, nil)
	return nil
}

func (n *kqueueNotifier) Wait(timeout time.Duration) ([]Event, error) {
	raw := make([]unix.Kevent_t, 128)
	ts := unix.NsecToTimespec(timeout.Nanoseconds())
	count, err := unix.Kevent(n.kq, nil, raw, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	events := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		var flags EventFlags
		switch raw[i].Filter {
		case unix.EVFILT_READ:
			flags |= Readable
		case unix.EVFILT_WRITE:
			flags |= Writable
		}
		if raw[i].Flags&unix.EV_EOF != 0 {
			flags |= EOF
		}
		events = append(events, Event{FD: int(raw[i].Ident), Flags: flags})
	}
	return events, nil
}

func (n *kqueueNotifier) Close() error {
	return unix.Close(n.kq)
}
