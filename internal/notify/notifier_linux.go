//go:build linux

package notify

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollNotifier implements Notifier on top of epoll.
type epollNotifier struct {
	epfd int
}

// New constructs the platform readiness notifier.
func New() (Notifier, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollNotifier{epfd: epfd}, nil
}

func interestMask(read, write bool) uint32 {
	var events uint32
	if read {
		events |= unix.EPOLLIN
	}
	if write {
		events |= unix.EPOLLOUT
	}
	return events
}

func (n *epollNotifier) Add(fd int, read, write bool) error {
	ev := unix.EpollEvent{Events: interestMask(read, write), Fd: int32(fd)}
	return unix.EpollCtl(n.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (n *epollNotifier) Modify(fd int, read, write bool) error {
	ev := unix.EpollEvent{Events: interestMask(read, write), Fd: int32(fd)}
	return unix.EpollCtl(n.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (n *epollNotifier) Remove(fd int) error {
	err := unix.EpollCtl(n.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

func (n *epollNotifier) Wait(timeout time.Duration) ([]Event, error) {
	raw := make([]unix.EpollEvent, 128)
	msTimeout := int(timeout / time.Millisecond)
	count, err := unix.EpollWait(n.epfd, raw, msTimeout)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}

	events := make([]Event, 0, count)
	for i := 0; i < count; i++ {
		var flags EventFlags
		if raw[i].Events&unix.EPOLLIN != 0 {
			flags |= Readable
		}
		if raw[i].Events&unix.EPOLLOUT != 0 {
			flags |= Writable
		}
		if raw[i].Events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
			flags |= EOF
		}
		events = append(events, Event{FD: int(raw[i].Fd), Flags: flags})
	}
	return events, nil
}

func (n *epollNotifier) Close() error {
	return unix.Close(n.epfd)
}
