package sendqueue

import "container/list"

// Client is the socket identity and outbound FIFO for one connected
// peer. A Client is exclusively owned by the server's client table;
// its queued Items are exclusively owned by the Client.
type Client struct {
	fd     int
	peer   string
	connID string
	queue  *list.List
}

// NewClient constructs a Client for fd, with peer as its textual remote
// address (for logging) and connID as a per-connection correlation id.
func NewClient(fd int, peer, connID string) *Client {
	return &Client{
		fd:     fd,
		peer:   peer,
		connID: connID,
		queue:  list.New(),
	}
}

// FD returns the client's OS socket handle.
func (c *Client) FD() int { return c.fd }

// Peer returns the client's textual remote address.
func (c *Client) Peer() string { return c.peer }

// ConnID returns the client's log-correlation id.
func (c *Client) ConnID() string { return c.connID }

// Enqueue appends item to the back of the send queue.
func (c *Client) Enqueue(item *Item) {
	c.queue.PushBack(item)
}

// Peek returns the front item without removing it, or nil if the queue
// is empty.
func (c *Client) Peek() *Item {
	front := c.queue.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Item)
}

// PopFront removes and discards the front item.
func (c *Client) PopFront() {
	if front := c.queue.Front(); front != nil {
		c.queue.Remove(front)
	}
}

// QueueLen returns the number of items currently queued.
func (c *Client) QueueLen() int {
	return c.queue.Len()
}
