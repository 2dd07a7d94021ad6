package progress

// mailbox is an unbounded, ordered, multi-producer single-consumer queue.
//
// Producers hand messages to the pump over an unbuffered channel; the pump is
// always ready to receive, so a send only waits for the pump to be scheduled,
// never for the broker. stopped is closed by the broker when it exits, after
// which every send fails instead of blocking.
type mailbox struct {
	in      chan Message
	out     chan Message
	stopped chan struct{}
}

func newMailbox() *mailbox {
	m := &mailbox{
		in:      make(chan Message),
		out:     make(chan Message),
		stopped: make(chan struct{}),
	}
	go m.pump()
	return m
}

func (m *mailbox) pump() {
	var queue []Message
	for {
		var out chan Message
		var next Message
		if len(queue) > 0 {
			out = m.out
			next = queue[0]
		}

		select {
		case msg := <-m.in:
			queue = append(queue, msg)
		case out <- next:
			queue[0] = Message{}
			queue = queue[1:]
		case <-m.stopped:
			return
		}
	}
}

// send enqueues msg. It returns ErrBrokerGone once the broker has exited.
func (m *mailbox) send(msg Message) error {
	select {
	case <-m.stopped:
		return ErrBrokerGone
	default:
	}

	select {
	case m.in <- msg:
		return nil
	case <-m.stopped:
		return ErrBrokerGone
	}
}
