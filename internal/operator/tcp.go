package operator

import (
	"net"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// TCPListener accepts operator connections on a TCP listener and merges
// every connection's command stream into one Events() channel, so
// several remote controllers (or one reconnecting one) can drive the
// same daemon.
type TCPListener struct {
	ln     net.Listener
	events chan domain.OperatorEvent
	done   chan struct{}
}

// ListenTCP starts accepting connections on addr. Each accepted
// connection is handed to NewReal; parse errors on any connection are
// logged via onParseError but never close the listener.
func ListenTCP(addr string, onParseError func(error)) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &TCPListener{
		ln:     ln,
		events: make(chan domain.OperatorEvent),
		done:   make(chan struct{}),
	}
	go l.acceptLoop(onParseError)
	return l, nil
}

func (l *TCPListener) acceptLoop(onParseError func(error)) {
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			return
		}
		go l.serve(conn, onParseError)
	}
}

func (l *TCPListener) serve(conn net.Conn, onParseError func(error)) {
	src := NewReal(conn, conn, onParseError)
	defer src.Close()
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				return
			}
			select {
			case l.events <- ev:
			case <-l.done:
				return
			}
		case <-l.done:
			return
		}
	}
}

func (l *TCPListener) Events() <-chan domain.OperatorEvent { return l.events }

func (l *TCPListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return l.ln.Close()
}
