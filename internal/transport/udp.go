package transport

import (
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// MaxDatagram caps inbound reads.
const MaxDatagram = 2048

const sendTimeout = time.Second

// Session owns the UDP socket towards the collector. Sending is
// best-effort; receiving is bounded-wait only.
type Session struct {
	conn *net.UDPConn

	mu       sync.Mutex
	dropRate float64
	rng      *rand.Rand
}

// Dial resolves the collector address and connects the socket. Failure here
// is fatal at startup.
func Dial(server string, dropRate float64, rng *rand.Rand) (*Session, error) {
	addr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, fmt.Errorf("resolve server address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	log.Info().Str("server", addr.String()).Msg("UDP 会话已建立")

	return &Session{conn: conn, dropRate: dropRate, rng: rng}, nil
}

// Send transmits one datagram, best effort. A positive drop rate silently
// discards the datagram to simulate packet loss.
func (s *Session) Send(b []byte) error {
	if s.dropped() {
		log.Debug().Int("bytes", len(b)).Msg("模拟丢包, 丢弃出站数据报")
		return nil
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("udp send: %w", err)
	}
	return nil
}

// TryReceive waits up to timeout for one datagram into buf. A timeout is a
// normal outcome and returns 0 with no error.
func (s *Session) TryReceive(buf []byte, timeout time.Duration) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, nil
		}
		return 0, fmt.Errorf("set read deadline: %w", err)
	}

	n, err := s.conn.Read(buf)
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, nil
		}
		if errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, nil
		}
		return 0, fmt.Errorf("udp receive: %w", err)
	}
	return n, nil
}

// Close releases the socket.
func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) dropped() bool {
	if s.dropRate <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.dropRate
}
