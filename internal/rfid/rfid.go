package rfid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ErrNoTag means the reader saw no credential within its timeout.
var ErrNoTag = errors.New("no tag found")

// Reader reads one token id from the physical credential reader. subject is
// the currently active class; hardware readers ignore it.
type Reader interface {
	Read(ctx context.Context, subject string) (string, error)
}

// Demo returns a preset uid per subject instead of touching hardware.
type Demo struct {
	uids map[string]string
}

// NewDemo creates a demo reader from a subject→uid table.
func NewDemo(uids map[string]string) *Demo {
	return &Demo{uids: uids}
}

// Read returns the configured uid for the subject.
func (d *Demo) Read(_ context.Context, subject string) (string, error) {
	uid, ok := d.uids[subject]
	if !ok || uid == "" {
		return "", fmt.Errorf("no demo uid configured for subject %q", subject)
	}
	return uid, nil
}

// Serial talks to the reader firmware over a serial port: send "READ",
// receive one line carrying the uid or "NOTAG". Reads are serialized; the
// firmware handles one poll at a time.
type Serial struct {
	portName string
	baud     int

	mu   sync.Mutex
	port serial.Port
}

// NewSerial creates a reader on the given port. The port is opened lazily on
// first read.
func NewSerial(portName string, baud int) *Serial {
	if baud <= 0 {
		baud = 9600
	}
	return &Serial{portName: portName, baud: baud}
}

// Read polls the reader once.
func (s *Serial) Read(_ context.Context, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		port, err := serial.Open(s.portName, &serial.Mode{BaudRate: s.baud})
		if err != nil {
			return "", fmt.Errorf("rfid: open %s: %w", s.portName, err)
		}
		if err := port.SetReadTimeout(10 * time.Second); err != nil {
			port.Close()
			return "", fmt.Errorf("rfid: set timeout: %w", err)
		}
		s.port = port
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		s.reset()
		return "", fmt.Errorf("rfid: reset buffer: %w", err)
	}
	if _, err := s.port.Write([]byte("READ\n")); err != nil {
		s.reset()
		return "", fmt.Errorf("rfid: write: %w", err)
	}
	line, err := bufio.NewReader(s.port).ReadString('\n')
	if err != nil {
		s.reset()
		return "", fmt.Errorf("rfid: read: %w", err)
	}
	uid := strings.TrimSpace(line)
	if uid == "" || uid == "NOTAG" {
		// Signal the reader to flash its failure LED.
		_, _ = s.port.Write([]byte("Red\n"))
		return "", ErrNoTag
	}
	return uid, nil
}

// Close releases the port.
func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Serial) reset() {
	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
}
