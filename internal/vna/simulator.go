package vna

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
)

// TraceFunc produces the S21 values of one simulated sweep. acquisition
// counts completed sweeps from zero.
type TraceFunc func(acquisition int, freqs []float64) []complex128

// Simulator is an in-process SCPI server that answers the subset of the
// LibreVNA command set used by Acquirer and Client.Connected.
type Simulator struct {
	// Device is reported by :DEV:CONN?; empty reports NotConnected.
	Device string
	// PendingPolls is how many :VNA:ACQ:FIN? queries answer FALSE after
	// each trigger.
	PendingPolls int
	// Trace generates sweep data; every point is 1+0i when nil.
	Trace TraceFunc

	ln       net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	commands []string
	esr      int
	points   int
	start    float64
	stop     float64
	center   float64
	zeroSpan bool
	pending  int
	sweeps   int
	last     []TracePoint
	conns    map[net.Conn]struct{}
	closed   bool
}

// NewSimulator returns a simulator attached to device.
func NewSimulator(device string) *Simulator {
	return &Simulator{Device: device, points: 2}
}

// Listen starts serving on addr ("127.0.0.1:0" picks a free port).
func (s *Simulator) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.conns = make(map[net.Conn]struct{})
	s.wg.Add(1)
	go s.serve()
	diagf("simulator listening on %s", ln.Addr())
	return nil
}

// Addr returns the listening address.
func (s *Simulator) Addr() string {
	return s.ln.Addr().String()
}

// Close stops the server and drops open connections.
func (s *Simulator) Close() error {
	if s.ln == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.ln.Close()
	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	return err
}

// Commands returns every line received.
func (s *Simulator) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Sweeps returns the number of completed sweeps.
func (s *Simulator) Sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

func (s *Simulator) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				opsf("simulator accept: %v", err)
			}
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Simulator) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		reply, ok := s.exec(strings.TrimSpace(line))
		if !ok {
			continue
		}
		if _, err := w.WriteString(reply + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// exec runs one command and returns its reply when it is a query.
func (s *Simulator) exec(line string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, line)

	head, arg, _ := strings.Cut(line, " ")
	head = strings.ToUpper(head)
	arg = strings.TrimSpace(arg)

	switch head {
	case "*ESR?":
		v := s.esr
		s.esr = 0
		return strconv.Itoa(v), true
	case "*IDN?":
		return "LibreVNA,LibreVNA-GUI,simulator,1.0", true
	case ":DEV:CONN":
		return "", false
	case ":DEV:CONN?":
		if s.Device == "" {
			return NotConnected, true
		}
		return s.Device, true
	case ":DEV:MODE", ":VNA:SWEEP", ":VNA:STIM:LVL", ":VNA:ACQ:IFBW", ":VNA:ACQ:AVG":
		if arg == "" {
			s.esr |= ESRCommandError
		}
		return "", false
	case ":VNA:ACQ:POINTS":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			s.esr |= ESRExecutionError
			return "", false
		}
		s.points = n
		return "", false
	case ":VNA:FREQ:START", ":VNA:FREQ:STOP", ":VNA:FREQ:CENT":
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			s.esr |= ESRExecutionError
			return "", false
		}
		switch head {
		case ":VNA:FREQ:START":
			s.start, s.zeroSpan = f, false
		case ":VNA:FREQ:STOP":
			s.stop, s.zeroSpan = f, false
		default:
			s.center = f
		}
		return "", false
	case ":VNA:FREQ:ZERO":
		s.zeroSpan = true
		return "", false
	case ":VNA:ACQ:SINGLE", ":VNA:ACQUISITION:SINGLE":
		s.pending = s.PendingPolls
		s.last = nil
		return "", false
	case ":VNA:ACQ:FIN?", ":VNA:ACQUISITION:FINISHED?":
		if s.pending > 0 {
			s.pending--
			return finishedFalse, true
		}
		if s.last == nil {
			s.last = s.sweep()
			s.sweeps++
		}
		return finishedTrue, true
	case ":VNA:TRACE:DATA?":
		if strings.ToUpper(arg) != "S21" && strings.ToUpper(arg) != "S11" {
			s.esr |= ESRQueryError
			return "ERROR", true
		}
		return FormatTraceData(s.last), true
	}

	s.esr |= ESRCommandError
	if strings.HasSuffix(head, "?") {
		return "ERROR", true
	}
	return "", false
}

func (s *Simulator) frequencies() []float64 {
	freqs := make([]float64, s.points)
	for i := range freqs {
		switch {
		case s.zeroSpan:
			freqs[i] = s.center
		case s.points == 1:
			freqs[i] = s.start
		default:
			freqs[i] = s.start + float64(i)*(s.stop-s.start)/float64(s.points-1)
		}
	}
	return freqs
}

func (s *Simulator) sweep() []TracePoint {
	freqs := s.frequencies()
	var values []complex128
	if s.Trace != nil {
		values = s.Trace(s.sweeps, freqs)
	}
	points := make([]TracePoint, len(freqs))
	for i, f := range freqs {
		v := complex(1, 0)
		if i < len(values) {
			v = values[i]
		}
		points[i] = TracePoint{X: f, Value: v}
	}
	return points
}
