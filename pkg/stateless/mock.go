package stateless

import (
	"fmt"
	"net"
	"net/rpc"
	"sync"

	"github.com/powerman/rpc-codec/jsonrpc2"
)

// MockServer is an in-process stateless server with a simulated device
// under test behind it. It answers the same RPC surface the real server
// does and models a device that forwards loss-free up to
// CapacityPercent of line rate and at capacity above it. Used by the
// package tests and by dry runs against no hardware.
type MockServer struct {
	Info SystemInfo

	// CapacityPercent is the highest start multiplier the simulated
	// device forwards without loss.
	CapacityPercent float64

	// QueueFullAt, when non-zero, is the multiplier above which tx
	// queue-full counters start to grow.
	QueueFullAt float64

	// BasePPS is the generated packet rate per port at 100%.
	BasePPS float64

	mu            sync.Mutex
	ln            net.Listener
	rpcSrv        *rpc.Server
	Acquires      int
	Releases      int
	StartCalls    []StartTrafficArgs
	Streams       map[int][]Stream
	stats         map[int]*PortStats
	LatencyGroups map[int]LatencyStats
}

// NewMockServer builds a server with portCount ports wired in adjacent
// pairs (0-1, 2-3, ...) at 10 Gbps each.
func NewMockServer(portCount int) *MockServer {
	info := SystemInfo{
		APIVersion: APIVersion,
		Hostname:   "mock",
		CoreCount:  4,
		PortCount:  portCount,
	}

	for i := 0; i < portCount; i++ {
		peer := i ^ 1
		if peer >= portCount {
			peer = -1
		}

		info.Ports = append(info.Ports, PortInfo{
			Index:     i,
			Driver:    "mock",
			SpeedGbps: 10,
			MacAddr:   fmt.Sprintf("00:00:00:00:00:%02x", i+1),
			Peer:      peer,
		})
	}

	return &MockServer{
		Info:            info,
		CapacityPercent: 100,
		BasePPS:         1e6,
		Streams:         make(map[int][]Stream),
		stats:           make(map[int]*PortStats),
		LatencyGroups:   make(map[int]LatencyStats),
	}
}

// Start listens on a loopback port and serves until Close.
func (s *MockServer) Start() (addr string, err error) {
	s.ln, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}

	s.rpcSrv = rpc.NewServer()
	if err := s.rpcSrv.RegisterName("Stateless", &mockRPC{s: s}); err != nil {
		s.ln.Close()

		return "", err
	}

	go func() {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				return
			}

			go s.rpcSrv.ServeCodec(jsonrpc2.NewServerCodec(conn, s.rpcSrv))
		}
	}()

	return s.ln.Addr().String(), nil
}

func (s *MockServer) Close() {
	if s.ln != nil {
		s.ln.Close()
	}
}

// Port returns the listening TCP port.
func (s *MockServer) Port() uint {
	return uint(s.ln.Addr().(*net.TCPAddr).Port)
}

func (s *MockServer) portStats(port int) *PortStats {
	stats, ok := s.stats[port]
	if !ok {
		stats = new(PortStats)
		s.stats[port] = stats
	}

	return stats
}

// simulate books the counters of one traffic run, instantly. The
// device forwards min(mult, capacity) of the offered load to the peer
// port.
func (s *MockServer) simulate(args StartTrafficArgs) {
	for _, port := range args.Ports {
		tx := s.BasePPS * args.Mult / 100 * args.Duration

		forwarded := tx
		if args.Mult > s.CapacityPercent {
			forwarded = tx * s.CapacityPercent / args.Mult
		}

		txStats := s.portStats(port)
		txStats.TxPackets += uint64(tx)
		txStats.TxBytes += uint64(tx) * 60
		txStats.TxPPS = s.BasePPS * args.Mult / 100

		if s.QueueFullAt > 0 && args.Mult > s.QueueFullAt {
			txStats.QueueFull += uint64(tx * (args.Mult - s.QueueFullAt) / 100)
		}

		peer := s.Info.Ports[port].Peer
		if peer < 0 {
			continue
		}

		rxStats := s.portStats(peer)
		rxStats.RxPackets += uint64(forwarded)
		rxStats.RxBytes += uint64(forwarded) * 60
		rxStats.RxPPS = forwarded / args.Duration
	}
}

// mockRPC is the net/rpc receiver; kept separate so the MockServer
// surface stays assertable from tests.
type mockRPC struct {
	s *MockServer
}

func (m *mockRPC) APISync(args *APISyncArgs, reply *APISyncReply) error {
	if args.Version != APIVersion {
		return fmt.Errorf("api version mismatch: server %v, client %v", APIVersion, args.Version)
	}
	reply.Version = APIVersion

	return nil
}

func (m *mockRPC) SystemInfo(args *EmptyArgs, reply *SystemInfo) error {
	*reply = m.s.Info

	return nil
}

func (m *mockRPC) Acquire(args *AcquireArgs, reply *AcquireReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.Acquires++
	reply.Handler = fmt.Sprintf("%v-%v", args.User, m.s.Acquires)

	return nil
}

func (m *mockRPC) Release(args *PortsArgs, reply *EmptyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	m.s.Releases++

	return nil
}

func (m *mockRPC) RemoveAllStreams(args *PortsArgs, reply *EmptyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, port := range args.Ports {
		delete(m.s.Streams, port)
	}

	return nil
}

func (m *mockRPC) AddStreams(args *AddStreamsArgs, reply *EmptyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, port := range args.Ports {
		m.s.Streams[port] = append(m.s.Streams[port], args.Streams...)
	}

	return nil
}

func (m *mockRPC) ClearStats(args *PortsArgs, reply *EmptyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, port := range args.Ports {
		m.s.stats[port] = new(PortStats)
	}

	return nil
}

func (m *mockRPC) StartTraffic(args *StartTrafficArgs, reply *EmptyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if len(m.s.Streams[args.Ports[0]]) == 0 {
		return fmt.Errorf("no streams attached to port %v", args.Ports[0])
	}

	m.s.StartCalls = append(m.s.StartCalls, *args)
	m.s.simulate(*args)

	return nil
}

func (m *mockRPC) StopTraffic(args *PortsArgs, reply *EmptyReply) error {
	return nil
}

func (m *mockRPC) PortStatus(args *PortArgs, reply *PortStatusReply) error {
	// runs are booked instantly, ports are never seen transmitting
	reply.State = PORT_STATE_IDLE

	return nil
}

func (m *mockRPC) PortStats(args *PortArgs, reply *PortStats) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	*reply = *m.s.portStats(args.Port)

	return nil
}

func (m *mockRPC) LatencyStats(args *LatencyArgs, reply *LatencyReply) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	reply.Groups = make(map[int]LatencyStats)

	for _, pgid := range args.PGIDs {
		reply.Groups[pgid] = m.s.LatencyGroups[pgid]
	}

	return nil
}
