package stateless

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/op/go-logging"
	"github.com/powerman/rpc-codec/jsonrpc2"
)

var Log = logging.MustGetLogger("stateless")

// APIVersion is the RPC API generation this client speaks. Connect
// fails when the server major version differs.
const APIVersion = "1.2"

const waitPollInterval = 50 * time.Millisecond

// rpc argument/reply shapes. All calls that touch port ownership carry
// the handler returned by Acquire.

type APISyncArgs struct {
	Version string `json:"version"`
}

type APISyncReply struct {
	Version string `json:"version"`
}

type EmptyArgs struct{}

type EmptyReply struct{}

type AcquireArgs struct {
	User  string `json:"user"`
	Ports []int  `json:"ports"`
	Force bool   `json:"force"`
}

type AcquireReply struct {
	Handler string `json:"handler"`
}

type PortsArgs struct {
	Handler string `json:"handler"`
	Ports   []int  `json:"ports"`
}

type AddStreamsArgs struct {
	Handler string   `json:"handler"`
	Ports   []int    `json:"ports"`
	Streams []Stream `json:"streams"`
}

type StartTrafficArgs struct {
	Handler  string  `json:"handler"`
	Ports    []int   `json:"ports"`
	Mult     float64 `json:"mult"`     // percent of line rate
	Duration float64 `json:"duration"` // seconds, 0 for unlimited
}

type PortArgs struct {
	Handler string `json:"handler"`
	Port    int    `json:"port"`
}

type PortStatusReply struct {
	State string `json:"state"`
}

type LatencyArgs struct {
	Handler string `json:"handler"`
	PGIDs   []int  `json:"pg_ids"`
}

type LatencyReply struct {
	Groups map[int]LatencyStats `json:"groups"`
}

// Client is a synchronous JSON-RPC 2.0 client for the stateless
// traffic-generator server. All calls block; the zero value is not
// usable, use NewClient.
type Client struct {
	server string
	port   uint
	user   string

	rpc       *jsonrpc2.Client
	handler   string
	info      SystemInfo
	connected bool
}

func NewClient(server string, port uint, user string) *Client {
	return &Client{server: server, port: port, user: user}
}

func (c *Client) addr() string {
	return net.JoinHostPort(c.server, strconv.Itoa(int(c.port)))
}

// Connect dials the server, verifies the API version, fetches the
// system inventory and force-acquires every port.
func (c *Client) Connect() error {
	if c.connected {
		return nil
	}

	rpcc, err := jsonrpc2.Dial("tcp", c.addr())
	if err != nil {
		return fmt.Errorf("connect %v: %w", c.addr(), err)
	}

	var sync APISyncReply
	if err := rpcc.Call("Stateless.APISync", APISyncArgs{Version: APIVersion}, &sync); err != nil {
		rpcc.Close()

		return fmt.Errorf("api sync: %w", err)
	}

	if err := rpcc.Call("Stateless.SystemInfo", EmptyArgs{}, &c.info); err != nil {
		rpcc.Close()

		return fmt.Errorf("system info: %w", err)
	}

	all := allPorts(c.info.PortCount)

	var acq AcquireReply
	if err := rpcc.Call("Stateless.Acquire", AcquireArgs{User: c.user, Ports: all, Force: true}, &acq); err != nil {
		rpcc.Close()

		return fmt.Errorf("acquire ports %v: %w", all, err)
	}

	c.rpc = rpcc
	c.handler = acq.Handler
	c.connected = true

	Log.Infof("Connected to %v, server api %v, %v ports, %v cores",
		c.addr(), sync.Version, c.info.PortCount, c.info.CoreCount)

	return nil
}

// Disconnect releases the ports and closes the connection. Safe to call
// more than once; only the first call talks to the server.
func (c *Client) Disconnect() {
	if !c.connected {
		return
	}
	c.connected = false

	var reply EmptyReply
	if err := c.rpc.Call("Stateless.Release", PortsArgs{Handler: c.handler, Ports: allPorts(c.info.PortCount)}, &reply); err != nil {
		Log.Errorf("Release ports failed. err = %v", err)
	}

	if err := c.rpc.Close(); err != nil {
		Log.Errorf("Close rpc conn failed. err = %v", err)
	}

	Log.Infof("Disconnected from %v", c.addr())
}

func (c *Client) Connected() bool {
	return c.connected
}

// SystemInfo returns the inventory cached at connect time.
func (c *Client) SystemInfo() SystemInfo {
	return c.info
}

func (c *Client) PortCount() int {
	return c.info.PortCount
}

// LineRateBPS returns the nominal layer-1 bit rate of a port.
func (c *Client) LineRateBPS(port int) float64 {
	if port < 0 || port >= len(c.info.Ports) {
		return 0
	}

	return float64(c.info.Ports[port].SpeedGbps) * 1e9
}

// MapPorts pairs ports by the peer routes the server reports.
func (c *Client) MapPorts() (*PortMap, error) {
	if !c.connected {
		return nil, fmt.Errorf("map ports: not connected")
	}

	table := new(PortMap)
	seen := make(map[int]bool)

	for _, pi := range c.info.Ports {
		if seen[pi.Index] {
			continue
		}

		peer := pi.Peer
		if peer < 0 || peer >= len(c.info.Ports) || peer == pi.Index {
			seen[pi.Index] = true
			table.Unknown = append(table.Unknown, pi.Index)

			continue
		}

		if c.info.Ports[peer].Peer != pi.Index {
			seen[pi.Index] = true
			table.Unknown = append(table.Unknown, pi.Index)

			continue
		}

		seen[pi.Index] = true
		seen[peer] = true
		table.Bi = append(table.Bi, [2]int{pi.Index, peer})
	}

	return table, nil
}

// Reset stops traffic, removes all streams and clears counters on the
// given ports. A nil slice means every port.
func (c *Client) Reset(ports []int) error {
	if ports == nil {
		ports = allPorts(c.info.PortCount)
	}

	var reply EmptyReply

	if err := c.rpc.Call("Stateless.StopTraffic", PortsArgs{Handler: c.handler, Ports: ports}, &reply); err != nil {
		return fmt.Errorf("stop traffic: %w", err)
	}

	if err := c.rpc.Call("Stateless.RemoveAllStreams", PortsArgs{Handler: c.handler, Ports: ports}, &reply); err != nil {
		return fmt.Errorf("remove streams: %w", err)
	}

	if err := c.rpc.Call("Stateless.ClearStats", PortsArgs{Handler: c.handler, Ports: ports}, &reply); err != nil {
		return fmt.Errorf("clear stats: %w", err)
	}

	return nil
}

// AddStreams attaches the stream descriptors to every listed port.
func (c *Client) AddStreams(streams []Stream, ports []int) error {
	var reply EmptyReply

	args := AddStreamsArgs{Handler: c.handler, Ports: ports, Streams: streams}
	if err := c.rpc.Call("Stateless.AddStreams", args, &reply); err != nil {
		return fmt.Errorf("add %v streams to ports %v: %w", len(streams), ports, err)
	}

	Log.Debugf("Attached %v streams to ports %v", len(streams), ports)

	return nil
}

// StartTraffic starts generation on the ports at multPercent percent of
// line rate for duration seconds.
func (c *Client) StartTraffic(ports []int, multPercent float64, duration float64) error {
	var reply EmptyReply

	args := StartTrafficArgs{Handler: c.handler, Ports: ports, Mult: multPercent, Duration: duration}
	if err := c.rpc.Call("Stateless.StartTraffic", args, &reply); err != nil {
		return fmt.Errorf("start traffic on ports %v: %w", ports, err)
	}

	Log.Debugf("Traffic started on ports %v, mult = %v%%, duration = %vs", ports, multPercent, duration)

	return nil
}

func (c *Client) StopTraffic(ports []int) error {
	var reply EmptyReply

	if err := c.rpc.Call("Stateless.StopTraffic", PortsArgs{Handler: c.handler, Ports: ports}, &reply); err != nil {
		return fmt.Errorf("stop traffic on ports %v: %w", ports, err)
	}

	return nil
}

// WaitOnTraffic polls the ports until all of them left the transmitting
// state or the timeout elapsed.
func (c *Client) WaitOnTraffic(ports []int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		busy := false

		for _, port := range ports {
			var status PortStatusReply

			if err := c.rpc.Call("Stateless.PortStatus", PortArgs{Handler: c.handler, Port: port}, &status); err != nil {
				return fmt.Errorf("port %v status: %w", port, err)
			}

			if status.State == PORT_STATE_TRANSMITTING {
				busy = true

				break
			}
		}

		if !busy {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("wait on traffic: ports %v still transmitting after %v", ports, timeout)
		}

		time.Sleep(waitPollInterval)
	}
}

func (c *Client) ClearStats(ports []int) error {
	var reply EmptyReply

	if err := c.rpc.Call("Stateless.ClearStats", PortsArgs{Handler: c.handler, Ports: ports}, &reply); err != nil {
		return fmt.Errorf("clear stats on ports %v: %w", ports, err)
	}

	return nil
}

func (c *Client) PortStats(port int) (*PortStats, error) {
	stats := new(PortStats)

	if err := c.rpc.Call("Stateless.PortStats", PortArgs{Handler: c.handler, Port: port}, stats); err != nil {
		return nil, fmt.Errorf("port %v stats: %w", port, err)
	}

	return stats, nil
}

// LatencyStats fetches the latency groups for the given packet group
// ids.
func (c *Client) LatencyStats(pgIDs []int) (map[int]LatencyStats, error) {
	var reply LatencyReply

	if err := c.rpc.Call("Stateless.LatencyStats", LatencyArgs{Handler: c.handler, PGIDs: pgIDs}, &reply); err != nil {
		return nil, fmt.Errorf("latency stats %v: %w", pgIDs, err)
	}

	return reply.Groups, nil
}

func allPorts(n int) []int {
	ports := make([]int, n)
	for i := range ports {
		ports[i] = i
	}

	return ports
}
