package stateless

// Transmission mode names understood by the server.
const (
	TX_MODE_CONTINUOUS   = "continuous"
	TX_MODE_SINGLE_BURST = "single_burst"
)

// Port transmit states reported by PortStatus.
const (
	PORT_STATE_IDLE         = "IDLE"
	PORT_STATE_TRANSMITTING = "TX"
	PORT_STATE_PAUSED       = "PAUSE"
)

// Flow stats tagging types.
const (
	FLOW_STATS_RATE    = "stats"
	FLOW_STATS_LATENCY = "latency"
)

// PortInfo describes one physical port as reported by the server.
// Peer is the port index of the wired peer, or -1 when the server
// could not identify the route.
type PortInfo struct {
	Index     int    `json:"index"`
	Driver    string `json:"driver"`
	SpeedGbps int    `json:"speed"`
	MacAddr   string `json:"macaddr"`
	Peer      int    `json:"peer"`
}

// SystemInfo is the server-side inventory returned during the connect
// handshake.
type SystemInfo struct {
	APIVersion string     `json:"api_version"`
	Hostname   string     `json:"hostname"`
	CoreCount  int        `json:"core_count"`
	PortCount  int        `json:"port_count"`
	Ports      []PortInfo `json:"ports"`
}

// PortMap holds the routes discovered between ports. Bi lists
// bidirectional pairs, Unknown lists ports without an identified peer.
type PortMap struct {
	Bi      [][2]int
	Unknown []int
}

// TxMode selects how a stream is transmitted. PPS carries the base rate
// for a continuous stream; the server scales it by the start multiplier.
// TotalPkts is only meaningful for a single burst.
type TxMode struct {
	Type      string  `json:"type"`
	PPS       float64 `json:"pps"`
	TotalPkts int     `json:"total_pkts,omitempty"`
}

// FlowStats requests per-stream accounting on the server. A latency
// tagged stream additionally gets timestamped on rx.
type FlowStats struct {
	Type string `json:"type"`
	PGID int    `json:"pg_id"`
}

// FieldEngineVar is one flow variable of a field engine program.
// Op is one of inc, dec, random.
type FieldEngineVar struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	Op       string `json:"op"`
	MinValue uint64 `json:"min_value"`
	MaxValue uint64 `json:"max_value"`
}

// FieldEngineWrite copies a flow variable into the packet template at a
// fixed byte offset on every generated packet.
type FieldEngineWrite struct {
	VarName   string `json:"var_name"`
	PktOffset int    `json:"pkt_offset"`
}

// FieldEngineProgram is the per-stream field variation program executed
// by the server. FixChecksum lists IPv4 header offsets to re-checksum
// after the writes. TrimVar, when set, names the variable that trims
// the packet to a variable size. CacheSize > 0 asks the server to
// pre-generate that many packet mutations and replay them.
type FieldEngineProgram struct {
	Vars        []FieldEngineVar   `json:"instructions"`
	Writes      []FieldEngineWrite `json:"writes"`
	FixChecksum []int              `json:"fix_checksum,omitempty"`
	TrimVar     string             `json:"trim_var,omitempty"`
	CacheSize   int                `json:"cache_size,omitempty"`
}

// Stream is one traffic stream descriptor, attached to ports before
// traffic starts. Packet is the serialized template without FCS.
type Stream struct {
	Name        string              `json:"name"`
	Packet      []byte              `json:"packet"`
	Mode        TxMode              `json:"mode"`
	ISG         float64             `json:"isg"`
	FlowStats   *FlowStats          `json:"flow_stats,omitempty"`
	FieldEngine *FieldEngineProgram `json:"field_engine,omitempty"`
}

// PortStats are cumulative counters for one port since the last
// ClearStats.
type PortStats struct {
	TxPackets uint64  `json:"opackets"`
	RxPackets uint64  `json:"ipackets"`
	TxBytes   uint64  `json:"obytes"`
	RxBytes   uint64  `json:"ibytes"`
	TxPPS     float64 `json:"tx_pps"`
	RxPPS     float64 `json:"rx_pps"`
	QueueFull uint64  `json:"oerrors"`
}

// LatencyStats summarize one latency-tagged packet group.
type LatencyStats struct {
	MinUsec    float64 `json:"min_usec"`
	MaxUsec    float64 `json:"max_usec"`
	AvgUsec    float64 `json:"avg_usec"`
	JitterUsec float64 `json:"jitter_usec"`
	Dropped    uint64  `json:"dropped"`
	OutOfOrder uint64  `json:"out_of_order"`
	TotalRx    uint64  `json:"total_rx"`
	TotalTx    uint64  `json:"total_tx"`
}
