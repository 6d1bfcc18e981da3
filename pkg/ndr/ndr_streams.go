package ndr

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"ndr-go/pkg/stateless"
)

// Byte offsets into the packet template (Ethernet + IPv4 + UDP).
const (
	ipv4HeaderOffset   = 14
	ipv4TotalLenOffset = 16
	ipv4SrcOffset      = 26
	ipv4DstOffset      = 30
	udpSportOffset     = 34
	udpLenOffset       = 38
	headersLen         = 42
)

var (
	defaultSrcMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x01, 0x00, 0x01}
	defaultDstMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x02, 0x00, 0x01}
)

// The classic IMIX mix: frame size (incl. FCS) and rate ratio.
var imixTable = []struct {
	Size  int
	Ratio float64
}{
	{60, 28},
	{590, 16},
	{1514, 4},
}

// IPRange is an inclusive IPv4 address range.
type IPRange struct {
	Start net.IP
	End   net.IP
}

// BenchProfile builds the benchmark streams. The address ranges start
// out at the stock bench values and may be overridden per-end before
// Streams is called.
type BenchProfile struct {
	SrcRange IPRange
	DstRange IPRange
}

func NewBenchProfile() *BenchProfile {
	return &BenchProfile{
		SrcRange: IPRange{Start: net.ParseIP("16.0.0.1"), End: net.ParseIP("16.0.0.254")},
		DstRange: IPRange{Start: net.ParseIP("48.0.0.1"), End: net.ParseIP("48.0.0.254")},
	}
}

// Streams builds the primary streams for one direction. size is a frame
// size in bytes (including FCS) or "imix". direction 1 swaps the
// address ranges. A variant other than none attaches a field engine
// program to every stream.
func (p *BenchProfile) Streams(size string, variant string, direction int) ([]stateless.Stream, error) {
	if !validFEVariant(variant) {
		return nil, fmt.Errorf("unknown field engine variant %q", variant)
	}

	src, dst := p.SrcRange, p.DstRange
	if direction == 1 {
		src, dst = dst, src
	}

	type entry struct {
		size int
		pps  float64
	}

	var entries []entry

	if size == "imix" {
		for _, row := range imixTable {
			entries = append(entries, entry{size: row.Size, pps: row.Ratio})
		}
	} else {
		n, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("illegal packet size %q", size)
		}
		if n < MIN_PKT_SIZE || n > MAX_PKT_SIZE {
			return nil, fmt.Errorf("packet size %v out of range [%v-%v]", n, MIN_PKT_SIZE, MAX_PKT_SIZE)
		}

		entries = append(entries, entry{size: n, pps: 1})
	}

	streams := make([]stateless.Stream, 0, len(entries))

	for i, e := range entries {
		pkt, err := buildPacket(e.size, src.Start.String(), dst.Start.String())
		if err != nil {
			return nil, err
		}

		streams = append(streams, stateless.Stream{
			Name:        fmt.Sprintf("bench_s%v", i),
			Packet:      pkt,
			Mode:        stateless.TxMode{Type: stateless.TX_MODE_CONTINUOUS, PPS: e.pps},
			FieldEngine: feProgram(variant, src, dst, e.size),
		})
	}

	return streams, nil
}

// LatencyStream is the extra low-rate burst stream tagged for
// latency/flow statistics. Appended after the primary streams.
func LatencyStream() (stateless.Stream, error) {
	payload := []byte("at_least_16_bytes_payload_needed")

	pkt, err := serializeTemplate("16.0.0.1", "48.0.0.1", payload)
	if err != nil {
		return stateless.Stream{}, err
	}

	return stateless.Stream{
		Name:   "rx",
		Packet: pkt,
		Mode: stateless.TxMode{
			Type:      stateless.TX_MODE_SINGLE_BURST,
			PPS:       LATENCY_PPS,
			TotalPkts: LATENCY_BURST_SIZE,
		},
		FlowStats: &stateless.FlowStats{Type: stateless.FLOW_STATS_LATENCY, PGID: LATENCY_PG_ID},
	}, nil
}

// buildPacket serializes an Ethernet/IPv4/UDP template padded to
// frameSize. frameSize includes the 4-byte FCS which the hardware
// appends, so the template is 4 bytes shorter.
func buildPacket(frameSize int, srcIP, dstIP string) ([]byte, error) {
	payloadLen := frameSize - 4 - headersLen
	if payloadLen < 0 {
		payloadLen = 0
	}

	return serializeTemplate(srcIP, dstIP, make([]byte, payloadLen))
}

func serializeTemplate(srcIP, dstIP string, payload []byte) ([]byte, error) {
	eth := layers.Ethernet{
		SrcMAC:       defaultSrcMAC,
		DstMAC:       defaultDstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}

	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
	}

	udp := layers.UDP{
		SrcPort: 1025,
		DstPort: 12,
	}

	if err := udp.SetNetworkLayerForChecksum(&ip); err != nil {
		return nil, err
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{
		FixLengths:       true,
		ComputeChecksums: true,
	}

	if err := gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serialize packet template: %w", err)
	}

	return buf.Bytes(), nil
}

// feProgram translates a variant name into the field engine program the
// server executes per generated packet. Returns nil for the none
// variant.
func feProgram(variant string, src, dst IPRange, frameSize int) *stateless.FieldEngineProgram {
	srcVar := stateless.FieldEngineVar{
		Name:     "src_ip",
		Size:     4,
		Op:       "inc",
		MinValue: uint64(ipv4ToUint(src.Start)),
		MaxValue: uint64(ipv4ToUint(src.End)),
	}
	srcWrite := stateless.FieldEngineWrite{VarName: "src_ip", PktOffset: ipv4SrcOffset}

	switch variant {
	case FE_VAR1:
		return &stateless.FieldEngineProgram{
			Vars:        []stateless.FieldEngineVar{srcVar},
			Writes:      []stateless.FieldEngineWrite{srcWrite},
			FixChecksum: []int{ipv4HeaderOffset},
		}

	case FE_CACHED:
		return &stateless.FieldEngineProgram{
			Vars:        []stateless.FieldEngineVar{srcVar},
			Writes:      []stateless.FieldEngineWrite{srcWrite},
			FixChecksum: []int{ipv4HeaderOffset},
			CacheSize:   255,
		}

	case FE_VAR2, FE_RANDOM:
		op := "inc"
		dstOp := "dec"
		if variant == FE_RANDOM {
			op, dstOp = "random", "random"
		}
		srcVar.Op = op

		dstVar := stateless.FieldEngineVar{
			Name:     "dst_ip",
			Size:     4,
			Op:       dstOp,
			MinValue: uint64(ipv4ToUint(dst.Start)),
			MaxValue: uint64(ipv4ToUint(dst.End)),
		}

		return &stateless.FieldEngineProgram{
			Vars:   []stateless.FieldEngineVar{srcVar, dstVar},
			Writes: []stateless.FieldEngineWrite{srcWrite,
				{VarName: "dst_ip", PktOffset: ipv4DstOffset}},
			FixChecksum: []int{ipv4HeaderOffset},
		}

	case FE_TUPLE:
		portVar := stateless.FieldEngineVar{
			Name:     "sport",
			Size:     2,
			Op:       "inc",
			MinValue: 1025,
			MaxValue: 65535,
		}

		return &stateless.FieldEngineProgram{
			Vars: []stateless.FieldEngineVar{srcVar, portVar},
			Writes: []stateless.FieldEngineWrite{srcWrite,
				{VarName: "sport", PktOffset: udpSportOffset}},
			FixChecksum: []int{ipv4HeaderOffset},
		}

	case FE_SIZE:
		lenVar := stateless.FieldEngineVar{
			Name:     "pkt_len",
			Size:     2,
			Op:       "random",
			MinValue: MIN_PKT_SIZE - 4,
			MaxValue: uint64(frameSize - 4),
		}

		return &stateless.FieldEngineProgram{
			Vars: []stateless.FieldEngineVar{lenVar},
			Writes: []stateless.FieldEngineWrite{
				{VarName: "pkt_len", PktOffset: ipv4TotalLenOffset},
				{VarName: "pkt_len", PktOffset: udpLenOffset}},
			FixChecksum: []int{ipv4HeaderOffset},
			TrimVar:     "pkt_len",
		}
	}

	return nil
}

func ipv4ToUint(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}

	return binary.BigEndian.Uint32(v4)
}
