package ndr

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"gotest.tools/assert"

	"ndr-go/pkg/stateless"
)

func decodeTemplate(t *testing.T, raw []byte) (*layers.IPv4, *layers.UDP) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)

	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	assert.Assert(t, ipLayer != nil)

	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	assert.Assert(t, udpLayer != nil)

	return ipLayer.(*layers.IPv4), udpLayer.(*layers.UDP)
}

func TestStreamsFixedSize(t *testing.T) {
	profile := NewBenchProfile()

	streams, err := profile.Streams("64", FE_NONE, 0)
	assert.Assert(t, err == nil)
	assert.Equal(t, len(streams), 1)

	sp := streams[0]
	assert.Equal(t, sp.Mode.Type, stateless.TX_MODE_CONTINUOUS)
	assert.Equal(t, sp.Mode.PPS, 1.0)
	assert.Assert(t, sp.FieldEngine == nil)
	assert.Assert(t, sp.FlowStats == nil)

	// 64 byte frame minus the hardware FCS
	assert.Equal(t, len(sp.Packet), 60)

	ip, udp := decodeTemplate(t, sp.Packet)
	assert.Equal(t, ip.SrcIP.String(), "16.0.0.1")
	assert.Equal(t, ip.DstIP.String(), "48.0.0.1")
	assert.Equal(t, udp.SrcPort, layers.UDPPort(1025))
	assert.Equal(t, udp.DstPort, layers.UDPPort(12))
}

func TestStreamsImix(t *testing.T) {
	profile := NewBenchProfile()

	streams, err := profile.Streams("imix", FE_NONE, 0)
	assert.Assert(t, err == nil)
	assert.Equal(t, len(streams), 3)

	assert.Equal(t, len(streams[0].Packet), 56)
	assert.Equal(t, len(streams[1].Packet), 586)
	assert.Equal(t, len(streams[2].Packet), 1510)

	assert.Equal(t, streams[0].Mode.PPS, 28.0)
	assert.Equal(t, streams[1].Mode.PPS, 16.0)
	assert.Equal(t, streams[2].Mode.PPS, 4.0)
}

func TestStreamsIllegalSize(t *testing.T) {
	profile := NewBenchProfile()

	for _, size := range []string{"abc", "32", "10000", ""} {
		_, err := profile.Streams(size, FE_NONE, 0)
		assert.Assert(t, err != nil)
	}
}

func TestStreamsUnknownVariant(t *testing.T) {
	profile := NewBenchProfile()

	_, err := profile.Streams("64", "bogus", 0)
	assert.Assert(t, err != nil)
}

func TestStreamsDirectionSwapsRanges(t *testing.T) {
	profile := NewBenchProfile()

	streams, err := profile.Streams("64", FE_NONE, 1)
	assert.Assert(t, err == nil)

	ip, _ := decodeTemplate(t, streams[0].Packet)
	assert.Equal(t, ip.SrcIP.String(), "48.0.0.1")
	assert.Equal(t, ip.DstIP.String(), "16.0.0.1")
}

func TestStreamsFieldEngineVariants(t *testing.T) {
	profile := NewBenchProfile()

	for _, variant := range FEVariantList[1:] {
		streams, err := profile.Streams("128", variant, 0)
		assert.Assert(t, err == nil)

		fe := streams[0].FieldEngine
		assert.Assert(t, fe != nil)

		switch variant {
		case FE_VAR1:
			assert.Equal(t, len(fe.Vars), 1)
			assert.Equal(t, fe.Vars[0].Op, "inc")
			assert.Equal(t, fe.Writes[0].PktOffset, ipv4SrcOffset)
		case FE_VAR2:
			assert.Equal(t, len(fe.Vars), 2)
			assert.Equal(t, fe.Vars[1].Op, "dec")
			assert.Equal(t, fe.Writes[1].PktOffset, ipv4DstOffset)
		case FE_RANDOM:
			assert.Equal(t, fe.Vars[0].Op, "random")
			assert.Equal(t, fe.Vars[1].Op, "random")
		case FE_TUPLE:
			assert.Equal(t, fe.Vars[1].Name, "sport")
			assert.Equal(t, fe.Writes[1].PktOffset, udpSportOffset)
		case FE_SIZE:
			assert.Equal(t, fe.TrimVar, "pkt_len")
			assert.Equal(t, fe.Vars[0].MaxValue, uint64(124))
		case FE_CACHED:
			assert.Equal(t, fe.CacheSize, 255)
		}
	}
}

func TestStreamsRangeOverride(t *testing.T) {
	profile := NewBenchProfile()
	profile.SrcRange.Start = net.ParseIP("10.0.0.1")
	profile.SrcRange.End = net.ParseIP("10.0.0.50")

	streams, err := profile.Streams("64", FE_VAR1, 0)
	assert.Assert(t, err == nil)

	fe := streams[0].FieldEngine
	assert.Equal(t, fe.Vars[0].MinValue, uint64(0x0a000001))
	assert.Equal(t, fe.Vars[0].MaxValue, uint64(0x0a000032))

	ip, _ := decodeTemplate(t, streams[0].Packet)
	assert.Equal(t, ip.SrcIP.String(), "10.0.0.1")
}

func TestLatencyStream(t *testing.T) {
	sp, err := LatencyStream()
	assert.Assert(t, err == nil)

	assert.Equal(t, sp.Name, "rx")
	assert.Equal(t, sp.Mode.Type, stateless.TX_MODE_SINGLE_BURST)
	assert.Equal(t, sp.Mode.TotalPkts, LATENCY_BURST_SIZE)
	assert.Equal(t, sp.Mode.PPS, float64(LATENCY_PPS))

	assert.Assert(t, sp.FlowStats != nil)
	assert.Equal(t, sp.FlowStats.Type, stateless.FLOW_STATS_LATENCY)
	assert.Equal(t, sp.FlowStats.PGID, LATENCY_PG_ID)

	ip, _ := decodeTemplate(t, sp.Packet)
	assert.Equal(t, ip.SrcIP.String(), "16.0.0.1")
	assert.Equal(t, ip.DstIP.String(), "48.0.0.1")

	assert.Equal(t, string(sp.Packet[headersLen:]), "at_least_16_bytes_payload_needed")
}
