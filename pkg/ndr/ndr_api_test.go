package ndr

import (
	"testing"

	"gotest.tools/assert"

	"ndr-go/pkg/stateless"
)

func TestParsePortList(t *testing.T) {
	ports, err := parsePortList("0,1,2,3")
	assert.Assert(t, err == nil)
	assert.DeepEqual(t, ports, []int{0, 1, 2, 3})

	ports, err = parsePortList(" 0 , 1 ")
	assert.Assert(t, err == nil)
	assert.DeepEqual(t, ports, []int{0, 1})

	ports, err = parsePortList("")
	assert.Assert(t, err == nil)
	assert.Assert(t, ports == nil)

	_, err = parsePortList("0,x")
	assert.Assert(t, err != nil)

	_, err = parsePortList("0,-1")
	assert.Assert(t, err != nil)
}

func benchTool(addr string, port uint) *BenchTool {
	tool := NewBenchTool()
	tool.Init()

	tool.server = addr
	tool.rpcPort = port
	tool.setupName = "ut"
	tool.pktSize = DEFAULT_PKT_SIZE
	tool.variant = FE_NONE
	tool.pdr = DEFAULT_PDR
	tool.pdrError = DEFAULT_PDR_ERROR
	tool.qFullResolution = DEFAULT_Q_FULL_RESOLUTION
	tool.iterationDuration = 0.05
	tool.firstRunDuration = 0.05
	tool.dropRateInterval = DEFAULT_DROP_RATE_INTERVAL
	tool.ndrResults = DEFAULT_NDR_RESULTS
	tool.maxIterations = DEFAULT_MAX_ITERATIONS

	return tool
}

func startMockServer(t *testing.T, portCount int) *stateless.MockServer {
	t.Helper()

	srv := stateless.NewMockServer(portCount)

	_, err := srv.Start()
	assert.Assert(t, err == nil)
	t.Cleanup(srv.Close)

	return srv
}

func TestOddPortListAbortsWithoutConnecting(t *testing.T) {
	tool := benchTool("127.0.0.1", 1) // nothing listens there
	tool.portList = []int{0, 1, 2}

	rtn := tool.RunBench()
	assert.Equal(t, rtn, -1)

	// aborted before a client was even built
	assert.Assert(t, tool.client == nil)
	assert.Assert(t, tool.results == nil)
}

func TestRunBenchAgainstMock(t *testing.T) {
	srv := startMockServer(t, 2)
	srv.LatencyGroups[LATENCY_PG_ID] = stateless.LatencyStats{AvgUsec: 12, TotalTx: 1000, TotalRx: 1000}

	tool := benchTool("127.0.0.1", srv.Port())
	tool.latency = true
	tool.ndrResults = 2

	rtn := tool.RunBench()
	assert.Equal(t, rtn, 0)

	results := tool.Results()
	assert.Assert(t, results != nil)
	assert.Equal(t, results.NdrPercent, MAX_RATE_PERCENT)
	assert.Equal(t, results.Converged, true)
	assert.Equal(t, len(results.NdrPoints), 2)

	group, ok := results.Latency[LATENCY_PG_ID]
	assert.Assert(t, ok)
	assert.Equal(t, group.AvgUsec, 12.0)

	// streams went to the first direction port, latency stream last
	attached := srv.Streams[0]
	assert.Equal(t, len(attached), 2)
	assert.Equal(t, attached[0].Name, "bench_s0")
	assert.Equal(t, attached[1].Name, "rx")
	assert.Assert(t, attached[1].FlowStats != nil)

	// the deferred disconnect released the ports exactly once
	assert.Equal(t, srv.Releases, 1)
	assert.Equal(t, tool.client.Connected(), false)
}

func TestRunBenchLossyDevice(t *testing.T) {
	srv := startMockServer(t, 2)
	srv.CapacityPercent = 80

	tool := benchTool("127.0.0.1", srv.Port())

	rtn := tool.RunBench()
	assert.Equal(t, rtn, 0)

	results := tool.Results()
	assert.Equal(t, results.Converged, true)
	assert.Assert(t, results.NdrPercent <= 80.0)
	assert.Assert(t, results.NdrPercent >= 70.0)
	assert.Assert(t, results.TotalIterations >= 2)
}

func TestRunBenchExplicitPorts(t *testing.T) {
	srv := startMockServer(t, 4)

	tool := benchTool("127.0.0.1", srv.Port())
	tool.portList = []int{2, 3}

	rtn := tool.RunBench()
	assert.Equal(t, rtn, 0)

	assert.Equal(t, len(srv.Streams[2]), 1)
	assert.Equal(t, len(srv.Streams[0]), 0)
}

func TestRunBenchSearchFailureStillDisconnects(t *testing.T) {
	srv := startMockServer(t, 2)
	srv.CapacityPercent = 50

	tool := benchTool("127.0.0.1", srv.Port())
	tool.maxIterations = 1

	rtn := tool.RunBench()
	assert.Equal(t, rtn, -1)

	assert.Equal(t, srv.Releases, 1)
	assert.Equal(t, tool.client.Connected(), false)
}

func TestRunBenchConnectFailure(t *testing.T) {
	tool := benchTool("127.0.0.1", 1)

	rtn := tool.RunBench()
	assert.Equal(t, rtn, -1)
}

func TestRunBenchBadStreamConfig(t *testing.T) {
	srv := startMockServer(t, 2)

	tool := benchTool("127.0.0.1", srv.Port())
	tool.pktSize = "not-a-size"

	rtn := tool.RunBench()
	assert.Equal(t, rtn, -1)

	// failed after connect, the connection still got released
	assert.Equal(t, srv.Releases, 1)
}
