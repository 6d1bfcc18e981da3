package ndr

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/op/go-logging"

	"ndr-go/pkg/stateless"
)

// BenchTool drives one benchmark run: parse flags, connect, build and
// attach streams, run the search, report.
type BenchTool struct {
	server   string
	rpcPort  uint
	coreMask uint64

	pdr               float64
	pdrError          float64
	qFullResolution   float64
	iterationDuration float64
	firstRunDuration  float64
	dropRateInterval  float64
	ndrResults        int
	maxIterations     int
	latency           bool
	verbose           bool

	setupName string
	variant   string
	pktSize   string
	output    string
	portList  []int

	profile *BenchProfile
	client  *stateless.Client
	results *BenchResults
}

func NewBenchTool() *BenchTool {
	return new(BenchTool)
}

func (tool *BenchTool) Init() {
	tool.profile = NewBenchProfile()
}

// Results returns the record of the last finished run, nil before that.
func (tool *BenchTool) Results() *BenchResults {
	return tool.results
}

func (tool *BenchTool) ParseArguments() int {

	// command flag definition
	var helpFlag = flag.Bool("h", false, "this help")
	var serverFlag = flag.String("s", DEFAULT_SERVER, "remote traffic generator address")
	var rpcPortFlag = flag.Uint("port", DEFAULT_RPC_PORT, "traffic generator rpc port")
	var coreMaskFlag = flag.Uint64("c", 0, "allocation of cores per port")
	var pdrFlag = flag.Float64("p", DEFAULT_PDR, "allowed percentage of drops out of total traffic [0(NDR)-100]")
	var iterTimeFlag = flag.Float64("t", DEFAULT_ITERATION_DURATION, "duration of each run iteration during test (s)")
	var ndrResultsFlag = flag.Int("n", DEFAULT_NDR_RESULTS, "calculates the benchmark at each point scaled linearly under NDR [1-10]")
	var setupNameFlag = flag.String("na", DEFAULT_SETUP_NAME, "name of the setup the benchmark tests")
	var firstRunFlag = flag.Float64("ft", DEFAULT_FIRST_RUN_DURATION, "duration of the first run testing device capability (s)")
	var verboseFlag = flag.Bool("v", false, "print test results and iterations to stdout")
	var maxIterFlag = flag.Int("x", DEFAULT_MAX_ITERATIONS, "stop when reaching result or max iterations, the early of the two")
	var pdrErrorFlag = flag.Float64("e", DEFAULT_PDR_ERROR, "allowed error around the result (%)")
	var qFullFlag = flag.Float64("q", DEFAULT_Q_FULL_RESOLUTION, "percent of traffic allowed to be queued above device capability (%)")
	var noLatencyFlag = flag.Bool("l", false, "disable latency calculations")
	var feFlag = flag.String("fe", FE_NONE, "field engine variant: var1, var2, random, tuple, size, cached")
	var sizeFlag = flag.String("size", DEFAULT_PKT_SIZE, "packet size in bytes or imix")
	var feSrcStartFlag = flag.String("fe-src-start-ip", "", "field engine source range start, valid only with -fe")
	var feSrcStopFlag = flag.String("fe-src-stop-ip", "", "field engine source range end, valid only with -fe")
	var feDstStartFlag = flag.String("fe-dst-start-ip", "", "field engine destination range start, valid only with -fe")
	var feDstStopFlag = flag.String("fe-dst-stop-ip", "", "field engine destination range end, valid only with -fe")
	var dropIntervalFlag = flag.Float64("d", DEFAULT_DROP_RATE_INTERVAL, "drop rate search interval around the assumed rate (%)")
	var outputFlag = flag.String("o", OUTPUT_NONE, "output format, json or yaml. unset prints to console with -v")
	var portsFlag = flag.String("ports", "", "even-length comma-separated list of ports for running traffic on")
	var debugFlag = flag.Bool("debug", false, "debug mode")
	var infoFlag = flag.Bool("info", false, "info mode")

	// parse argument
	flag.Parse()

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	if *debugFlag == true {
		logging.SetLevel(logging.DEBUG, "ndr")
		logging.SetLevel(logging.DEBUG, "stateless")
	} else if *infoFlag == true {
		logging.SetLevel(logging.INFO, "ndr")
		logging.SetLevel(logging.INFO, "stateless")
	} else {
		logging.SetLevel(logging.ERROR, "ndr")
		logging.SetLevel(logging.ERROR, "stateless")
	}

	if validFEVariant(*feFlag) == false {
		Log.Errorf("Unknown field engine variant %v", *feFlag)

		return -2
	}

	if *outputFlag != OUTPUT_NONE && *outputFlag != OUTPUT_JSON && *outputFlag != OUTPUT_YAML {
		Log.Errorf("Unknown output format %v", *outputFlag)

		return -3
	}

	ports, err := parsePortList(*portsFlag)
	if err != nil {
		Log.Errorf("Illegal ports list. err = %v", err)

		return -1
	}

	tool.server = *serverFlag
	tool.rpcPort = *rpcPortFlag
	tool.coreMask = *coreMaskFlag
	tool.pdr = *pdrFlag
	tool.iterationDuration = *iterTimeFlag
	tool.ndrResults = *ndrResultsFlag
	tool.setupName = *setupNameFlag
	tool.firstRunDuration = *firstRunFlag
	tool.verbose = *verboseFlag
	tool.maxIterations = *maxIterFlag
	tool.pdrError = *pdrErrorFlag
	tool.qFullResolution = *qFullFlag
	tool.latency = !*noLatencyFlag
	tool.variant = *feFlag
	tool.pktSize = *sizeFlag
	tool.dropRateInterval = *dropIntervalFlag
	tool.output = *outputFlag
	tool.portList = ports

	if tool.variant == FE_NONE {
		for _, v := range []string{*feSrcStartFlag, *feSrcStopFlag, *feDstStartFlag, *feDstStopFlag} {
			if v != "" {
				Log.Errorf("fe address overrides are only valid when -fe is set, ignored")

				break
			}
		}
	} else {
		overrides := []struct {
			value  string
			target *net.IP
		}{
			{*feSrcStartFlag, &tool.profile.SrcRange.Start},
			{*feSrcStopFlag, &tool.profile.SrcRange.End},
			{*feDstStartFlag, &tool.profile.DstRange.Start},
			{*feDstStopFlag, &tool.profile.DstRange.End},
		}

		for _, o := range overrides {
			if o.value == "" {
				continue
			}

			ip := net.ParseIP(o.value)
			if ip == nil || ip.To4() == nil {
				Log.Errorf("Illegal fe range address %v", o.value)

				return -4
			}

			*o.target = ip
		}
	}

	tool.Print()

	return 0
}

// RunBench runs the full benchmark sequence. The connection, once
// established, is always released before returning.
func (tool *BenchTool) RunBench() int {
	if len(tool.portList)%2 != 0 {
		fmt.Printf("illegal ports list\n")

		return -1
	}

	tool.client = stateless.NewClient(tool.server, tool.rpcPort, tool.setupName)

	if err := tool.client.Connect(); err != nil {
		Log.Errorf("Connect failed. err = %v", err)

		return -1
	}
	defer tool.client.Disconnect()

	// take all the ports
	if err := tool.client.Reset(nil); err != nil {
		Log.Errorf("Reset failed. err = %v", err)

		return -1
	}

	// map ports - identify the routes
	table, err := tool.client.MapPorts()
	if err != nil {
		Log.Errorf("Map ports failed. err = %v", err)

		return -1
	}

	var dir0, ports []int

	if len(tool.portList) > 0 {
		for i := 0; i < len(tool.portList); i += 2 {
			dir0 = append(dir0, tool.portList[i])
		}
		ports = tool.portList
	} else {
		if len(table.Bi) == 0 {
			Log.Errorf("No bidirectional port pair discovered. unknown ports = %v", table.Unknown)

			return -1
		}

		dir0 = []int{table.Bi[0][0]}
		ports = []int{table.Bi[0][0], table.Bi[0][1]}
	}

	Log.Infof("Mapped ports to sides %v <--> %v", dir0, ports)

	streams, err := tool.profile.Streams(tool.pktSize, tool.variant, 0)
	if err != nil {
		Log.Errorf("Build streams failed. err = %v", err)

		return -1
	}

	if tool.latency {
		lat, err := LatencyStream()
		if err != nil {
			Log.Errorf("Build latency stream failed. err = %v", err)

			return -1
		}

		streams = append(streams, lat)
	}

	// add the streams to the first direction ports
	if err := tool.client.AddStreams(streams, dir0); err != nil {
		Log.Errorf("Add streams failed. err = %v", err)

		return -1
	}

	config := &BenchConfig{
		SetupName:         tool.setupName,
		Ports:             ports,
		TxPorts:           dir0,
		PktSize:           tool.pktSize,
		Variant:           tool.variant,
		IterationDuration: tool.iterationDuration,
		FirstRunDuration:  tool.firstRunDuration,
		PDR:               tool.pdr,
		PDRError:          tool.pdrError,
		QFullResolution:   tool.qFullResolution,
		DropRateInterval:  tool.dropRateInterval,
		NdrResults:        tool.ndrResults,
		MaxIterations:     tool.maxIterations,
		Latency:           tool.latency,
		CoreMask:          tool.coreMask,
		Verbose:           tool.verbose,
	}

	bench := NewBench(tool.client, config)

	passed := true

	if err := bench.Find(); err != nil {
		passed = false

		fmt.Println(err)
	} else if config.Verbose {
		bench.Results.PrintFinal(config.Latency)
	}

	tool.results = bench.Results

	if passed {
		color.Green("\nTest has passed :-)\n")
	} else {
		color.Red("\nTest has failed :-(\n")

		return -1
	}

	switch tool.output {
	case OUTPUT_JSON:
		doc, err := tool.results.ToJSON()
		if err != nil {
			Log.Errorf("Encode results failed. err = %v", err)

			return -1
		}

		fmt.Println(string(doc))
	case OUTPUT_YAML:
		doc, err := tool.results.ToYAML()
		if err != nil {
			Log.Errorf("Encode results failed. err = %v", err)

			return -1
		}

		fmt.Println(string(doc))
	}

	return 0
}

func (tool *BenchTool) Print() {
	fmt.Printf("NDR benchmark started:\n")
	fmt.Printf("server:%v\tsetup:%v\tsize:%v\tfe:%v\tpdr:%v\tpdr_error:%v\tq_full:%v\titer_time:%v\tfirst_run:%v\tmax_iter:%v\tinterval:%v\tlatency:%v\tports:%v\n",
		tool.server, tool.setupName, tool.pktSize, tool.variant, tool.pdr, tool.pdrError,
		tool.qFullResolution, tool.iterationDuration, tool.firstRunDuration, tool.maxIterations,
		tool.dropRateInterval, tool.latency, tool.portList)
}

func parsePortList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}

	var ports []int

	for _, field := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", field, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative port %v", n)
		}

		ports = append(ports, n)
	}

	return ports, nil
}
