package ndr

import (
	"github.com/op/go-logging"
)

var Log = logging.MustGetLogger("ndr")

// Field engine variants understood by the stream builder.
var FEVariantList = []string{"none", "var1", "var2", "random", "tuple", "size", "cached"}

const (
	FE_NONE   = "none"
	FE_VAR1   = "var1"
	FE_VAR2   = "var2"
	FE_RANDOM = "random"
	FE_TUPLE  = "tuple"
	FE_SIZE   = "size"
	FE_CACHED = "cached"
)

// Flag defaults. Durations are in seconds, pdr / pdr error / q-full
// resolution / drop rate interval are percents.
const (
	DEFAULT_SERVER             = "127.0.0.1"
	DEFAULT_RPC_PORT           = 4501
	DEFAULT_SETUP_NAME         = "trex"
	DEFAULT_PDR                = 0.1
	DEFAULT_PDR_ERROR          = 1.00
	DEFAULT_Q_FULL_RESOLUTION  = 2.00
	DEFAULT_ITERATION_DURATION = 20.00
	DEFAULT_FIRST_RUN_DURATION = 20.00
	DEFAULT_NDR_RESULTS        = 1
	DEFAULT_MAX_ITERATIONS     = 10
	DEFAULT_DROP_RATE_INTERVAL = 10.00
	DEFAULT_PKT_SIZE           = "64"
)

const (
	MAX_RATE_PERCENT = 100.0

	// frame size bounds, including FCS
	MIN_PKT_SIZE = 64
	MAX_PKT_SIZE = 9216

	LATENCY_PG_ID      = 5
	LATENCY_BURST_SIZE = 1000
	LATENCY_PPS        = 1000

	// per-iteration wait slack on top of the traffic duration
	WAIT_SLACK_SEC = 10
)

const (
	OUTPUT_NONE = ""
	OUTPUT_JSON = "json"
	OUTPUT_YAML = "yaml"
)

// BenchConfig is the flat parameter record handed to the search.
// Built once per run, read-only afterwards.
type BenchConfig struct {
	SetupName         string  `json:"setup_name" yaml:"setup_name"`
	Ports             []int   `json:"ports" yaml:"ports"`
	TxPorts           []int   `json:"tx_ports" yaml:"tx_ports"`
	PktSize           string  `json:"pkt_size" yaml:"pkt_size"`
	Variant           string  `json:"fe_variant" yaml:"fe_variant"`
	IterationDuration float64 `json:"iteration_duration" yaml:"iteration_duration"`
	FirstRunDuration  float64 `json:"first_run_duration" yaml:"first_run_duration"`
	PDR               float64 `json:"pdr" yaml:"pdr"`
	PDRError          float64 `json:"pdr_error" yaml:"pdr_error"`
	QFullResolution   float64 `json:"q_full_resolution" yaml:"q_full_resolution"`
	DropRateInterval  float64 `json:"drop_rate_interval" yaml:"drop_rate_interval"`
	NdrResults        int     `json:"ndr_results" yaml:"ndr_results"`
	MaxIterations     int     `json:"max_iterations" yaml:"max_iterations"`
	Latency           bool    `json:"latency" yaml:"latency"`
	CoreMask          uint64  `json:"core_mask" yaml:"core_mask"`
	Verbose           bool    `json:"verbose" yaml:"verbose"`
}

func validFEVariant(variant string) bool {
	for _, v := range FEVariantList {
		if variant == v {
			return true
		}
	}

	return false
}
