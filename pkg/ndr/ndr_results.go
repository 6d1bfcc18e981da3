package ndr

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v2"

	"ndr-go/pkg/stateless"
)

const (
	ITERATION_HEADER = "[ITER]    Rate(%%)      TX pkts      RX pkts      Drop(%%)    Q-full(%%)\n"
	ITERATION_FORMAT = "[%4v]    %6.2f    %11v  %11v    %8.4f     %8.4f\n"
	RESULT_HEADER    = "Point         Rate(%%)       Rate(pps)        Rate(bps)\n"
	RESULT_FORMAT    = "%-10s    %6.2f    %12.0f    %13.0f\n"
	LATENCY_HEADER   = "[PG ID]    Min(us)    Avg(us)    Max(us)    Jitter(us)    Dropped    Out-of-order\n"
	LATENCY_FORMAT   = "[%5v]    %7.1f    %7.1f    %7.1f    %10.1f    %7v    %12v\n"
	RESULT_SEPERATOR = "- - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - - -\n"
)

// IterationResult is the measurement of one traffic run.
type IterationResult struct {
	Iteration    int     `json:"iteration" yaml:"iteration"`
	RatePercent  float64 `json:"rate_percent" yaml:"rate_percent"`
	DurationSec  float64 `json:"duration_sec" yaml:"duration_sec"`
	TxPackets    uint64  `json:"tx_packets" yaml:"tx_packets"`
	RxPackets    uint64  `json:"rx_packets" yaml:"rx_packets"`
	TxPPS        float64 `json:"tx_pps" yaml:"tx_pps"`
	TxBPS        float64 `json:"tx_bps" yaml:"tx_bps"`
	DropPercent  float64 `json:"drop_percent" yaml:"drop_percent"`
	QFullPercent float64 `json:"q_full_percent" yaml:"q_full_percent"`
}

// NdrPoint is the benchmark scaled linearly under the NDR; with
// ndr-results = 2 the points are NDR and NDR/2.
type NdrPoint struct {
	Name        string  `json:"name" yaml:"name"`
	RatePercent float64 `json:"rate_percent" yaml:"rate_percent"`
	RatePPS     float64 `json:"rate_pps" yaml:"rate_pps"`
	RateBPS     float64 `json:"rate_bps" yaml:"rate_bps"`
}

// BenchResults is the result record of a whole search.
type BenchResults struct {
	SetupName       string                         `json:"setup_name" yaml:"setup_name"`
	PktSize         string                         `json:"pkt_size" yaml:"pkt_size"`
	Variant         string                         `json:"fe_variant" yaml:"fe_variant"`
	PDR             float64                        `json:"pdr" yaml:"pdr"`
	PDRError        float64                        `json:"pdr_error" yaml:"pdr_error"`
	NdrPercent      float64                        `json:"ndr_percent" yaml:"ndr_percent"`
	NdrPPS          float64                        `json:"ndr_pps" yaml:"ndr_pps"`
	NdrBPS          float64                        `json:"ndr_bps" yaml:"ndr_bps"`
	LineRateBPS     float64                        `json:"line_rate_bps" yaml:"line_rate_bps"`
	Converged       bool                           `json:"converged" yaml:"converged"`
	TotalIterations int                            `json:"total_iterations" yaml:"total_iterations"`
	ElapsedSec      float64                        `json:"elapsed_sec" yaml:"elapsed_sec"`
	NdrPoints       []NdrPoint                     `json:"ndr_points" yaml:"ndr_points"`
	Iterations      []IterationResult              `json:"iterations" yaml:"iterations"`
	Latency         map[int]stateless.LatencyStats `json:"latency,omitempty" yaml:"latency,omitempty"`

	ndrResults int
}

func newBenchResults(config *BenchConfig) *BenchResults {
	return &BenchResults{
		SetupName:  config.SetupName,
		PktSize:    config.PktSize,
		Variant:    config.Variant,
		PDR:        config.PDR,
		PDRError:   config.PDRError,
		ndrResults: config.NdrResults,
	}
}

// recordNdr stores the winning iteration and derives the scaled result
// points.
func (r *BenchResults) recordNdr(best *IterationResult, lineRateBPS float64) {
	r.NdrPercent = best.RatePercent
	r.NdrPPS = best.TxPPS
	r.NdrBPS = best.TxBPS
	r.LineRateBPS = lineRateBPS

	n := r.ndrResults
	if n < 1 {
		n = 1
	}

	r.NdrPoints = make([]NdrPoint, 0, n)
	for k := 1; k <= n; k++ {
		name := "NDR"
		if k > 1 {
			name = fmt.Sprintf("NDR/%v", k)
		}

		r.NdrPoints = append(r.NdrPoints, NdrPoint{
			Name:        name,
			RatePercent: r.NdrPercent / float64(k),
			RatePPS:     r.NdrPPS / float64(k),
			RateBPS:     r.NdrBPS / float64(k),
		})
	}
}

func printIteration(it *IterationResult) {
	if it.Iteration == 0 {
		fmt.Printf(ITERATION_HEADER)
	}

	fmt.Printf(ITERATION_FORMAT, it.Iteration, it.RatePercent, it.TxPackets, it.RxPackets,
		it.DropPercent, it.QFullPercent)
}

// PrintFinal writes the summary table to stdout.
func (r *BenchResults) PrintFinal(latency bool) {
	fmt.Printf(RESULT_SEPERATOR)
	fmt.Printf("Setup: %v  pkt size: %v  fe: %v  pdr: %.2f%%  iterations: %v  elapsed: %.1fs\n",
		r.SetupName, r.PktSize, r.Variant, r.PDR, r.TotalIterations, r.ElapsedSec)
	fmt.Printf(RESULT_HEADER)

	for _, point := range r.NdrPoints {
		fmt.Printf(RESULT_FORMAT, point.Name, point.RatePercent, point.RatePPS, point.RateBPS)
	}

	if latency && len(r.Latency) > 0 {
		fmt.Printf(RESULT_SEPERATOR)
		fmt.Printf(LATENCY_HEADER)

		for pgid, group := range r.Latency {
			fmt.Printf(LATENCY_FORMAT, pgid, group.MinUsec, group.AvgUsec, group.MaxUsec,
				group.JitterUsec, group.Dropped, group.OutOfOrder)
		}
	}

	fmt.Printf(RESULT_SEPERATOR)
}

// ToJSON serializes the result record.
func (r *BenchResults) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToYAML serializes the result record.
func (r *BenchResults) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}
