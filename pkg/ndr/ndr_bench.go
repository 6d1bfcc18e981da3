package ndr

import (
	"fmt"
	"time"

	"ndr-go/pkg/stateless"
)

// TrafficClient is the slice of the stateless client the search needs.
// *stateless.Client implements it.
type TrafficClient interface {
	ClearStats(ports []int) error
	StartTraffic(ports []int, multPercent float64, duration float64) error
	StopTraffic(ports []int) error
	WaitOnTraffic(ports []int, timeout time.Duration) error
	PortStats(port int) (*stateless.PortStats, error)
	LatencyStats(pgIDs []int) (map[int]stateless.LatencyStats, error)
	LineRateBPS(port int) float64
}

// Bench runs the NDR search over an attached stream set. Config must
// not change once Find started.
type Bench struct {
	client  TrafficClient
	Config  *BenchConfig
	Results *BenchResults
}

func NewBench(client TrafficClient, config *BenchConfig) *Bench {
	return &Bench{
		client:  client,
		Config:  config,
		Results: newBenchResults(config),
	}
}

// Find searches for the highest rate (percent of line rate) whose drop
// percentage stays under the PDR target.
//
// The first run transmits at 100% for the first-run duration to measure
// device capability. If the device keeps up, the NDR is the max rate.
// Otherwise the rx/tx ratio of the first run gives an assumed rate and
// the search bisects inside [assumed-interval, assumed+interval] until
// the measured drop is within the PDR error of the target or the
// iteration budget is exhausted.
func (b *Bench) Find() error {
	cfg := b.Config
	start := time.Now()

	defer func() {
		b.Results.ElapsedSec = time.Since(start).Seconds()
		b.Results.TotalIterations = len(b.Results.Iterations)
	}()

	first, err := b.iterate(0, MAX_RATE_PERCENT, cfg.FirstRunDuration)
	if err != nil {
		return err
	}

	var best *IterationResult

	if b.belowThreshold(first) {
		// device keeps up with max rate
		best = first
		b.Results.Converged = true
	} else {
		assumed := MAX_RATE_PERCENT * float64(first.RxPackets) / float64(first.TxPackets)

		lo := assumed - cfg.DropRateInterval
		if lo < 0 {
			lo = 0
		}
		hi := assumed + cfg.DropRateInterval
		if hi > MAX_RATE_PERCENT {
			hi = MAX_RATE_PERCENT
		}

		Log.Infof("First run dropped above pdr, assumed rate %.2f%%, searching [%.2f%%, %.2f%%]",
			assumed, lo, hi)

		for iteration := 1; iteration < cfg.MaxIterations; iteration++ {
			rate := (lo + hi) / 2

			it, err := b.iterate(iteration, rate, cfg.IterationDuration)
			if err != nil {
				return err
			}

			if !b.belowThreshold(it) {
				hi = rate

				continue
			}

			best = it
			if cfg.PDR-it.DropPercent <= cfg.PDRError {
				b.Results.Converged = true

				break
			}
			lo = rate
		}
	}

	if best == nil {
		return fmt.Errorf("no rate below pdr %.2f%% found within the search interval after %v iterations",
			cfg.PDR, len(b.Results.Iterations))
	}

	b.Results.recordNdr(best, b.lineRateBPS())

	if cfg.Latency {
		groups, err := b.client.LatencyStats([]int{LATENCY_PG_ID})
		if err != nil {
			return err
		}
		b.Results.Latency = groups
	}

	return nil
}

// belowThreshold reports whether an iteration stayed under both the
// drop target and the queue-full resolution. Queueing above the
// resolution means the device is past capability even without drops.
func (b *Bench) belowThreshold(it *IterationResult) bool {
	return it.DropPercent <= b.Config.PDR && it.QFullPercent <= b.Config.QFullResolution
}

// iterate transmits at ratePercent for duration seconds and collects
// the drop and queue statistics.
func (b *Bench) iterate(iteration int, ratePercent float64, duration float64) (*IterationResult, error) {
	cfg := b.Config

	if err := b.client.ClearStats(cfg.Ports); err != nil {
		return nil, err
	}

	if err := b.client.StartTraffic(cfg.TxPorts, ratePercent, duration); err != nil {
		return nil, err
	}

	timeout := time.Duration(duration+WAIT_SLACK_SEC) * time.Second
	if err := b.client.WaitOnTraffic(cfg.TxPorts, timeout); err != nil {
		// leave the ports quiet before giving up
		if stopErr := b.client.StopTraffic(cfg.TxPorts); stopErr != nil {
			Log.Errorf("Stop traffic failed. err = %v", stopErr)
		}

		return nil, err
	}

	var tx, rx, qfull, txBytes uint64

	for _, port := range cfg.TxPorts {
		stats, err := b.client.PortStats(port)
		if err != nil {
			return nil, err
		}

		tx += stats.TxPackets
		txBytes += stats.TxBytes
		qfull += stats.QueueFull
	}

	for _, port := range cfg.Ports {
		stats, err := b.client.PortStats(port)
		if err != nil {
			return nil, err
		}

		rx += stats.RxPackets
	}

	if tx == 0 {
		return nil, fmt.Errorf("iteration %v transmitted no packets at %.2f%%", iteration, ratePercent)
	}

	it := &IterationResult{
		Iteration:    iteration,
		RatePercent:  ratePercent,
		DurationSec:  duration,
		TxPackets:    tx,
		RxPackets:    rx,
		TxPPS:        float64(tx) / duration,
		TxBPS:        float64(txBytes) * 8 / duration,
		QFullPercent: 100 * float64(qfull) / float64(tx),
	}

	if rx < tx {
		it.DropPercent = 100 * float64(tx-rx) / float64(tx)
	}

	b.Results.Iterations = append(b.Results.Iterations, *it)

	if cfg.Verbose {
		printIteration(it)
	}

	return it, nil
}

// lineRateBPS sums the nominal rate of the transmitting ports.
func (b *Bench) lineRateBPS() float64 {
	var total float64
	for _, port := range b.Config.TxPorts {
		total += b.client.LineRateBPS(port)
	}

	return total
}
