package report

// BenchmarkSample is one algorithm/level's measured cost, matching the
// CPU time + peak RSS fields the C original's benchmark.c collects via
// getrusage.
type BenchmarkSample struct {
	Report      Report
	CPUTime     float64 // seconds
	PeakRSSKiB  int64
}

// Benchmarker measures CPU time and peak RSS around a compression call.
// The unix build samples real getrusage(2) values; other platforms get
// zeroed resource fields (CPUTime == 0, PeakRSSKiB == 0) and only the
// Report's wall-clock time.
type Benchmarker struct{}

func NewBenchmarker() *Benchmarker { return &Benchmarker{} }

// Measure runs fn (expected to perform one full compression) and returns
// a sample combining its Report with the user CPU time spent during fn
// and the process's peak RSS as sampled after fn returns.
func (bm *Benchmarker) Measure(fn func() (Report, error)) (BenchmarkSample, error) {
	startCPU, startRSS := resourceUsage()
	rep, err := fn()
	if err != nil {
		return BenchmarkSample{}, err
	}
	endCPU, endRSS := resourceUsage()

	sample := BenchmarkSample{
		Report:     rep,
		CPUTime:    endCPU - startCPU,
		PeakRSSKiB: endRSS,
	}
	if sample.CPUTime < 0 {
		sample.CPUTime = 0
	}
	_ = startRSS
	return sample, nil
}
