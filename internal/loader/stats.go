package loader

// statsWindow is the number of recent operations the rolling stats keep.
const statsWindow = 100

// PerformanceStats is the per-resource-type observability summary.
type PerformanceStats struct {
	AvgLoadTimeMs float64 `json:"avg_load_time_ms"`
	SuccessRate   float64 `json:"success_rate"`
	TotalLoads    int     `json:"total_loads"`
}

// rollingStats keeps a fixed window of load outcomes per resource type.
// Not self-locking; the loader serializes access under its own mutex.
type rollingStats struct {
	loadTimes []float64
	successes []bool
	next      int
	size      int
	total     int
}

func newRollingStats(window int) *rollingStats {
	return &rollingStats{
		loadTimes: make([]float64, window),
		successes: make([]bool, window),
	}
}

func (s *rollingStats) record(loadTimeMs float64, success bool) {
	s.loadTimes[s.next] = loadTimeMs
	s.successes[s.next] = success
	s.next = (s.next + 1) % len(s.loadTimes)
	if s.size < len(s.loadTimes) {
		s.size++
	}
	s.total++
}

func (s *rollingStats) summary() PerformanceStats {
	if s.size == 0 {
		return PerformanceStats{}
	}
	var sum float64
	succeeded := 0
	for i := 0; i < s.size; i++ {
		sum += s.loadTimes[i]
		if s.successes[i] {
			succeeded++
		}
	}
	return PerformanceStats{
		AvgLoadTimeMs: sum / float64(s.size),
		SuccessRate:   float64(succeeded) / float64(s.size),
		TotalLoads:    s.total,
	}
}
