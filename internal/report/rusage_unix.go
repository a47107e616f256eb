//go:build unix

package report

import "syscall"

// resourceUsage samples RUSAGE_SELF, mirroring get_cpu_time/
// get_memory_usage in the original C benchmark.c.
func resourceUsage() (cpuSeconds float64, peakRSSKiB int64) {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0, 0
	}
	cpuSeconds = float64(ru.Utime.Sec) + float64(ru.Utime.Usec)/1e6
	peakRSSKiB = int64(ru.Maxrss)
	return cpuSeconds, peakRSSKiB
}
