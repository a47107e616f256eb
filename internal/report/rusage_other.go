//go:build !unix

package report

// resourceUsage has no portable peak-RSS source outside unix; callers
// get a zeroed sample and fall back to wall-clock timing alone.
func resourceUsage() (cpuSeconds float64, peakRSSKiB int64) {
	return 0, 0
}
