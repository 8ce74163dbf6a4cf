package resource

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
)

// Sampler reads free system memory. Implementations should be cheap
// enough to call on every resource check.
type Sampler interface {
	// FreeGB returns currently available RAM in gigabytes.
	FreeGB() (float64, error)
}

// FallbackFreeGB is assumed when the OS query fails. It sits at the
// low/moderate boundary so a broken sampler degrades to conservative
// behavior instead of refusing everything.
const FallbackFreeGB = 1.5

// StaticSampler returns a fixed reading. Used in tests and for
// dependency injection.
type StaticSampler struct {
	Free float64
	Err  error
}

func (s StaticSampler) FreeGB() (float64, error) {
	return s.Free, s.Err
}

// NewOSSampler returns a sampler for the current platform.
// Linux reads /proc/meminfo; darwin shells out to vm_stat and sysctl.
// Other platforms always fail, which callers treat as FallbackFreeGB.
func NewOSSampler() Sampler {
	return osSampler{goos: runtime.GOOS}
}

type osSampler struct {
	goos string
}

func (s osSampler) FreeGB() (float64, error) {
	switch s.goos {
	case "linux":
		data, err := os.ReadFile("/proc/meminfo")
		if err != nil {
			return 0, fmt.Errorf("read meminfo: %w", err)
		}
		return parseMeminfoFreeGB(string(data))
	case "darwin":
		vmstat, err := exec.Command("vm_stat").Output()
		if err != nil {
			return 0, fmt.Errorf("vm_stat: %w", err)
		}
		pagesize, err := exec.Command("sysctl", "-n", "hw.pagesize").Output()
		if err != nil {
			return 0, fmt.Errorf("sysctl hw.pagesize: %w", err)
		}
		return parseVMStatFreeGB(string(vmstat), strings.TrimSpace(string(pagesize)))
	default:
		return 0, fmt.Errorf("unsupported platform: %s", s.goos)
	}
}

// parseMeminfoFreeGB extracts MemAvailable from /proc/meminfo output.
func parseMeminfoFreeGB(meminfo string) (float64, error) {
	for _, line := range strings.Split(meminfo, "\n") {
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse MemAvailable: %w", err)
		}
		return kb / (1024 * 1024), nil
	}
	return 0, fmt.Errorf("MemAvailable not found in meminfo")
}

var vmStatPageRe = regexp.MustCompile(`Pages (free|inactive|speculative):\s+(\d+)\.`)

// parseVMStatFreeGB sums free, inactive and speculative pages from
// vm_stat output. Inactive pages are reclaimable on macOS and count as
// available for model loading.
func parseVMStatFreeGB(vmstat, pagesizeStr string) (float64, error) {
	pagesize, err := strconv.ParseFloat(pagesizeStr, 64)
	if err != nil || pagesize <= 0 {
		return 0, fmt.Errorf("parse pagesize %q", pagesizeStr)
	}

	matches := vmStatPageRe.FindAllStringSubmatch(vmstat, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("no page counters in vm_stat output")
	}

	var pages float64
	for _, m := range matches {
		n, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		pages += n
	}
	return pages * pagesize / (1024 * 1024 * 1024), nil
}
