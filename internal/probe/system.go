package probe

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/rcavanagh/sitesentry/internal/snapshot"
)

const (
	diskCriticalPct = 95.0
	diskWarningPct  = 85.0
)

// checkDisk reports free/total space on the application's storage volume.
func (p *Prober) checkDisk() snapshot.CheckResult {
	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}

	usage, err := disk.Usage(wd)
	if err != nil {
		return snapshot.CheckResult{Status: snapshot.StatusUnknown, Error: err.Error()}
	}

	result := snapshot.CheckResult{
		Status:  snapshot.StatusOK,
		FreeMB:  int64(usage.Free / (1024 * 1024)),
		TotalMB: int64(usage.Total / (1024 * 1024)),
		UsedPct: usage.UsedPercent,
	}
	switch {
	case usage.UsedPercent > diskCriticalPct:
		result.Status = snapshot.StatusCritical
	case usage.UsedPercent > diskWarningPct:
		result.Status = snapshot.StatusWarning
	}
	return result
}

// checkMemory reports current/peak process memory. Always ok: informational
// only, never alone a trigger for verdicts.
func (p *Prober) checkMemory() snapshot.CheckResult {
	result := snapshot.CheckResult{Status: snapshot.StatusOK}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	result.MemCurrent = ms.Alloc
	result.MemPeak = ms.TotalAlloc
	result.MemLimit = "unlimited"

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			result.MemCurrent = mi.RSS
		}
	}

	return result
}

// checkDatabase issues a trivial round-trip query against the kv store's
// database and records latency, table count and aggregate size.
func (p *Prober) checkDatabase() snapshot.CheckResult {
	if p.kv == nil {
		return snapshot.CheckResult{Status: snapshot.StatusUnknown}
	}

	stats, err := p.kv.Ping()
	if err != nil {
		return snapshot.CheckResult{Status: snapshot.StatusError, Error: err.Error()}
	}

	return snapshot.CheckResult{
		Status:     snapshot.StatusOK,
		ResponseMS: stats.LatencyMS,
		TableCount: stats.TableCount,
		SizeMB:     stats.SizeMB,
	}
}
