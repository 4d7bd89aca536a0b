package server

import (
	"net/http"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// JobLister reports scheduled job status.
type JobLister interface {
	Status() []scheduler.JobStatus
}

// ViewReporter reports how many live views hold the rate cache open.
type ViewReporter interface {
	ActiveViews() int
}

// DBInfo describes one database file.
type DBInfo struct {
	Name        string  `json:"name"`
	SizeMB      float64 `json:"size_mb"`
	WALSizeMB   float64 `json:"wal_size_mb"`
	PageCount   int64   `json:"page_count"`
	HealthError string  `json:"health_error,omitempty"`
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status          string                `json:"status"`
	Uptime          string                `json:"uptime"`
	CPUPercent      float64               `json:"cpu_percent"`
	MemoryPercent   float64               `json:"memory_percent"`
	DiskPercent     float64               `json:"disk_percent"`
	DiskFreeMB      uint64                `json:"disk_free_mb"`
	Databases       []DBInfo              `json:"databases"`
	Jobs            []scheduler.JobStatus `json:"jobs"`
	ActiveRateViews int                   `json:"active_rate_views"`
	LastChecked     string                `json:"last_checked"`
}

// SystemHandlers serves system monitoring endpoints.
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   []*database.DB
	jobs        JobLister
	views       ViewReporter

	cpuPercent func() (float64, error)
	memPercent func() (float64, error)
	diskUsage  func(path string) (*disk.UsageStat, error)
}

// NewSystemHandlers creates the system handlers. jobs and views may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, jobs JobLister, views ViewReporter) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		jobs:        jobs,
		views:       views,
		cpuPercent:  sampleCPU,
		memPercent:  sampleMemory,
		diskUsage:   disk.Usage,
	}
}

// HandleSystemStatus handles GET /api/system/status. A host metric that
// cannot be read is reported as zero; a failing database marks the status
// degraded.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := SystemStatusResponse{
		Status:      "healthy",
		Uptime:      time.Since(h.startupTime).Round(time.Second).String(),
		Databases:   []DBInfo{},
		Jobs:        []scheduler.JobStatus{},
		LastChecked: time.Now().Format(time.RFC3339),
	}

	if v, err := h.cpuPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
	} else {
		resp.CPUPercent = v
	}
	if v, err := h.memPercent(); err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
	} else {
		resp.MemoryPercent = v
	}
	if usage, err := h.diskUsage(h.dataDir); err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
	} else {
		resp.DiskPercent = usage.UsedPercent
		resp.DiskFreeMB = usage.Free / 1024 / 1024
	}

	for _, db := range h.databases {
		info := DBInfo{Name: db.Name()}
		if stats, err := db.GetStats(); err == nil {
			info.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			info.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			info.PageCount = stats.PageCount
		}
		if err := db.HealthCheck(r.Context()); err != nil {
			info.HealthError = err.Error()
			resp.Status = "degraded"
		}
		resp.Databases = append(resp.Databases, info)
	}

	if h.jobs != nil {
		resp.Jobs = h.jobs.Status()
	}
	if h.views != nil {
		resp.ActiveRateViews = h.views.ActiveViews()
	}

	writeJSON(w, http.StatusOK, resp, h.log)
}

// HandleJobsStatus handles GET /api/system/jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobStatus{}
	if h.jobs != nil {
		jobs = h.jobs.Status()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": jobs}, h.log)
}

// sampleCPU averages usage across all CPUs over a short window.
func sampleCPU() (float64, error) {
	percent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, nil
	}
	return percent[0], nil
}

func sampleMemory() (float64, error) {
	stat, err := mem.VirtualMemory()
	if err != nil {
		return 0, err
	}
	return stat.UsedPercent, nil
}
