package models

// Metrics are process-lifetime counters, reset only on restart.
type Metrics struct {
	TotalEnqueued  int64   `json:"totalEnqueued"`
	TotalCompleted int64   `json:"totalCompleted"`
	TotalFailed    int64   `json:"totalFailed"`
	TotalCancelled int64   `json:"totalCancelled"`
	TotalTimeout   int64   `json:"totalTimeout"`
	AvgBuildMillis float64 `json:"avgBuildMillis"`
}

// QueueStats is a point-in-time snapshot of the build queue.
type QueueStats struct {
	Pending       int     `json:"pending"`
	Processing    int     `json:"processing"`
	MaxConcurrent int     `json:"maxConcurrent"`
	StoredJobs    int     `json:"storedJobs"`
	Metrics       Metrics `json:"metrics"`
}

// PoolStats combines worker slot usage with the queue snapshot.
type PoolStats struct {
	BusyWorkers int        `json:"busyWorkers"`
	IdleWorkers int        `json:"idleWorkers"`
	Queue       QueueStats `json:"queue"`
}
