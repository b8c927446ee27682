package config

// Tree defaults.
const (
	DefaultTreeCheckGeneration      = true
	DefaultTreeHibernationThreshold = 1000
)

// Workload defaults.
const (
	DefaultWorkloadSize        = 100_000
	DefaultWorkloadSeed        = 1
	DefaultWorkloadRemoveRatio = 0.3
	DefaultWorkloadVerifyEvery = 0
	DefaultWorkloadRegionSize  = "4KiB"
)

// Logging defaults.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)

// Metrics defaults.
const (
	DefaultMetricsAddr         = ""
	DefaultMetricsOTLPEndpoint = ""
	DefaultMetricsOTLPInsecure = false
	DefaultMetricsSampleRatio  = 1.0
)

// Soak defaults.
const (
	DefaultSoakDuration     = "1m"
	DefaultSoakReportPeriod = "10s"
)
