package config

const (
	DefaultHTTPPort        = uint(8080)
	DefaultCompilerCommand = "emcc"
	DefaultScratchDir      = "tmp/builds"
	DefaultArtifactsDir    = "builds"

	DefaultWorkers       = 4
	DefaultMaxConcurrent = 4
	DefaultMaxJobs       = 100
	DefaultMaxCompleted  = 20

	DefaultProcessTimeoutSeconds  = 120
	DefaultCompileTimeoutSeconds  = 300
	DefaultSweepIntervalSeconds   = 10
	DefaultCleanupIntervalSeconds = 60
)
