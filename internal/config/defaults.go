package config

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			PIDFile: "",
			// Script runs dominate request latency, so the write timeout
			// must outlast scripts.timeout_sec.
			ReadTimeoutSec:  10,
			WriteTimeoutSec: 330,
			MaxBodyBytes:    8 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 20,
				Burst:             40,
			},
		},
		Auth: AuthConfig{
			Enabled:  false,
			User:     "",
			Password: "",
		},
		Scripts: ScriptsConfig{
			Dir:              "",
			Interpreter:      "python",
			TrainScript:      "TrainingModule.py",
			// Older script bundles ship this as PredictionResults.py; point
			// predict_script there when deploying one of them.
			PredictScript:    "PredictionModule.py",
			TimeoutSec:       300,
			MaxConcurrent:    4,
			Selection:        SelectionLastLine,
			ValidateOutput:   true,
			SampleIntervalMS: 500,
		},
		Persistence: PersistenceConfig{
			Enabled:          true,
			DataDir:          "/var/lib/agupredict",
			FlushIntervalSec: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
