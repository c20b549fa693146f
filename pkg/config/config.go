package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, for example "*:* -debug:processing.*"
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry (otlp grpc), "stdout" prints to console
	ResultsFile       string // path to race results export
	WeatherFile       string // path to weather schedule (yaml)
	ZonesFile         string // path to overtaking zones (yaml)
	TotalLaps         int    // laps of the simulated race
	RaceLaps          int    // race length used for fatigue and context summaries
	HistoryWindow     int    // pace history per car, 0 means unbounded
	Seed              int64  // seed for simulated values, 0 means random
	MaxCars           int    // number of result rows to simulate
	LapInterval       string // duration between two laps
	ServerAddr        string // listen addr for HTTP API
	NatsURL           string // if set, ticks are published to this NATS server
	NatsBucket        string // JetStream key-value bucket for latest ticks
	WaitForServices   string // duration to wait for other services to be ready
	LLMEndpoint       string // OpenAI compatible chat completion endpoint
	LLMModel          string // model name
	LLMAPIKey         string // bearer token for LLM endpoint
	LLMTimeout        string // timeout for a single completion
	InsightCacheTTL   string // how long generated insights are kept
)
