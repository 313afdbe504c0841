// Package spec holds the YAML shape of a pipeline file.
package spec

type StdoutSinkSpec struct {
	PrintCounter bool `yaml:"print_counter"`
	AckBatchSize int  `yaml:"ack_batch_size"`
	AckFlushMS   int  `yaml:"ack_flush_ms"`
}

type KafkaSinkSpec struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	RequiredAcks int16    `yaml:"required_acks"` // 0,1,-1
	Version      string   `yaml:"version"`
}

type FileSinkSpec struct {
	Path      string `yaml:"path"`
	Compress  string `yaml:"compress"`   // "" or "zstd"
	BatchSize int    `yaml:"batch_size"` // events per flush and ack
}

type sinkConfigs struct {
	Stdout StdoutSinkSpec `yaml:"stdout"`
	Kafka  KafkaSinkSpec  `yaml:"kafka"`
	File   FileSinkSpec   `yaml:"file"`
}

type debugSection struct {
	PerEventDelayMS int `yaml:"per_event_delay_ms"`
}

type TransformerSpec struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`    // "inproc" or "grpc"
	Address string `yaml:"address"` // grpc only, e.g. "localhost:50051"
	// Config points at a filter config file (inproc only). Mode, when set,
	// overrides the mode from that file.
	Config      string `yaml:"config"`
	Mode        string `yaml:"mode"`
	TimeoutMS   int    `yaml:"timeout_ms"`
	RetryPolicy struct {
		Attempts  int `yaml:"attempts"`
		BackoffMS int `yaml:"backoff_ms"`
	} `yaml:"retry_policy"`
}

type File struct {
	SchemaVersion string `yaml:"schema_version"`

	Source struct {
		Kind   string `yaml:"kind"`   // "kafka" or "stdin"
		Driver string `yaml:"driver"` // kafka only
		Config string `yaml:"config"`
	} `yaml:"source"`

	// Ordered list of transform stages applied between source and sinks.
	Transformers []TransformerSpec `yaml:"transformers"`

	Sinks       []string     `yaml:"sinks"`
	SinkConfigs sinkConfigs  `yaml:"sink_configs"`
	Debug       debugSection `yaml:"debug"`
}
