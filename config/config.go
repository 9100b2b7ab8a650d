package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	WipBox   WipBoxConfig   `yaml:"wipbox"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port"`
	CheckpointRecordedTopicName string `yaml:"checkpoint_recorded_topic_name"`
	StatusExtractedTopicName    string `yaml:"status_extracted_topic_name"`
	WipSnapshotsTopicName       string `yaml:"wip_snapshots_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WipBoxConfig struct {
	GRPCAddr                string `yaml:"grpc_addr"`
	HTTPAddr                string `yaml:"http_addr"`
	KafkaConsumerGroup      string `yaml:"kafka_consumer_group"`
	SnapshotCacheTTLSeconds int    `yaml:"snapshot_cache_ttl_seconds"`

	// Реконструкция истории
	DaysBack              int      `yaml:"days_back"`
	SnapshotHours         []int    `yaml:"snapshot_hours"`
	UnitKinds             []string `yaml:"unit_kinds"`
	NoEventSentinelDays   int      `yaml:"no_event_sentinel_days"`
	PriorFlagSentinelDays int      `yaml:"prior_flag_sentinel_days"`
	ShipmentDayPolicy     string   `yaml:"shipment_day_policy"` // "extend-before-today" | "never" | "always-after-hour"

	// Builder. Если не задано, то сутки между прогонами и backoff 5/15/30/60 минут.
	BuilderHTTPAddr        string `yaml:"builder_http_addr"`
	BuilderIntervalSeconds int    `yaml:"builder_interval_seconds"`
	BuilderConcurrency     int    `yaml:"builder_concurrency"`
	BuilderPartitions      int    `yaml:"builder_partitions"`
	BuilderFlushSize       int    `yaml:"builder_flush_size"`
	BuilderBackoff1Seconds int    `yaml:"builder_backoff_1_seconds"`
	BuilderBackoff2Seconds int    `yaml:"builder_backoff_2_seconds"`
	BuilderBackoff3Seconds int    `yaml:"builder_backoff_3_seconds"`
	BuilderBackoff4Seconds int    `yaml:"builder_backoff_4_seconds"`

	SinkChunkSize int `yaml:"sink_chunk_size"`
	// FullRefresh is a pointer so an absent key keeps the default (true).
	FullRefresh   *bool `yaml:"full_refresh"`
	ExtractDays   int   `yaml:"extract_days"`
	RetentionDays int   `yaml:"retention_days"`

	CSVExportDir              string `yaml:"csv_export_dir"`
	TriggerRateLimitPerMinute int    `yaml:"trigger_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}

func (c DatabaseConfig) ConnString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username, c.Password, c.Host, c.Port, c.DBName, sslMode)
}
