package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	CKBRPCURL        string
	DBDriver         string
	DBDSN            string
	SQLitePath       string
	HTTPAddr         string
	RedisAddr        string
	OtelEndpoint     string
	StartBlock       uint64
	Confirmations    uint64
	BatchSize        uint64
	PollInterval     time.Duration
	KafkaBrokers     []string
	KafkaTopicPrefix string
	KafkaGroupID     string
	RelayHeaders     bool
	RelayCells       bool
	LogLevel         string
	LogFormat        string
	LogFile          string
	LogMaxSizeMB     int
	LogMaxBackups    int
}

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}

// Load reads the relay configuration. CKB_RPC_URL is optional here because
// only the relayer talks to the node; see RequireRPC.
func Load(source EnvSource) (Config, error) {
	if source == nil {
		return Config{}, errors.New("env source is required")
	}

	rpcURL, _ := source.Lookup("CKB_RPC_URL")
	rpcURL = strings.TrimSpace(rpcURL)

	startBlock, err := parseUintEnv(source, "START_BLOCK", 0)
	if err != nil {
		return Config{}, err
	}
	confirmations, err := parseUintEnv(source, "CONFIRMATIONS", 24)
	if err != nil {
		return Config{}, err
	}
	batchSize, err := parseUintEnv(source, "BATCH_SIZE", 20)
	if err != nil {
		return Config{}, err
	}
	if batchSize == 0 {
		return Config{}, errors.New("BATCH_SIZE must be positive")
	}

	pollInterval := 5 * time.Second
	if raw, ok := source.Lookup("POLL_INTERVAL"); ok && raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid POLL_INTERVAL: %w", err)
		}
		pollInterval = duration
	}

	driver := DriverMySQL
	if raw, ok := source.Lookup("DB_DRIVER"); ok && strings.TrimSpace(raw) != "" {
		driver = strings.ToLower(strings.TrimSpace(raw))
	}
	if driver != DriverMySQL && driver != DriverSQLite {
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q", driver)
	}

	dbDSN, ok := source.Lookup("DB_DSN")
	if !ok || strings.TrimSpace(dbDSN) == "" {
		dbDSN = "root:@tcp(127.0.0.1:3306)/ckbrelay?parseTime=true&multiStatements=true"
	}
	sqlitePath, ok := source.Lookup("SQLITE_PATH")
	if !ok || strings.TrimSpace(sqlitePath) == "" {
		sqlitePath = "data/ckbrelay.db"
	}

	httpAddr := ":8080"
	if raw, ok := source.Lookup("HTTP_ADDR"); ok && raw != "" {
		httpAddr = raw
	}

	redisAddr := "127.0.0.1:6379"
	if raw, ok := source.Lookup("REDIS_ADDR"); ok {
		redisAddr = strings.TrimSpace(raw)
	}

	otelEndpoint, _ := source.Lookup("OTEL_EXPORTER_OTLP_ENDPOINT")
	otelEndpoint = strings.TrimSpace(otelEndpoint)

	kafkaBrokers, err := parseList(source, "KAFKA_BROKERS", "localhost:9092")
	if err != nil {
		return Config{}, err
	}
	kafkaTopicPrefix, ok := source.Lookup("KAFKA_TOPIC_PREFIX")
	if !ok || kafkaTopicPrefix == "" {
		kafkaTopicPrefix = "ckbrelay-calls"
	}
	kafkaGroupID, ok := source.Lookup("KAFKA_GROUP_ID")
	if !ok || kafkaGroupID == "" {
		kafkaGroupID = "ckbrelay-audit"
	}

	relayHeaders, err := parseBoolEnv(source, "RELAY_HEADERS", true)
	if err != nil {
		return Config{}, err
	}
	relayCells, err := parseBoolEnv(source, "RELAY_CELLS", true)
	if err != nil {
		return Config{}, err
	}
	if !relayHeaders && !relayCells {
		return Config{}, errors.New("RELAY_HEADERS and RELAY_CELLS are both disabled")
	}

	logLevel, _ := source.Lookup("LOG_LEVEL")
	logFormat, _ := source.Lookup("LOG_FORMAT")
	logFile, _ := source.Lookup("LOG_FILE")
	logMaxSize, err := parseUintEnv(source, "LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return Config{}, err
	}
	logMaxBackups, err := parseUintEnv(source, "LOG_MAX_BACKUPS", 5)
	if err != nil {
		return Config{}, err
	}

	return Config{
		CKBRPCURL:        rpcURL,
		DBDriver:         driver,
		DBDSN:            dbDSN,
		SQLitePath:       sqlitePath,
		HTTPAddr:         httpAddr,
		RedisAddr:        redisAddr,
		OtelEndpoint:     otelEndpoint,
		StartBlock:       startBlock,
		Confirmations:    confirmations,
		BatchSize:        batchSize,
		PollInterval:     pollInterval,
		KafkaBrokers:     kafkaBrokers,
		KafkaTopicPrefix: kafkaTopicPrefix,
		KafkaGroupID:     kafkaGroupID,
		RelayHeaders:     relayHeaders,
		RelayCells:       relayCells,
		LogLevel:         strings.TrimSpace(logLevel),
		LogFormat:        strings.ToLower(strings.TrimSpace(logFormat)),
		LogFile:          strings.TrimSpace(logFile),
		LogMaxSizeMB:     int(logMaxSize),
		LogMaxBackups:    int(logMaxBackups),
	}, nil
}

func (c Config) RequireRPC() error {
	if c.CKBRPCURL == "" {
		return errors.New("CKB_RPC_URL is required")
	}
	return nil
}

func parseUintEnv(source EnvSource, key string, defaultValue uint64) (uint64, error) {
	raw, ok := source.Lookup(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseBoolEnv(source EnvSource, key string, defaultValue bool) (bool, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseList(source EnvSource, key string, defaultValue string) ([]string, error) {
	raw, ok := source.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		raw = defaultValue
	}
	items := strings.Split(raw, ",")
	var values []string
	for _, item := range items {
		value := strings.TrimSpace(item)
		if value == "" {
			continue
		}
		values = append(values, value)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s is required", key)
	}
	return values, nil
}
