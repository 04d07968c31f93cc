package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации шлюза.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	ENS      ENSConfig      `mapstructure:"ens"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Prover   ProverConfig   `mapstructure:"prover"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsConfig: отдельный листенер для Prometheus.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig описывает подключение к PostgreSQL (журнал доказательств).
// Пустой URL отключает аудит в БД.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает L2-кэш политик и канал инвалидации. Пустой Addr отключает Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig: проверка RS256 токенов агентов. Без ключа API открыт.
type AuthConfig struct {
	PublicKeyPath string        `mapstructure:"public_key_path"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
	PublicKey     []byte
}

// ENSConfig: доступ к Ethereum RPC и параметры устойчивости резолвинга.
type ENSConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	RegistryAddress string        `mapstructure:"registry_address"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateBurst       int           `mapstructure:"rate_burst"`

	// Настройки Circuit Breaker для RPC
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// PolicyConfig: ключи текстовых записей и TTL кэша.
type PolicyConfig struct {
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	MaxSpendKey       string        `mapstructure:"max_spend_key"`
	AllowedActionsKey string        `mapstructure:"allowed_actions_key"`
	VersionKey        string        `mapstructure:"version_key"`

	// Warmup: имена, которые резолвятся при старте
	Warmup []string `mapstructure:"warmup"`
}

// ProverConfig: пути к артефактам trusted setup.
type ProverConfig struct {
	CircuitPath      string `mapstructure:"circuit_path"`
	ProvingKeyPath   string `mapstructure:"proving_key_path"`
	VerifyingKeyPath string `mapstructure:"verifying_key_path"`

	// Strict запрещает откат на mock-доказательства (prod).
	Strict      bool `mapstructure:"strict"`
	Concurrency int  `mapstructure:"concurrency"`
}

// ExecutorConfig: симулятор платежного провайдера и обертка устойчивости вокруг него.
type ExecutorConfig struct {
	MinLatency   time.Duration `mapstructure:"min_latency"`
	MaxLatency   time.Duration `mapstructure:"max_latency"`
	ThrottleRate float64       `mapstructure:"throttle_rate"`
	RetryAfter   time.Duration `mapstructure:"retry_after"`

	CallTimeout   time.Duration `mapstructure:"call_timeout"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// AuditConfig: буфер и пачки журнала
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path может быть пустым: тогда ищем config.yaml в . и ./configs.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// PROVER_STRICT=true перекроет prover.strict
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second) // Prove может занять секунды
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "zkgate")
	v.SetDefault("auth.audience", "zkspend-gateway")
	v.SetDefault("auth.leeway", 30*time.Second)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("ens.rpc_url", "https://cloudflare-eth.com")
	v.SetDefault("ens.registry_address", "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	v.SetDefault("ens.call_timeout", 10*time.Second)
	v.SetDefault("ens.retry_attempts", 3)
	v.SetDefault("ens.retry_delay", 200*time.Millisecond)
	v.SetDefault("ens.rate_limit", 20.0)
	v.SetDefault("ens.rate_burst", 10)
	v.SetDefault("ens.cb_max_requests", 3)
	v.SetDefault("ens.cb_interval", 5*time.Second)
	v.SetDefault("ens.cb_timeout", 30*time.Second)

	v.SetDefault("policy.cache_ttl", 5*time.Minute)
	v.SetDefault("policy.max_spend_key", "agent.maxSpend")
	v.SetDefault("policy.allowed_actions_key", "agent.allowedActions")
	v.SetDefault("policy.version_key", "agent.policyVersion")
	v.SetDefault("policy.warmup", []string{})

	v.SetDefault("prover.circuit_path", "./build/circuit.r1cs")
	v.SetDefault("prover.proving_key_path", "./build/proving.key")
	v.SetDefault("prover.verifying_key_path", "./build/verification.key")
	v.SetDefault("prover.strict", false) // ключ должен быть известен viper, иначе PROVER_STRICT не подхватится
	v.SetDefault("prover.concurrency", 2)

	v.SetDefault("executor.min_latency", 50*time.Millisecond)
	v.SetDefault("executor.max_latency", 200*time.Millisecond)
	v.SetDefault("executor.throttle_rate", 0.0)
	v.SetDefault("executor.retry_after", 100*time.Millisecond)
	v.SetDefault("executor.call_timeout", 10*time.Second)
	v.SetDefault("executor.retry_attempts", 3)
	v.SetDefault("executor.rate_limit", 100.0)
	v.SetDefault("executor.rate_burst", 20)
	v.SetDefault("executor.cb_max_requests", 3)
	v.SetDefault("executor.cb_interval", 5*time.Second)
	v.SetDefault("executor.cb_timeout", 30*time.Second)

	v.SetDefault("audit.buffer_size", 10000)
	v.SetDefault("audit.batch_size", 100)
	v.SetDefault("audit.flush_interval", 500*time.Millisecond)
}

// loadKeyResource: ключ либо прямо из ENV (Docker/K8s), либо из файла
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
