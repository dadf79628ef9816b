// Package config loads drainer settings from an optional YAML file and
// DRAINER_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/spf13/viper"

	"github.com/baldanca/sqs-drainer/budget"
	"github.com/baldanca/sqs-drainer/dispatch"
	"github.com/baldanca/sqs-drainer/drainer"
	"github.com/baldanca/sqs-drainer/source"
)

const EnvPrefix = "DRAINER"

type Config struct {
	QueueURL string `mapstructure:"queue_url"`
	WorkerID string `mapstructure:"worker_id"`

	MaxEmptyPolls            int           `mapstructure:"max_empty_polls"`
	MaxConcurrentInvocations int           `mapstructure:"max_concurrent_invocations"`
	StopMargin               time.Duration `mapstructure:"stop_margin"`
	LogLevel                 string        `mapstructure:"log_level"`

	SQS    SQSConfig    `mapstructure:"sqs"`
	Invoke InvokeConfig `mapstructure:"invoke"`
	Report ReportConfig `mapstructure:"report"`
}

type SQSConfig struct {
	MaxMessages       int32         `mapstructure:"max_messages"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	WaitTime          time.Duration `mapstructure:"wait_time"`
}

type InvokeConfig struct {
	Type      string        `mapstructure:"type"`
	Qualifier string        `mapstructure:"qualifier"`
	Timeout   time.Duration `mapstructure:"timeout"` // 0 = no per-invocation timeout
	Retries   int           `mapstructure:"retries"` // total attempts
	Backoff   time.Duration `mapstructure:"backoff"`
}

// ReportConfig enables the S3 run report when Bucket is set.
type ReportConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue_url", "")
	v.SetDefault("worker_id", "")
	v.SetDefault("max_empty_polls", drainer.DefaultConfig.MaxEmptyPolls)
	v.SetDefault("max_concurrent_invocations", drainer.DefaultConfig.MaxConcurrentInvocations)
	v.SetDefault("stop_margin", budget.DefaultFloor)
	v.SetDefault("log_level", "info")

	v.SetDefault("sqs.max_messages", source.DefaultSQSConfig.MaxMessages)
	v.SetDefault("sqs.visibility_timeout", source.DefaultSQSConfig.VisibilityTimeout)
	v.SetDefault("sqs.wait_time", source.DefaultSQSConfig.WaitTime)

	v.SetDefault("invoke.type", string(lambdatypes.InvocationTypeRequestResponse))
	v.SetDefault("invoke.qualifier", "")
	v.SetDefault("invoke.timeout", time.Duration(0))
	v.SetDefault("invoke.retries", 1)
	v.SetDefault("invoke.backoff", 200*time.Millisecond)

	v.SetDefault("report.bucket", "")
	v.SetDefault("report.prefix", "")
}

// Load reads path (if not empty) and overlays DRAINER_* environment
// variables, e.g. DRAINER_QUEUE_URL or DRAINER_SQS_WAIT_TIME.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges only; QueueURL and WorkerID may still be supplied
// per run (e.g. by a Lambda event).
func (c *Config) Validate() error {
	if c.MaxEmptyPolls < 0 {
		return fmt.Errorf("max_empty_polls must be >= 0")
	}
	if c.MaxConcurrentInvocations < 1 {
		return fmt.Errorf("max_concurrent_invocations must be >= 1")
	}
	if c.StopMargin < 0 {
		return fmt.Errorf("stop_margin must be >= 0")
	}
	if c.SQS.MaxMessages < 1 || c.SQS.MaxMessages > 10 {
		return fmt.Errorf("sqs.max_messages must be between 1 and 10")
	}
	if c.SQS.WaitTime < 0 || c.SQS.WaitTime > 20*time.Second {
		return fmt.Errorf("sqs.wait_time must be between 0s and 20s")
	}
	if c.SQS.VisibilityTimeout < 0 {
		return fmt.Errorf("sqs.visibility_timeout must be >= 0")
	}
	switch lambdatypes.InvocationType(c.Invoke.Type) {
	case lambdatypes.InvocationTypeRequestResponse, lambdatypes.InvocationTypeEvent, lambdatypes.InvocationTypeDryRun:
	default:
		return fmt.Errorf("invoke.type %q is not a lambda invocation type", c.Invoke.Type)
	}
	if c.Invoke.Timeout < 0 {
		return fmt.Errorf("invoke.timeout must be >= 0")
	}
	if c.Invoke.Retries < 1 {
		return fmt.Errorf("invoke.retries must be >= 1")
	}
	return nil
}

func (c *Config) Drainer() drainer.Config {
	return drainer.Config{
		MaxEmptyPolls:            c.MaxEmptyPolls,
		MaxConcurrentInvocations: c.MaxConcurrentInvocations,
	}
}

func (c *Config) SQSReceiver() source.SQSConfig {
	return source.SQSConfig{
		MaxMessages:       c.SQS.MaxMessages,
		VisibilityTimeout: c.SQS.VisibilityTimeout,
		WaitTime:          c.SQS.WaitTime,
	}
}

func (c *Config) Lambda() dispatch.LambdaConfig {
	return dispatch.LambdaConfig{
		InvocationType: lambdatypes.InvocationType(c.Invoke.Type),
		Qualifier:      c.Invoke.Qualifier,
	}
}

// DispatchOptions translates the invoke section into dispatcher options.
func (c *Config) DispatchOptions() []dispatch.Option {
	var opts []dispatch.Option
	if c.Invoke.Timeout > 0 {
		opts = append(opts, dispatch.WithTimeout(c.Invoke.Timeout))
	}
	if c.Invoke.Retries > 1 {
		opts = append(opts, dispatch.WithRetry(dispatch.SimpleRetry{
			Attempts:  c.Invoke.Retries,
			BaseDelay: c.Invoke.Backoff,
			Jitter:    true,
		}))
	}
	return opts
}
