package temporalx

import (
	"time"

	"github.com/yungbote/speech-to-contract/internal/platform/envutil"
)

type Config struct {
	Address   string
	Namespace string
	TaskQueue string

	ClientCertPath string
	ClientKeyPath  string
	ClientCAPath   string

	AutoRegisterNamespace bool
	RetentionDays         int

	DialTimeout time.Duration
	DialMaxWait time.Duration
	Backoff     time.Duration
	BackoffMax  time.Duration
}

func LoadConfig() Config {
	return Config{
		Address:   envutil.String("TEMPORAL_ADDRESS", ""),
		Namespace: envutil.String("TEMPORAL_NAMESPACE", "speech-to-contract"),
		TaskQueue: envutil.String("TEMPORAL_TASK_QUEUE", "speech-to-contract"),

		ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
		ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
		ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),

		AutoRegisterNamespace: envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false),
		RetentionDays:         envutil.Int("TEMPORAL_NAMESPACE_RETENTION_DAYS", 7),

		DialTimeout: envutil.Duration("TEMPORAL_DIAL_TIMEOUT", 5*time.Second),
		DialMaxWait: envutil.Duration("TEMPORAL_DIAL_MAX_WAIT", 60*time.Second),
		Backoff:     envutil.Duration("TEMPORAL_DIAL_BACKOFF", 250*time.Millisecond),
		BackoffMax:  envutil.Duration("TEMPORAL_DIAL_BACKOFF_MAX", 5*time.Second),
	}
}

// Enabled reports whether a Temporal address is configured. Without one the
// database polling worker delivers messages.
func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) TLSEnabled() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}
