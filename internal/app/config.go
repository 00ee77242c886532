package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/speech-to-contract/internal/platform/envutil"
	"github.com/yungbote/speech-to-contract/internal/platform/logger"
)

type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleAll    Role = "all"
)

func (r Role) ServesHTTP() bool  { return r == RoleAPI || r == RoleAll }
func (r Role) RunsWorkers() bool { return r == RoleWorker || r == RoleAll }

type Config struct {
	Role        Role
	Port        string
	ServiceName string

	JWTSecret      string
	AllowedOrigins []string

	AllowedAudioExtensions []string
	MaxUploadBytes         int64
	UploadChunkBytes       int

	BlobBackend  string
	LocalBlobDir string
	GCSBucket    string
	Minio        MinioEnv

	STTProvider     string
	STTLanguage     string
	STTSpeakerCount int

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	OpenAITranscribeModel string

	CollaboratorTimeout time.Duration
	QueueBackend        string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	NormalizeStopwords []string
}

type MinioEnv struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := Config{
		Role:        Role(strings.ToLower(envutil.String("APP_ROLE", string(RoleAll)))),
		Port:        envutil.String("PORT", "8080"),
		ServiceName: envutil.String("SERVICE_NAME", "speech-to-contract"),

		JWTSecret:      envutil.String("JWT_SECRET", ""),
		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS", nil),

		AllowedAudioExtensions: envutil.List("ALLOWED_AUDIO_EXTENSIONS", []string{".mp3", ".wav"}),
		MaxUploadBytes:         envutil.Int64("MAX_UPLOAD_SIZE_BYTES", 40<<20),
		UploadChunkBytes:       envutil.Int("UPLOAD_CHUNK_BYTES", 1<<20),

		BlobBackend:  strings.ToLower(envutil.String("BLOB_BACKEND", "local")),
		LocalBlobDir: envutil.String("LOCAL_BLOB_DIR", "uploads"),
		GCSBucket:    envutil.String("GCS_BUCKET", ""),
		Minio: MinioEnv{
			Endpoint:  envutil.String("MINIO_ENDPOINT", ""),
			AccessKey: envutil.String("MINIO_ACCESS_KEY", ""),
			SecretKey: envutil.String("MINIO_SECRET_KEY", ""),
			Bucket:    envutil.String("MINIO_BUCKET", ""),
			UseSSL:    envutil.Bool("MINIO_USE_SSL", false),
			Region:    envutil.String("MINIO_REGION", ""),
		},

		STTProvider:     strings.ToLower(envutil.String("STT_PROVIDER", "openai")),
		STTLanguage:     envutil.String("STT_LANGUAGE", "ko-KR"),
		STTSpeakerCount: envutil.Int("STT_SPEAKER_COUNT", 2),

		OpenAIAPIKey:          envutil.String("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         envutil.String("OPENAI_BASE_URL", ""),
		OpenAIModel:           envutil.String("OPENAI_MODEL", ""),
		OpenAITranscribeModel: envutil.String("OPENAI_TRANSCRIBE_MODEL", ""),

		CollaboratorTimeout: envutil.Duration("COLLABORATOR_TIMEOUT", 2*time.Minute),
		QueueBackend:        strings.ToLower(envutil.String("QUEUE_BACKEND", "db")),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		RedisChannel:  envutil.String("REDIS_STATUS_CHANNEL", "job_status"),

		NormalizeStopwords: envutil.List("NORMALIZE_STOPWORDS", nil),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	log.Info("Config loaded",
		"role", cfg.Role,
		"blob_backend", cfg.BlobBackend,
		"stt_provider", cfg.STTProvider,
		"queue_backend", cfg.QueueBackend,
		"max_upload_bytes", cfg.MaxUploadBytes,
	)
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Role {
	case RoleAPI, RoleWorker, RoleAll:
	default:
		return fmt.Errorf("invalid APP_ROLE=%q (allowed: api, worker, all)", c.Role)
	}
	switch c.QueueBackend {
	case "db", "temporal":
	default:
		return fmt.Errorf("invalid QUEUE_BACKEND=%q (allowed: db, temporal)", c.QueueBackend)
	}
	switch c.STTProvider {
	case "openai", "gcp":
	default:
		return fmt.Errorf("invalid STT_PROVIDER=%q (allowed: openai, gcp)", c.STTProvider)
	}
	if c.Role.ServesHTTP() && c.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET")
	}
	if c.Role.RunsWorkers() && c.OpenAIAPIKey == "" {
		return fmt.Errorf("missing OPENAI_API_KEY")
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT must be positive")
	}
	return nil
}
