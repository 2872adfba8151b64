package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	MinIOBucket string         `yaml:"minio_bucket"`
	App         App            `yaml:"app"`
	DB          *sql.DB        `yaml:"db"`
	Queue       *RabbitMQ      `yaml:"rabbitmq"`
	Storage     *minio.Client  `yaml:"storage"`
	StorageMode string         `yaml:"storage_mode"`
	Redis       *redis.Client  `yaml:"redis"`
	Server      Server         `yaml:"server"`
	Speech      Speech         `yaml:"speech"`
	Summarizer  Summarizer     `yaml:"summarizer"`
	Auth        Auth           `yaml:"auth"`
	Pipeline    Pipeline       `yaml:"pipeline"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type RabbitMQ struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Pass         string `json:"pass"`
	ExchangeName string `json:"exchange_name"`
	Kind         string `json:"kind"`
}

type Speech struct {
	URL              string        `yaml:"url"`
	APIKey           string        `yaml:"api_key"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	SpeakerRoles     []string      `yaml:"speaker_roles"`
	PhraseHints      []string      `yaml:"phrase_hints"`
}

type Summarizer struct {
	URL      string   `yaml:"url"`
	APIKey   string   `yaml:"api_key"`
	Model    string   `yaml:"model"`
	Sections []string `yaml:"sections"`
}

type Auth struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
	RevokeURL    string `yaml:"revoke_url"`
	UserInfoURL  string `yaml:"user_info_url"`
}

type Pipeline struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	ResultsTTL   time.Duration `yaml:"results_ttl"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	LockWait     time.Duration `yaml:"lock_wait"`
	FFmpegBinary string        `yaml:"ffmpeg_binary"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host: viper.GetString("rabbitmq_host"),
		Port: viper.GetInt("rabbitmq_port"),
		User: viper.GetString("rabbitmq_user"),
		Pass: viper.GetString("rabbitmq_pass"),
		Kind: viper.GetString("rabbitmq_kind"),
	}

	minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
		Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	})

	viper.SetDefault("speech.operation_timeout", "10m")
	viper.SetDefault("speech.poll_interval", "3s")
	viper.SetDefault("speech.speaker_roles", []string{"Doctor", "Patient"})
	viper.SetDefault("summarizer.sections", []string{
		"Chief Complaint", "History", "Medications", "Assessment", "Plan",
	})
	viper.SetDefault("storage.mode", "folder")
	viper.SetDefault("pipeline.max_attempts", 3)
	viper.SetDefault("pipeline.results_ttl", "1h")
	viper.SetDefault("pipeline.lock_ttl", "30s")
	viper.SetDefault("pipeline.lock_wait", "5s")
	viper.SetDefault("pipeline.ffmpeg_binary", "ffmpeg")

	return &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Speech: Speech{
			URL:              viper.GetString("speech.url"),
			APIKey:           viper.GetString("speech.api_key"),
			OperationTimeout: viper.GetDuration("speech.operation_timeout"),
			PollInterval:     viper.GetDuration("speech.poll_interval"),
			SpeakerRoles:     viper.GetStringSlice("speech.speaker_roles"),
			// Empty means the built-in medical phrase list.
			PhraseHints: viper.GetStringSlice("speech.phrase_hints"),
		},
		Summarizer: Summarizer{
			URL:      viper.GetString("summarizer.url"),
			APIKey:   viper.GetString("summarizer.api_key"),
			Model:    viper.GetString("summarizer.model"),
			Sections: viper.GetStringSlice("summarizer.sections"),
		},
		Auth: Auth{
			ClientID:     viper.GetString("auth.client_id"),
			ClientSecret: viper.GetString("auth.client_secret"),
			TokenURL:     viper.GetString("auth.token_url"),
			RevokeURL:    viper.GetString("auth.revoke_url"),
			UserInfoURL:  viper.GetString("auth.user_info_url"),
		},
		Pipeline: Pipeline{
			MaxAttempts:  viper.GetInt("pipeline.max_attempts"),
			ResultsTTL:   viper.GetDuration("pipeline.results_ttl"),
			LockTTL:      viper.GetDuration("pipeline.lock_ttl"),
			LockWait:     viper.GetDuration("pipeline.lock_wait"),
			FFmpegBinary: viper.GetString("pipeline.ffmpeg_binary"),
		},
		StorageMode: viper.GetString("storage.mode"),
		DB:          db,
		Queue:       rabbitmq,
		Storage:     minioClient,
		Redis:       redisClient,
	}, nil
}
