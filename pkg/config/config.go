package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Library   LibraryConfig
	Index     IndexConfig
	Milvus    MilvusConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	LLM       LLMConfig
	Safety    SafetyConfig
	Retrieval RetrievalConfig
	Ranking   RankingConfig
	Tutor     TutorConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

// LibraryConfig locates the book files the tutor can answer about.
type LibraryConfig struct {
	NovelsDir string
	MaxPages  int
}

type IndexConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type MilvusConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
}

type SafetyConfig struct {
	ToxicityThreshold float64
}

type RetrievalConfig struct {
	TopK int
}

type RankingConfig struct {
	// Strategy is "generative" or "similarity". One strategy is applied
	// for the whole process lifetime, never mixed per turn.
	Strategy          string
	TopN              int
	EvidenceThreshold float64
}

type TutorConfig struct {
	SummaryMaxChunks int
	PassageCharLimit int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/book-tutor")

	viper.SetEnvPrefix("BOOK_TUTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Ranking.Strategy != "generative" && config.Ranking.Strategy != "similarity" {
		return nil, fmt.Errorf("unknown ranking strategy %q", config.Ranking.Strategy)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("library.novelsDir", "./novels")
	viper.SetDefault("library.maxPages", 0)

	viper.SetDefault("index.chunkSize", 800)
	viper.SetDefault("index.chunkOverlap", 150)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "book_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("sqlite.path", "./data/tutor.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.4)
	viper.SetDefault("llm.maxTokens", 1024)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")

	viper.SetDefault("safety.toxicityThreshold", 0.5)

	viper.SetDefault("retrieval.topK", 20)

	viper.SetDefault("ranking.strategy", "generative")
	viper.SetDefault("ranking.topN", 3)
	viper.SetDefault("ranking.evidenceThreshold", 0.72)

	viper.SetDefault("tutor.summaryMaxChunks", 100)
	viper.SetDefault("tutor.passageCharLimit", 800)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
