package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Address                   string
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		LoginRateLimit            int // attempts per LoginRateWindow, per client IP
		LoginRateWindow           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CatalogConfig struct {
		CoursesPath      string
		RandomSampleSize int
	}

	RecommenderConfig struct {
		RatingsPath  string
		ArtifactPath string
		SimilarUsers int
		DefaultTopN  int
		MaxTopN      int
		TrainOnStart bool
	}

	CacheConfig struct {
		RedisAddress  string // empty: in-memory cache
		RedisPassword string
		RedisDB       int
		TTL           time.Duration
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		WorkDir                   string
		DataDir                   string
		FrontendBaseURL           string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration
		Server                    ServerConfig
		Database                  DatabaseConfig
		Catalog                   CatalogConfig
		Recommender               RecommenderConfig
		Cache                     CacheConfig

		defaultFromEmail string
	}
)

func (dbConf DatabaseConfig) Address() string {
	return net.JoinHostPort(dbConf.Host, dbConf.Port)
}

// DefaultFromEmail parses the configured sender address; a bare address is accepted too.
func (conf *Config) DefaultFromEmail() mail.Address {
	if addr, err := mail.ParseAddress(conf.defaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

func NewConfig() *Config {
	conf := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	workDir := Getwd()

	// defaults
	conf.SetTypeByDefaultValue(true)
	conf.SetDefault("appName", "Coursemate")
	conf.SetDefault("build", "dev")
	conf.SetDefault("debug", env == "DEV" || env == "TEST")
	conf.SetDefault("testMode", env == "TEST")
	conf.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	conf.SetDefault("workDir", workDir)
	conf.SetDefault("dataDir", filepath.Join(workDir, "data"))
	conf.SetDefault("frontendBaseUrl", "http://localhost:3000")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridApiKey", "")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	conf.SetDefault("serverAddress", ":8000")
	conf.SetDefault("serverHost", "localhost")
	conf.SetDefault("serverDebugHost", "localhost:4000")
	conf.SetDefault("serverShutdownTimeout", 5*time.Second)
	conf.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	conf.SetDefault("loginRateLimit", 10)
	conf.SetDefault("loginRateWindow", time.Minute)

	conf.SetDefault("dbEngine", "postgres")
	conf.SetDefault("dbHost", "localhost")
	conf.SetDefault("dbPort", "5432")
	conf.SetDefault("dbName", "coursemate")
	conf.SetDefault("dbUser", "coursemate")
	conf.SetDefault("dbPassword", "coursemate")
	conf.SetDefault("dbAdminUser", "postgres")
	conf.SetDefault("dbAdminPassword", "postgres")
	conf.SetDefault("dbDisableTls", env == "DEV" || env == "TEST")

	conf.SetDefault("coursesPath", "")
	conf.SetDefault("randomSampleSize", 10)

	conf.SetDefault("ratingsPath", "")
	conf.SetDefault("artifactPath", "")
	conf.SetDefault("similarUsers", 5)
	conf.SetDefault("defaultTopN", 5)
	conf.SetDefault("maxTopN", 50)
	conf.SetDefault("trainOnStart", true)

	conf.SetDefault("redisAddress", "")
	conf.SetDefault("redisPassword", "")
	conf.SetDefault("redisDb", 0)
	conf.SetDefault("cacheTtl", 10*time.Minute)

	conf.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.AutomaticEnv()

	dataDir := conf.GetString("dataDir")
	orDataFile := func(key, fname string) string {
		if p := conf.GetString(key); p != "" {
			return p
		}
		return filepath.Join(dataDir, fname)
	}

	return &Config{
		AppName:                   conf.GetString("appName"),
		Env:                       env,
		Build:                     conf.GetString("build"),
		Debug:                     conf.GetBool("debug"),
		TestMode:                  conf.GetBool("testMode"),
		SecretKey:                 conf.GetString("secretKey"),
		WorkDir:                   conf.GetString("workDir"),
		DataDir:                   dataDir,
		FrontendBaseURL:           conf.GetString("frontendBaseUrl"),
		RollbarToken:              conf.GetString("rollbarToken"),
		SendgridApiKey:            conf.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: conf.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Address:                   conf.GetString("serverAddress"),
			Host:                      conf.GetString("serverHost"),
			DebugHost:                 conf.GetString("serverDebugHost"),
			ShutdownTimeout:           conf.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta:        conf.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("jwtRefreshExpirationDelta"),
			LoginRateLimit:            conf.GetInt("loginRateLimit"),
			LoginRateWindow:           conf.GetDuration("loginRateWindow"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("dbEngine"),
			Host:          conf.GetString("dbHost"),
			Port:          conf.GetString("dbPort"),
			Name:          conf.GetString("dbName"),
			User:          conf.GetString("dbUser"),
			Password:      conf.GetString("dbPassword"),
			AdminUser:     conf.GetString("dbAdminUser"),
			AdminPassword: conf.GetString("dbAdminPassword"),
			DisableTLS:    conf.GetBool("dbDisableTls"),
		},
		Catalog: CatalogConfig{
			CoursesPath:      orDataFile("coursesPath", "courses.csv"),
			RandomSampleSize: conf.GetInt("randomSampleSize"),
		},
		Recommender: RecommenderConfig{
			RatingsPath:  orDataFile("ratingsPath", "ratings.csv"),
			ArtifactPath: orDataFile("artifactPath", "similarity.json"),
			SimilarUsers: conf.GetInt("similarUsers"),
			DefaultTopN:  conf.GetInt("defaultTopN"),
			MaxTopN:      conf.GetInt("maxTopN"),
			TrainOnStart: conf.GetBool("trainOnStart"),
		},
		Cache: CacheConfig{
			RedisAddress:  conf.GetString("redisAddress"),
			RedisPassword: conf.GetString("redisPassword"),
			RedisDB:       conf.GetInt("redisDb"),
			TTL:           conf.GetDuration("cacheTtl"),
		},
		defaultFromEmail: conf.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: no dotenv lookups, fixed secrets and short timeouts.
func NewTestConfig(dataDir string) *Config {
	return &Config{
		AppName:                   "Coursemate",
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 "secret",
		WorkDir:                   Getwd(),
		DataDir:                   dataDir,
		FrontendBaseURL:           "http://localhost:3000",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			LoginRateLimit:            1000,
			LoginRateWindow:           time.Minute,
		},
		Catalog: CatalogConfig{
			CoursesPath:      filepath.Join(dataDir, "courses.csv"),
			RandomSampleSize: 10,
		},
		Recommender: RecommenderConfig{
			RatingsPath:  filepath.Join(dataDir, "ratings.csv"),
			ArtifactPath: filepath.Join(dataDir, "similarity.json"),
			SimilarUsers: 5,
			DefaultTopN:  5,
			MaxTopN:      50,
		},
		Cache:            CacheConfig{TTL: time.Minute},
		defaultFromEmail: "noreply@localhost",
	}
}

func (conf *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s, debug=%s)", conf.AppName, conf.Env, conf.Build, strconv.FormatBool(conf.Debug))
}
