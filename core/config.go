package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		DisableReqLogs  bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver    string // memory | s3
		Bucket    string
		Region    string
		Endpoint  string
		AccessKey string
		SecretKey string
	}

	CacheConfig struct {
		AcademicTTL      time.Duration
		StudentListTTL   time.Duration
		StudentDetailTTL time.Duration
		VerificationTTL  time.Duration
		AuditTTL         time.Duration
		DocumentTTL      time.Duration
		StaleFraction    float64
		RefreshWorkers   int
		RefreshQueueSize int
		SweepSchedule    string
	}

	ImportConfig struct {
		UploadConcurrency int
		MaxUploadSize     int64
		MaxZipEntrySize   int64
	}

	Config struct {
		Env          string
		Build        string
		AppName      string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig
		Storage      StorageConfig
		Cache        CacheConfig
		Import       ImportConfig
	}
)

func (db DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", db.Host, db.Port)
}

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		AppName:      v.GetString("appName"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      workDir,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Address:         v.GetString("server.address"),
			DebugHost:       v.GetString("server.debugHost"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:  v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Storage: StorageConfig{
			Driver:    v.GetString("storage.driver"),
			Bucket:    v.GetString("storage.bucket"),
			Region:    v.GetString("storage.region"),
			Endpoint:  v.GetString("storage.endpoint"),
			AccessKey: v.GetString("storage.accessKey"),
			SecretKey: v.GetString("storage.secretKey"),
		},
		Cache: CacheConfig{
			AcademicTTL:      v.GetDuration("cache.academicTTL"),
			StudentListTTL:   v.GetDuration("cache.studentListTTL"),
			StudentDetailTTL: v.GetDuration("cache.studentDetailTTL"),
			VerificationTTL:  v.GetDuration("cache.verificationTTL"),
			AuditTTL:         v.GetDuration("cache.auditTTL"),
			DocumentTTL:      v.GetDuration("cache.documentTTL"),
			StaleFraction:    v.GetFloat64("cache.staleFraction"),
			RefreshWorkers:   v.GetInt("cache.refreshWorkers"),
			RefreshQueueSize: v.GetInt("cache.refreshQueueSize"),
			SweepSchedule:    v.GetString("cache.sweepSchedule"),
		},
		Import: ImportConfig{
			UploadConcurrency: v.GetInt("import.uploadConcurrency"),
			MaxUploadSize:     v.GetInt64("import.maxUploadSize"),
			MaxZipEntrySize:   v.GetInt64("import.maxZipEntrySize"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Registrar")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "registrar")
	v.SetDefault("database.user", "registrar")
	v.SetDefault("database.password", "registrar")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.bucket", "registrar-documents")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accessKey", "")
	v.SetDefault("storage.secretKey", "")

	v.SetDefault("cache.academicTTL", 15*time.Minute)
	v.SetDefault("cache.studentListTTL", 2*time.Minute)
	v.SetDefault("cache.studentDetailTTL", 10*time.Minute)
	v.SetDefault("cache.verificationTTL", 5*time.Minute)
	v.SetDefault("cache.auditTTL", 1*time.Minute)
	v.SetDefault("cache.documentTTL", 5*time.Minute)
	v.SetDefault("cache.staleFraction", 0.8)
	v.SetDefault("cache.refreshWorkers", 4)
	v.SetDefault("cache.refreshQueueSize", 64)
	v.SetDefault("cache.sweepSchedule", "@every 5m")

	v.SetDefault("import.uploadConcurrency", 3)
	v.SetDefault("import.maxUploadSize", int64(50<<20))
	v.SetDefault("import.maxZipEntrySize", int64(10<<20))
}
