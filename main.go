package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"

	"discreetx-backend/internal/authz"
	"discreetx-backend/internal/calls"
	"discreetx-backend/internal/cipher"
	"discreetx-backend/internal/database"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/handlers"
	"discreetx-backend/internal/hub"
	"discreetx-backend/internal/jwt"
	"discreetx-backend/internal/keyValue"
	"discreetx-backend/internal/messages"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func setupLogger(cfg *models.ConfigFile) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()

	config.OutputPaths = []string{"stdout"}
	if cfg.LogToFile {
		config.OutputPaths = append(config.OutputPaths, "app.log")
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func readConfigFile() (models.ConfigFile, error) {
	var cfg models.ConfigFile

	configFile, err := os.Open("config.json")
	if err != nil {
		return cfg, err
	}
	defer configFile.Close()

	bytes, err := io.ReadAll(configFile)
	if err != nil {
		return cfg, err
	}

	err = json.Unmarshal(bytes, &cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setupRedis(cfg *models.ConfigFile) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

func main() {
	fmt.Println("Reading config file...")
	cfg, err := readConfigFile()
	if err != nil {
		fmt.Println(err)
		return
	}

	sugar, err := setupLogger(&cfg)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer sugar.Sync()

	sugar.Info("Looking for ffmpeg...")
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		sugar.Fatal(err)
	}

	sugar.Info("Connecting to database...")
	db, err := database.Setup(&cfg)
	if err != nil {
		sugar.Fatal(err)
	}

	var redisClient *redis.Client
	var localBus *fanout.LocalBus
	var bus fanout.Bus

	if cfg.SelfContained {
		sugar.Info("Self-contained mode, using in-process pub/sub")
		localBus = fanout.NewLocalBus()
		bus = localBus
	} else {
		sugar.Info("Connecting to redis...")
		redisClient, err = setupRedis(&cfg)
		if err != nil {
			sugar.Fatal(err)
		}
		bus = fanout.NewRedisBus(redisClient)
	}

	if err := snowflake.Setup(cfg.SnowflakeWorkerID); err != nil {
		sugar.Fatal(err)
	}

	contentCipher, err := cipher.New(cfg.CipherSecret)
	if err != nil {
		sugar.Fatal(err)
	}

	isHttps := cfg.TlsCert != "" && cfg.TlsKey != ""

	jwt.Setup(cfg.JwtSecret, isHttps)
	keyValue.Setup(sugar, redisClient, cfg.SelfContained)
	hub.Setup(sugar, redisClient, localBus, cfg.SelfContained)

	st := store.NewSQL(db, cfg.SelfContained)
	gate := authz.New(st)
	eventRouter := fanout.NewRouter(bus, sugar)

	deps := handlers.Deps{
		Store:    st,
		Gate:     gate,
		Messages: messages.New(st, gate, contentCipher, eventRouter),
		Calls:    calls.New(st, gate, eventRouter),
		Router:   eventRouter,
	}

	protocol := "http"
	if isHttps {
		protocol = "https"
	}
	sugar.Infof("Server is running on %s://%s:%s", protocol, cfg.Address, cfg.Port)

	if err := handlers.Setup(isHttps, &cfg, sugar, deps); err != nil {
		sugar.Fatal(err)
	}
}
