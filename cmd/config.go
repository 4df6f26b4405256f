package main

import "time"

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	StoreBackend    string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/campus-chat"`
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB,default=0"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8080"`
	GRPCPort        int           `env:"GRPC_PORT,default=9090"`
	JWTSecret       string        `env:"JWT_SECRET,required=true"`
	AccessLog       bool          `env:"ACCESS_LOG,default=false"`
	EventBufferSize int           `env:"EVENT_BUFFER_SIZE,default=1024"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=1s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ReaperInterval  time.Duration `env:"REAPER_INTERVAL,default=1m"`
	SampleInterval  time.Duration `env:"SAMPLE_INTERVAL,default=5s"`
	ListPageLimit   int           `env:"LIST_PAGE_LIMIT,default=50"`
}
