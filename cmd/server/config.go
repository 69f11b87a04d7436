package main

import "time"

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080"`
	GrpcPort          int           `env:"GRPC_PORT,default=9090"`
	DebugPort         int           `env:"DEBUG_PORT,default=8081"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	JWTIssuer         string        `env:"JWT_ISSUER,default=chat-relay"`
	InternalKey       string        `env:"INTERNAL_KEY"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true"`
	TypingTimeout     time.Duration `env:"TYPING_TIMEOUT,default=3s"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT,default=2s"`
	BootstrapTimeout  time.Duration `env:"BOOTSTRAP_TIMEOUT,default=5s"`
	OutboundQueueSize int           `env:"OUTBOUND_QUEUE_SIZE,default=256"`
	PingInterval      time.Duration `env:"PING_INTERVAL,default=25s"`
	PongWait          time.Duration `env:"PONG_WAIT,default=60s"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=10s"`
	QueueWarnPercent  int           `env:"QUEUE_WARN_PERCENT,default=80"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}
