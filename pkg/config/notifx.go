package config

// NotifxConfig configures the notification system.
type NotifxConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	AWSRegion   string

	// QueueBackend selects the dispatch queue: "channel" (in-process,
	// default) or "redis".
	QueueBackend string
	QueueSize    int
	RedisAddr    string
	RedisDB      int
	RedisKey     string
}

func loadNotifxConfig() NotifxConfig {
	return NotifxConfig{
		Provider:     getEnv("NOTIFX_PROVIDER", "console"),
		FromAddress:  getEnv("NOTIFX_FROM_ADDRESS", "noreply@gatekit.dev"),
		FromName:     getEnv("NOTIFX_FROM_NAME", "Gatekit"),
		AWSRegion:    getEnv("NOTIFX_AWS_REGION", getEnv("AWS_REGION", "us-east-1")),
		QueueBackend: getEnv("NOTIFX_QUEUE_BACKEND", "channel"),
		QueueSize:    getInt("NOTIFX_QUEUE_SIZE", 256),
		RedisAddr:    getEnv("NOTIFX_REDIS_ADDR", "localhost:6379"),
		RedisDB:      getInt("NOTIFX_REDIS_DB", 0),
		RedisKey:     getEnv("NOTIFX_REDIS_KEY", "gatekit:notify"),
	}
}
