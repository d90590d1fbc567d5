package config

import "github.com/kelseyhightower/envconfig"

type APIConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Broker (Redis)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CustomerQueue string `envconfig:"CUSTOMER_QUEUE" default:"customers"`
	CampaignQueue string `envconfig:"CAMPAIGN_QUEUE" default:"campaigns"`
}

type WorkerConfig struct {
	DBDSN       string `envconfig:"DB_DSN" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"json"`

	// Broker (Redis)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CustomerQueue string `envconfig:"CUSTOMER_QUEUE" default:"customers"`
	CampaignQueue string `envconfig:"CAMPAIGN_QUEUE" default:"campaigns"`

	// Consumer loop
	DequeueWaitSeconds int `envconfig:"DEQUEUE_WAIT_SECONDS" default:"10"`
	BrokerRetrySeconds int `envconfig:"BROKER_RETRY_SECONDS" default:"5"`

	// Bulk import
	ImportBatchSize int `envconfig:"IMPORT_BATCH_SIZE" default:"100"`

	// Campaign delivery
	DeliveryBatchSize    int `envconfig:"DELIVERY_BATCH_SIZE" default:"10"`
	InterBatchDelayMs    int `envconfig:"INTER_BATCH_DELAY_MS" default:"1000"`
	VendorBreakerFails   uint32 `envconfig:"VENDOR_BREAKER_FAILS" default:"5"`
	VendorBreakerResetMs int    `envconfig:"VENDOR_BREAKER_RESET_MS" default:"20000"`

	// Vendor simulator. Delay knobs exist so tests and local runs can
	// speed the vendor up; production-shaped defaults below.
	VendorSuccessRate    float64 `envconfig:"VENDOR_SUCCESS_RATE" default:"0.9"`
	VendorSendDelayMinMs int     `envconfig:"VENDOR_SEND_DELAY_MS_MIN" default:"50"`
	VendorSendDelayMaxMs int     `envconfig:"VENDOR_SEND_DELAY_MS_MAX" default:"200"`
	VendorReceiptDelayMinMs int  `envconfig:"VENDOR_RECEIPT_DELAY_MS_MIN" default:"100"`
	VendorReceiptDelayMaxMs int  `envconfig:"VENDOR_RECEIPT_DELAY_MS_MAX" default:"500"`
	VendorStaggerMinMs   int     `envconfig:"VENDOR_STAGGER_MS_MIN" default:"10"`
	VendorStaggerMaxMs   int     `envconfig:"VENDOR_STAGGER_MS_MAX" default:"50"`
}

func LoadAPI() APIConfig {
	var cfg APIConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}

func LoadWorker() WorkerConfig {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	return cfg
}
