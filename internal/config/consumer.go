package config

// Consumer controls the in-process consumer of product events. It reads from its own queue,
// named "<routing key>.<QueueSuffix>", bound to the same exchange and routing key as the
// publisher's queue, so other subscribers of the publisher's queue keep every message.
type Consumer struct {
	Enabled     bool   `env:"CONSUMER_ENABLED" envDefault:"true"`
	Prefetch    int    `env:"CONSUMER_PREFETCH" envDefault:"10"`
	QueueSuffix string `env:"CONSUMER_QUEUE_SUFFIX" envDefault:"catalog"`
}
