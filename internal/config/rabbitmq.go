package config

import "time"

type RabbitMQ struct {
	Host     string `env:"RABBITMQ_HOST,required,notEmpty"`
	Port     int    `env:"RABBITMQ_PORT,required,notEmpty"`
	User     string `env:"RABBITMQ_USER,required,notEmpty"`
	Password string `env:"RABBITMQ_PASSWORD,required,notEmpty"`
	VHost    string `env:"RABBITMQ_VHOST" envDefault:"/"`

	ProductsExchange            string `env:"RABBITMQ_PRODUCTS_EXCHANGE,required,notEmpty"`
	ProductNameUpdateRoutingKey string `env:"RABBITMQ_PRODUCT_NAME_UPDATE_ROUTING_KEY,required,notEmpty"`

	DialTimeout          time.Duration `env:"RABBITMQ_DIAL_TIMEOUT" envDefault:"5s"`
	PublishTimeout       time.Duration `env:"RABBITMQ_PUBLISH_TIMEOUT" envDefault:"5s"`
	Heartbeat            time.Duration `env:"RABBITMQ_HEARTBEAT" envDefault:"10s"`
	ReconnectMaxInterval time.Duration `env:"RABBITMQ_RECONNECT_MAX_INTERVAL" envDefault:"30s"`
}
