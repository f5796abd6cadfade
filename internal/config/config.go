package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	IsDebug     bool `yaml:"is_debug" env:"DEBUG" env-default:"false"`
	ChargePoint struct {
		Identity              string `yaml:"identity" env:"CHARGE_POINT_IDENTITY" validate:"required,min=3,max=50"`
		Vendor                string `yaml:"vendor" env:"CHARGE_POINT_VENDOR" validate:"required,min=3,max=30"`
		Model                 string `yaml:"model" env:"CHARGE_POINT_MODEL" validate:"required,min=3,max=100"`
		SerialNumber          string `yaml:"serial_number" env:"CHARGE_POINT_SERIAL_NUMBER" validate:"required,min=5,max=50"`
		FirmwareVersion       string `yaml:"firmware_version" env:"CHARGE_POINT_FIRMWARE_VERSION" validate:"required,min=1,max=20"`
		WebSocketUrl          string `yaml:"websocket_url" env:"CHARGE_POINT_WEBSOCKET_URL" validate:"required,min=10,max=50"`
		WebSocketPingInterval int    `yaml:"websocket_ping_interval" env:"CHARGE_POINT_WEBSOCKET_PING_INTERVAL" validate:"required"`
	} `yaml:"charge_point"`
	Listen struct {
		BindIP string `yaml:"bind_ip" env:"HTTP_BIND_IP" env-default:"0.0.0.0"`
		Port   string `yaml:"port" env:"HTTP_PORT" env-default:"3000"`
	} `yaml:"listen"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"false"`
		BindIP  string `yaml:"bind_ip" env:"METRICS_BIND_IP" env-default:"0.0.0.0"`
		Port    string `yaml:"port" env:"METRICS_PORT" env-default:"9100"`
	} `yaml:"metrics"`
	Nats struct {
		Enabled bool   `yaml:"enabled" env:"NATS_ENABLED" env-default:"false"`
		Url     string `yaml:"url" env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
		Subject string `yaml:"subject" env:"NATS_SUBJECT" env-default:"evsim"`
	} `yaml:"nats"`
	Mqtt struct {
		Enabled  bool   `yaml:"enabled" env:"MQTT_ENABLED" env-default:"false"`
		Broker   string `yaml:"broker" env:"MQTT_BROKER" env-default:"tcp://127.0.0.1:1883"`
		ClientId string `yaml:"client_id" env:"MQTT_CLIENT_ID" env-default:"evsim"`
		Topic    string `yaml:"topic" env:"MQTT_TOPIC" env-default:"evsim"`
		Username string `yaml:"username" env:"MQTT_USERNAME"`
		Password string `yaml:"password" env:"MQTT_PASSWORD"`
	} `yaml:"mqtt"`
}

var instance *Config
var once sync.Once

// GetConfig loads the configuration once per process.
func GetConfig(path string) (*Config, error) {
	var err error
	once.Do(func() {
		log.Println("reading config")
		instance, err = Load(path)
		if err != nil {
			desc, _ := cleanenv.GetDescription(&Config{}, nil)
			log.Println(desc)
			instance = nil
		}
	})
	if instance == nil && err == nil {
		err = errors.New("configuration not loaded")
	}
	return instance, err
}

// Load reads the yaml file when it exists, then the environment, and checks the result.
func Load(path string) (*Config, error) {
	conf := &Config{}
	var err error
	if _, statErr := os.Stat(path); path != "" && statErr == nil {
		err = cleanenv.ReadConfig(path, conf)
	} else {
		err = cleanenv.ReadEnv(conf)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err = conf.Check(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Check validates the settings the simulator cannot run without, reporting every violated field.
func (c *Config) Check() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	lines := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		lines = append(lines, fmt.Sprintf(" - %s: %s %s", fieldError.Namespace(), fieldError.Tag(), fieldError.Param()))
	}
	return fmt.Errorf("invalid configuration:\n%s", strings.Join(lines, "\n"))
}
