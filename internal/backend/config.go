package backend

import (
	"fmt"

	"billtracker/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	driver := DriverType(appConfig.DBDriver)
	if !driver.IsValid() {
		return Config{}, fmt.Errorf("invalid database driver in config: %s", appConfig.DBDriver)
	}

	return Config{
		Driver:       driver,
		DataSource:   appConfig.DataSource(),
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Driver.IsValid() {
		return fmt.Errorf("invalid database driver: %s", c.Driver)
	}
	if c.DataSource == "" {
		return fmt.Errorf("data source is required for %s driver", c.Driver)
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		return fmt.Errorf("AMQP exchange and queue are required when AMQP URL is set")
	}
	if c.RequireAMQP && c.AMQPURL == "" {
		return fmt.Errorf("AMQP URL is required")
	}
	return nil
}

// GetDriverTypes returns all valid driver types
func GetDriverTypes() []DriverType {
	return []DriverType{SQLiteDriver, PostgresDriver}
}

// GetDriverTypeStrings returns all valid driver type strings
func GetDriverTypeStrings() []string {
	types := GetDriverTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
