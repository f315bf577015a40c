package conf

import (
	"fmt"
	"strconv"
)

// ValidateSettings checks that the loaded settings describe a runnable configuration.
func ValidateSettings(settings *Settings) error {
	if settings.Output.SQLite.Enabled && settings.Output.MySQL.Enabled {
		return fmt.Errorf("only one database backend may be enabled, both SQLite and MySQL are set")
	}
	if !settings.Output.SQLite.Enabled && !settings.Output.MySQL.Enabled {
		return fmt.Errorf("no database backend enabled, enable output.sqlite or output.mysql")
	}

	if settings.Output.SQLite.Enabled && settings.Output.SQLite.Path == "" {
		return fmt.Errorf("output.sqlite.path must not be empty")
	}

	if settings.Output.MySQL.Enabled {
		if settings.Output.MySQL.Host == "" || settings.Output.MySQL.Database == "" {
			return fmt.Errorf("output.mysql.host and output.mysql.database must be set")
		}
		if _, err := strconv.Atoi(settings.Output.MySQL.Port); err != nil {
			return fmt.Errorf("output.mysql.port %q is not a valid port number", settings.Output.MySQL.Port)
		}
	}

	if settings.WebServer.Enabled {
		port, err := strconv.Atoi(settings.WebServer.Port)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("webserver.port %q is not a valid port number", settings.WebServer.Port)
		}
	}

	if settings.Annotation.SampleItems < 0 {
		return fmt.Errorf("annotation.sampleitems must not be negative")
	}
	if settings.Annotation.DefaultThreshold < 1 {
		return fmt.Errorf("annotation.defaultthreshold must be at least 1")
	}

	return nil
}
