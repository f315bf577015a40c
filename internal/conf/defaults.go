// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "tagwise")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "tagwise.log")
	viper.SetDefault("main.log.maxsize", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 28)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "tagwise.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "tagwise")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "tagwise")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.log.enabled", true)
	viper.SetDefault("webserver.log.path", "api.log")
	viper.SetDefault("webserver.log.maxsize", 100)
	viper.SetDefault("webserver.log.maxbackups", 3)
	viper.SetDefault("webserver.log.maxage", 28)

	viper.SetDefault("annotation.sampleitems", 5)
	viper.SetDefault("annotation.summarycachettl", 30)
	viper.SetDefault("annotation.defaultthreshold", 3)
}
