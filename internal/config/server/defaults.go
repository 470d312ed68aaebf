package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Requests:   true,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type:     "sqlite",
			LogLevel: "silent",
			SQLite: MetadataSQLiteConfig{
				Path: "./dynamicfilters.db",
			},
		},

		HTTP: HTTPServerConfig{
			Address:      "127.0.0.1:8080",
			Prefix:       "/admin",
			UserHeader:   "X-Remote-User",
			ReadTimeout:  "15s",
			WriteTimeout: "30s",
		},

		Filters: FiltersServerConfig{
			AddParam:  "add_adminfilters",
			LoadParam: "load_adminfilters",
			SaveParam: "save_adminfilters",
			Demo:      false,
			PageSize:  100,
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.requests", defaults.Log.Requests)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.log_level", defaults.Metadata.LogLevel)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)
	viper.SetDefault("metadata.postgres.dsn", defaults.Metadata.Postgres.DSN)

	viper.SetDefault("http.address", defaults.HTTP.Address)
	viper.SetDefault("http.prefix", defaults.HTTP.Prefix)
	viper.SetDefault("http.user_header", defaults.HTTP.UserHeader)
	viper.SetDefault("http.read_timeout", defaults.HTTP.ReadTimeout)
	viper.SetDefault("http.write_timeout", defaults.HTTP.WriteTimeout)

	viper.SetDefault("filters.add_param", defaults.Filters.AddParam)
	viper.SetDefault("filters.load_param", defaults.Filters.LoadParam)
	viper.SetDefault("filters.save_param", defaults.Filters.SaveParam)
	viper.SetDefault("filters.entities_file", defaults.Filters.EntitiesFile)
	viper.SetDefault("filters.demo", defaults.Filters.Demo)
	viper.SetDefault("filters.page_size", defaults.Filters.PageSize)
}
