// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Define a struct with `env` tags and load it anywhere it is needed; loads
// of the same type after the first return a cached snapshot:
//
//	type ServerConfig struct {
//		Addr string `env:"SERVER_ADDR" envDefault:":8080"`
//	}
//
//	var cfg ServerConfig
//	config.MustLoad(&cfg)
package config
