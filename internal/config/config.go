// Package config reads the demo binary's settings from the environment.
package config

// Config exposes everything the demo binary needs to build a client.
type Config interface {
	EnvConfig
}

type EnvConfig interface {
	GetBaseURL() string
	GetAppID() string
	GetAppName() string
	GetEmail() string
	GetPassword() string
	GetDataFolder() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
