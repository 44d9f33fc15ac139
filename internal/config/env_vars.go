package config

import "os"

const (
	baseURLVar  = "HOSTBRIDGE_BASE_URL"
	appIDVar    = "HOSTBRIDGE_APP_ID"
	appNameVar  = "APP_NAME"
	emailVar    = "HOSTBRIDGE_EMAIL"
	passwordVar = "HOSTBRIDGE_PASSWORD"
	folderVar   = "FOLDER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetAppID() string {
	return GetEnv(appIDVar, "demo-app")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "HostBridge")
}

func (EnvVars) GetEmail() string {
	return GetEnv(emailVar, "")
}

func (EnvVars) GetPassword() string {
	return GetEnv(passwordVar, "")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
