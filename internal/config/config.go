// Package config provides configuration loading from environment variables.
package config

// Credentials identify the Mortar account used for remote API calls.
type Credentials struct {
	Email  string
	APIKey string
	Host   string // API endpoint override, empty = production default
}

// LoadCredentials loads account credentials from environment variables.
// MORTAR_API_KEY_FILE takes precedence over MORTAR_API_KEY when set.
func LoadCredentials() Credentials {
	apiKey := GetSecretFile(GetEnv("MORTAR_API_KEY_FILE", ""))
	if apiKey == "" {
		apiKey = GetEnv("MORTAR_API_KEY", "")
	}
	return Credentials{
		Email:  GetEnv("MORTAR_EMAIL", ""),
		APIKey: apiKey,
		Host:   GetEnv("MORTAR_HOST", ""),
	}
}
