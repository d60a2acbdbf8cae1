package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	// Test default value
	result := GetEnv("TEST_NONEXISTENT_VAR", "default")
	if result != "default" {
		t.Errorf("Expected 'default', got %q", result)
	}

	// Test with set value
	os.Setenv("TEST_GET_ENV", "custom")
	defer os.Unsetenv("TEST_GET_ENV")

	result = GetEnv("TEST_GET_ENV", "default")
	if result != "custom" {
		t.Errorf("Expected 'custom', got %q", result)
	}
}

func TestGetIntEnv(t *testing.T) {
	// Test default value
	result := GetIntEnv("TEST_NONEXISTENT_INT", 42)
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	// Test with valid int
	os.Setenv("TEST_INT_ENV", "123")
	defer os.Unsetenv("TEST_INT_ENV")

	result = GetIntEnv("TEST_INT_ENV", 42)
	if result != 123 {
		t.Errorf("Expected 123, got %d", result)
	}

	// Test with invalid int (should return default)
	os.Setenv("TEST_INVALID_INT", "not-a-number")
	defer os.Unsetenv("TEST_INVALID_INT")

	result = GetIntEnv("TEST_INVALID_INT", 42)
	if result != 42 {
		t.Errorf("Expected 42 for invalid int, got %d", result)
	}
}

func TestGetBoolEnv(t *testing.T) {
	result := GetBoolEnv("TEST_NONEXISTENT_BOOL", true)
	if !result {
		t.Error("Expected true default")
	}

	os.Setenv("TEST_BOOL_ENV", "false")
	defer os.Unsetenv("TEST_BOOL_ENV")

	result = GetBoolEnv("TEST_BOOL_ENV", true)
	if result {
		t.Error("Expected false from env")
	}

	os.Setenv("TEST_INVALID_BOOL", "maybe")
	defer os.Unsetenv("TEST_INVALID_BOOL")

	result = GetBoolEnv("TEST_INVALID_BOOL", true)
	if !result {
		t.Error("Expected true default for invalid bool")
	}
}

func TestGetDurationEnv(t *testing.T) {
	result := GetDurationEnv("TEST_NONEXISTENT_DURATION", 5*time.Second)
	if result != 5*time.Second {
		t.Errorf("Expected 5s, got %v", result)
	}

	os.Setenv("TEST_DURATION_ENV", "30s")
	defer os.Unsetenv("TEST_DURATION_ENV")

	result = GetDurationEnv("TEST_DURATION_ENV", 5*time.Second)
	if result != 30*time.Second {
		t.Errorf("Expected 30s, got %v", result)
	}
}

func TestGetSecretFile(t *testing.T) {
	if GetSecretFile("") != "" {
		t.Error("Expected empty string for empty path")
	}
	if GetSecretFile("/nonexistent/secret") != "" {
		t.Error("Expected empty string for missing file")
	}

	path := filepath.Join(t.TempDir(), "api_key")
	if err := os.WriteFile(path, []byte("  s3cret\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := GetSecretFile(path); got != "s3cret" {
		t.Errorf("Expected trimmed secret, got %q", got)
	}
}

func TestLoadCredentials_KeyFilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api_key")
	if err := os.WriteFile(path, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}

	os.Setenv("MORTAR_EMAIL", "dev@example.com")
	os.Setenv("MORTAR_API_KEY", "from-env")
	os.Setenv("MORTAR_API_KEY_FILE", path)
	defer func() {
		os.Unsetenv("MORTAR_EMAIL")
		os.Unsetenv("MORTAR_API_KEY")
		os.Unsetenv("MORTAR_API_KEY_FILE")
	}()

	creds := LoadCredentials()
	if creds.Email != "dev@example.com" {
		t.Errorf("Email = %q", creds.Email)
	}
	if creds.APIKey != "from-file" {
		t.Errorf("APIKey = %q, want file value to win", creds.APIKey)
	}
}
