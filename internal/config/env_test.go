package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	input := []byte("value: ${TEST_VAR}")
	expected := []byte("value: test_value")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsMultiple(t *testing.T) {
	t.Setenv("VAR1", "value1")
	t.Setenv("VAR2", "value2")

	input := []byte("first: ${VAR1}\nsecond: ${VAR2}")
	expected := []byte("first: value1\nsecond: value2")

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestSubstituteEnvVarsNotSet(t *testing.T) {
	os.Unsetenv("NONEXISTENT_VAR")

	input := []byte("value: ${NONEXISTENT_VAR}")
	expected := []byte("value: ${NONEXISTENT_VAR}") // unchanged

	result := substituteEnvVars(input)

	if string(result) != string(expected) {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	t.Setenv(ScriptPathEnv, "   ")

	cfg := Default()
	cfg.Scripts.Dir = "/keep"
	cfg.applyEnv()

	if cfg.Scripts.Dir != "/keep" {
		t.Errorf("blank env should not override, got %q", cfg.Scripts.Dir)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv(ScriptPathEnv, "")
	t.Setenv("TEST_HOST", "192.168.1.1")
	t.Setenv("TEST_SCRIPTS", "/data/scripts")

	content := `
server:
  host: "${TEST_HOST}"
  port: 9999

scripts:
  dir: "${TEST_SCRIPTS}"

logging:
  level: "info"
  format: "json"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Host != "192.168.1.1" {
		t.Errorf("expected host 192.168.1.1, got %s", cfg.Server.Host)
	}

	if cfg.Scripts.Dir != "/data/scripts" {
		t.Errorf("expected scripts dir /data/scripts, got %s", cfg.Scripts.Dir)
	}
}
