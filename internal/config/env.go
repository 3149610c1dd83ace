package config

import (
	"os"
	"regexp"
	"strings"
)

// ScriptPathEnv names the variable that selects the scripts directory.
const ScriptPathEnv = "PYTHON_SCRIPT_PATH"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func substituteEnvVars(content []byte) []byte {
	return envVarRegex.ReplaceAllFunc(content, func(match []byte) []byte {
		varName := string(envVarRegex.FindSubmatch(match)[1])
		if value, exists := os.LookupEnv(varName); exists {
			return []byte(value)
		}
		return match
	})
}

// applyEnv overrides file values with the environment.
func (c *Config) applyEnv() {
	if dir, ok := os.LookupEnv(ScriptPathEnv); ok && strings.TrimSpace(dir) != "" {
		c.Scripts.Dir = strings.TrimSpace(dir)
	}
}
