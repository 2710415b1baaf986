package util

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// matches ${NAME} and ${NAME:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// ExpandEnvStrict substitutes ${NAME} and ${NAME:default} references. A
// reference without a default whose variable is unset is an error.
func ExpandEnvStrict(s string) (string, error) {
	var missing []string

	expanded := envVarPattern.ReplaceAllStringFunc(s, func(ref string) string {
		m := envVarPattern.FindStringSubmatch(ref)
		name := strings.TrimSpace(m[1])
		hasDefault := strings.Contains(ref, ":")

		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return m[2]
		}
		missing = append(missing, name)
		return ref
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s is not set", strings.Join(missing, ", "))
	}

	return expanded, nil
}
