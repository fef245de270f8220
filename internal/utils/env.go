package utils

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// SafeEnv returns the environment variable value for key, or fallback if empty.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// SafeEnvBool parses key as a boolean. Unparseable values fall back.
func SafeEnvBool(key string, fallback bool) bool {
	v := SafeEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("env: %s=%q is not a boolean, using %v", key, v, fallback)
		return fallback
	}
	return b
}

// SafeEnvDuration parses key with time.ParseDuration. Unparseable or
// non-positive values fall back.
func SafeEnvDuration(key string, fallback time.Duration) time.Duration {
	v := SafeEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("env: %s=%q is not a positive duration, using %v", key, v, fallback)
		return fallback
	}
	return d
}

// SafeEnvList splits a comma separated value, dropping blanks.
func SafeEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(SafeEnv(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
