package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the configurable timeout values. All can be customized via
// environment variables.
type Timeouts struct {
	Deploy            time.Duration // package deployments (install/upgrade)
	DeploymentReady   time.Duration // waiting for a deployment to go ready
	RetryMaxAttempts  int           // per-operation retry attempts
	RetryInitialDelay time.Duration // first backoff delay
	RetryMaxDelay     time.Duration // backoff ceiling
	RetryBudget       time.Duration // wall-clock budget across one retry loop
}

// LoadTimeouts loads timeout configuration from environment variables. Unset
// or invalid values fall back to defaults.
//
// Environment variables:
//   - ADDONCTL_TIMEOUT_DEPLOY (default: 10m)
//   - ADDONCTL_TIMEOUT_DEPLOYMENT_READY (default: 5m)
//   - ADDONCTL_RETRY_MAX_ATTEMPTS (default: 5)
//   - ADDONCTL_RETRY_INITIAL_DELAY (default: 1s)
//   - ADDONCTL_RETRY_MAX_DELAY (default: 30s)
//   - ADDONCTL_RETRY_BUDGET (default: 2m)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		Deploy:            parseDuration("ADDONCTL_TIMEOUT_DEPLOY", 10*time.Minute),
		DeploymentReady:   parseDuration("ADDONCTL_TIMEOUT_DEPLOYMENT_READY", 5*time.Minute),
		RetryMaxAttempts:  parseInt("ADDONCTL_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("ADDONCTL_RETRY_INITIAL_DELAY", time.Second),
		RetryMaxDelay:     parseDuration("ADDONCTL_RETRY_MAX_DELAY", 30*time.Second),
		RetryBudget:       parseDuration("ADDONCTL_RETRY_BUDGET", 2*time.Minute),
	}
}

func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
