package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorFormatting(t *testing.T) {
	err := NewInvalidFieldError("retry.backoff", `invalid backoff "x"`, []string{"linear", "exponential"})
	assert.Equal(t, `config_invalid: retry.backoff invalid backoff "x" must be one of: linear, exponential`, err.Error())

	err = NewInvalidFieldError("rate.limit", "must be positive", nil)
	assert.Equal(t, "config_invalid: rate.limit must be positive", err.Error())
}

func TestMissingFieldErrorNamesEnvVar(t *testing.T) {
	err := NewMissingFieldError("client.baseurl")
	assert.Equal(t, "FETCH_CLIENT_BASEURL", err.EnvVar())
	assert.Contains(t, err.Error(), "config_missing: client.baseurl required")
	assert.Contains(t, err.Error(), "set FETCH_CLIENT_BASEURL env var")
}
