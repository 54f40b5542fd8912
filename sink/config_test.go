package sink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		URL:    "https://example.com/ingest",
		Method: "POST",
		Format: FormatJSON,
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_MalformedURL(t *testing.T) {
	cfg := validConfig()
	cfg.URL = "not a url"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "url")
}

func TestConfig_InvalidMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Method = "PATCH"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PATCH")
}

func TestConfig_MethodCaseInsensitive(t *testing.T) {
	cfg := validConfig()
	cfg.Method = "post"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_InvalidBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.BatchSize = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch_size")
}

func TestConfig_CustomFormatRequiresBody(t *testing.T) {
	cfg := validConfig()
	cfg.Format = FormatCustom
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "body")

	cfg.Body = `{"v":"#a"}`
	assert.NoError(t, cfg.Validate())
}

func TestConfig_UnsupportedFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestConfig_UnsupportedCharset(t *testing.T) {
	cfg := validConfig()
	cfg.Charset = "ISO-8859-5"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ISO-8859-5")
}

func TestConfig_SupportedCharsets(t *testing.T) {
	for _, charset := range []string{"", "UTF-8", "utf-8", "utf8", "US-ASCII"} {
		cfg := validConfig()
		cfg.Charset = charset
		assert.NoError(t, cfg.Validate(), "charset %q", charset)
	}
}

func TestConfig_LinearRequiresInterval(t *testing.T) {
	cfg := validConfig()
	cfg.RetryPolicy = RetryLinear
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linear_retry_interval_sec")

	cfg.LinearRetryIntervalSec = 5
	assert.NoError(t, cfg.Validate())
}

func TestConfig_InvalidRetryPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.RetryPolicy = "fibonacci"
	assert.Error(t, cfg.Validate())
}

func TestConfig_NegativeTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.ConnectTimeoutMS = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ReadTimeoutMS = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_InvalidErrorHandlingRegex(t *testing.T) {
	cfg := validConfig()
	cfg.ErrorHandling = []ErrorHandlingEntry{{Pattern: "5[", Action: "retry"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"5["`)
}

func TestConfig_OAuth2RequiresTokenURL(t *testing.T) {
	cfg := validConfig()
	cfg.OAuth2.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_url")

	cfg.OAuth2.TokenURL = "https://auth.example.com/token"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_HeaderParsing(t *testing.T) {
	headers, err := parseHeaders("X-One: a\nX-Two: b:c\n\nX-Three:d")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"X-One":   "a",
		"X-Two":   "b:c",
		"X-Three": "d",
	}, headers)
}

func TestConfig_HeaderParsingInvalidLine(t *testing.T) {
	_, err := parseHeaders("no colon here")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no colon here")

	cfg := validConfig()
	cfg.Headers = "broken line"
	assert.Error(t, cfg.Validate())
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{URL: "https://example.com"}.withDefaults()

	assert.Equal(t, "POST", cfg.Method)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, "\n", cfg.Delimiter)
	assert.Equal(t, DefaultCharset, cfg.Charset)
	assert.Equal(t, RetryExponential, cfg.RetryPolicy)
	assert.Equal(t, int64(DefaultMaxRetrySec), cfg.MaxRetryDurationSec)
}

func TestConfig_TimeoutAccessors(t *testing.T) {
	cfg := Config{ConnectTimeoutMS: 1500, ReadTimeoutMS: 0}

	assert.Equal(t, 1500*time.Millisecond, cfg.connectTimeout())
	assert.Equal(t, time.Duration(0), cfg.readTimeout())
}

func TestConfig_HasBody(t *testing.T) {
	for method, expected := range map[string]bool{
		"POST": true, "PUT": true, "GET": false, "DELETE": false,
	} {
		cfg := Config{Method: method}
		assert.Equal(t, expected, cfg.hasBody(), "method %s", method)
	}
}
