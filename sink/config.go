package sink

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/c360/httpsink/errors"
)

// RetryPolicy selects how the delay between retry attempts is computed.
type RetryPolicy string

// Supported retry policies
const (
	RetryLinear      RetryPolicy = "linear"
	RetryExponential RetryPolicy = "exponential"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultBatchSize        = 1
	DefaultCharset          = "UTF-8"
	DefaultConnectTimeoutMS = 60000
	DefaultReadTimeoutMS    = 60000
	DefaultMaxRetrySec      = 600
)

var supportedMethods = map[string]struct{}{
	"GET": {}, "POST": {}, "PUT": {}, "DELETE": {},
}

// OAuth2Config carries bearer token refresh parameters.
type OAuth2Config struct {
	Enabled      bool     `json:"enabled"       yaml:"enabled"`
	TokenURL     string   `json:"token_url"     yaml:"token_url"`
	ClientID     string   `json:"client_id"     yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	RefreshToken string   `json:"refresh_token" yaml:"refresh_token"`
	Scopes       []string `json:"scopes"        yaml:"scopes"`
}

// Config is the immutable sink configuration, validated once before any
// delivery attempt. Parsed artifacts (header map, policy table, placeholder
// bindings) are built at writer construction.
type Config struct {
	// Target
	URL    string `json:"url"    yaml:"url"`
	Method string `json:"method" yaml:"method"`

	// Batching and message format
	BatchSize        int    `json:"batch_size"          yaml:"batch_size"`
	Format           Format `json:"format"              yaml:"format"`
	WriteJSONAsArray bool   `json:"write_json_as_array" yaml:"write_json_as_array"`
	JSONBatchKey     string `json:"json_batch_key"      yaml:"json_batch_key"`
	Delimiter        string `json:"delimiter"           yaml:"delimiter"`
	FieldDelimiter   string `json:"field_delimiter"     yaml:"field_delimiter"`
	Body             string `json:"body"                yaml:"body"`

	// Request
	Headers         string `json:"headers"          yaml:"headers"` // "Name: value" pairs, one per line
	Charset         string `json:"charset"          yaml:"charset"`
	FollowRedirects bool   `json:"follow_redirects" yaml:"follow_redirects"`

	// Transport
	DisableTLSValidation bool   `json:"disable_tls_validation" yaml:"disable_tls_validation"`
	ProxyURL             string `json:"proxy_url"              yaml:"proxy_url"`
	ProxyUsername        string `json:"proxy_username"         yaml:"proxy_username"`
	ProxyPassword        string `json:"proxy_password"         yaml:"proxy_password"`
	ConnectTimeoutMS     int    `json:"connect_timeout_ms"     yaml:"connect_timeout_ms"` // 0 = infinite
	ReadTimeoutMS        int    `json:"read_timeout_ms"        yaml:"read_timeout_ms"`    // 0 = infinite

	// Error handling and retries
	ErrorHandling          []ErrorHandlingEntry `json:"error_handling"            yaml:"error_handling"`
	DefaultAction          string               `json:"default_action"            yaml:"default_action"`
	RetryPolicy            RetryPolicy          `json:"retry_policy"              yaml:"retry_policy"`
	LinearRetryIntervalSec int64                `json:"linear_retry_interval_sec" yaml:"linear_retry_interval_sec"`
	MaxRetryDurationSec    int64                `json:"max_retry_duration_sec"    yaml:"max_retry_duration_sec"`

	// Flush rate limit in flushes per second, 0 disables limiting
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	OAuth2 OAuth2Config `json:"oauth2" yaml:"oauth2"`
}

// withDefaults returns a copy of the config with unset fields defaulted.
func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = "POST"
	}
	c.Method = strings.ToUpper(c.Method)
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Format == "" {
		c.Format = FormatJSON
	}
	if c.Delimiter == "" {
		c.Delimiter = "\n"
	}
	if c.Charset == "" {
		c.Charset = DefaultCharset
	}
	if c.RetryPolicy == "" {
		c.RetryPolicy = RetryExponential
	}
	if c.MaxRetryDurationSec == 0 {
		c.MaxRetryDurationSec = DefaultMaxRetrySec
	}
	return c
}

// Validate fails fast on configuration errors, before any delivery attempt.
// Every failure names the offending field.
func (c Config) Validate() error {
	c = c.withDefaults()

	parsed, err := url.Parse(c.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("url %q is malformed", c.URL))
	}

	if _, ok := supportedMethods[c.Method]; !ok {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("invalid request method %q, must be one of GET, POST, PUT, DELETE", c.Method))
	}

	if c.BatchSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"batch_size must be greater than 0")
	}

	switch c.Format {
	case FormatJSON, FormatDelimited:
	case FormatCustom:
		if c.Body == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"body is required for the custom message format")
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unsupported format %q, must be one of json, delimited, custom", c.Format))
	}

	if !charsetSupported(c.Charset) {
		return errors.WrapInvalid(errors.ErrEncodingFailed, "Config", "Validate",
			fmt.Sprintf("unsupported charset %q", c.Charset))
	}

	if _, err := parseHeaders(c.Headers); err != nil {
		return err
	}

	if c.ConnectTimeoutMS < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"connect_timeout_ms cannot be negative")
	}
	if c.ReadTimeoutMS < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"read_timeout_ms cannot be negative")
	}

	if _, err := NewPolicyTable(c.ErrorHandling, c.DefaultAction); err != nil {
		return err
	}

	switch c.RetryPolicy {
	case RetryLinear:
		if c.LinearRetryIntervalSec <= 0 {
			return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
				"linear_retry_interval_sec is required when retry_policy is linear")
		}
	case RetryExponential:
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("unsupported retry_policy %q, must be linear or exponential", c.RetryPolicy))
	}

	if c.MaxRetryDurationSec < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"max_retry_duration_sec cannot be negative")
	}
	if c.RateLimit < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"rate_limit cannot be negative")
	}

	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return errors.WrapInvalid(err, "Config", "Validate",
				fmt.Sprintf("proxy_url %q is malformed", c.ProxyURL))
		}
	}

	if c.OAuth2.Enabled && c.OAuth2.TokenURL == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"oauth2.token_url is required when oauth2 is enabled")
	}

	return nil
}

// hasBody reports whether the configured method carries a request body.
func (c Config) hasBody() bool {
	return c.Method == "POST" || c.Method == "PUT"
}

// connectTimeout returns the per-attempt connect timeout, 0 meaning infinite.
func (c Config) connectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// readTimeout returns the per-attempt read timeout, 0 meaning infinite.
func (c Config) readTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// charsetSupported accepts the UTF-8 family the connector can encode.
// Values substituted into URLs are percent-encoded as UTF-8 bytes, so any
// other charset would silently produce the wrong encoding.
func charsetSupported(charset string) bool {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return true
	default:
		return false
	}
}

var headerLinePattern = regexp.MustCompile(`^[^:\s]+\s*:`)

// parseHeaders converts "Name: value" lines into a header map. Lines must be
// "\n"-delimited; blank lines are skipped.
func parseHeaders(headers string) (map[string]string, error) {
	result := make(map[string]string)
	if headers == "" {
		return result, nil
	}

	for _, line := range strings.Split(headers, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !headerLinePattern.MatchString(line) {
			return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "parseHeaders",
				fmt.Sprintf("unable to parse header line %q", line))
		}
		name, value, _ := strings.Cut(line, ":")
		result[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return result, nil
}
