package opensearch

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Signing services for AWS-managed clusters.
const (
	ServiceManaged    = "es"
	ServiceServerless = "aoss"
)

// DefaultTimeout matches the client timeout the indexes were operated with.
const DefaultTimeout = 60 * time.Second

// Config configures the REST store.
type Config struct {
	// Endpoint is the cluster URL. A missing scheme means https.
	Endpoint string

	// SigningService enables SigV4 signing when set to ServiceManaged or ServiceServerless.
	SigningService string
	Region         string
	Profile        string

	// Username and Password enable basic auth for self-managed clusters.
	Username string
	Password string

	// Compress gzips request bodies.
	Compress bool

	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Validate checks the configuration and normalizes the endpoint.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		c.Endpoint = "https://" + c.Endpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")

	switch c.SigningService {
	case "":
	case ServiceManaged, ServiceServerless:
		if c.Region == "" {
			return fmt.Errorf("%w: region is required for request signing", ErrInvalidConfig)
		}
		if c.Username != "" {
			return fmt.Errorf("%w: basic auth and request signing are exclusive", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown signing service %q", ErrInvalidConfig, c.SigningService)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// SigningServiceFor guesses the signing service from an AWS endpoint host.
// Other hosts are not signed.
func SigningServiceFor(endpoint string) string {
	switch {
	case strings.Contains(endpoint, ".aoss.amazonaws.com"):
		return ServiceServerless
	case strings.Contains(endpoint, ".es.amazonaws.com"):
		return ServiceManaged
	default:
		return ""
	}
}
