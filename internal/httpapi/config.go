package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the maximum request body size. Non-positive
// values restore the 1 MiB default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

// Service identity reported by GET / and the tokenizer_service_info metric.
var (
	serviceName    = "tokenizerd"
	serviceVersion = "dev"
)

// SetServiceInfo sets the name and version reported by the service.
func SetServiceInfo(name, version string) {
	if name != "" {
		serviceName = name
	}
	if version != "" {
		serviceVersion = version
	}
	serviceInfo.Reset()
	serviceInfo.WithLabelValues(serviceVersion, "Universal Tokenizer Service").Set(1)
}
