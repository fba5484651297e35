package instance

import (
	"os"

	"github.com/angelmondragon/microcommerce-backend/pkg/env"
)

// GetID identifies this process in logs. It prefers an explicit id, then the
// platform dyno name, then the hostname.
func GetID() string {
	if id, ok := env.First("MICROCOMMERCE_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
