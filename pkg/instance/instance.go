package instance

import (
	"os"
	"strings"
)

// EnvInstanceID overrides the detected process identifier.
const EnvInstanceID = "NURSERYFINDER_INSTANCE_ID"

// ID names the running process for log fields. DYNO is set by the platform
// router; fallback is used when neither variable is present.
func ID(fallback string) string {
	for _, key := range []string{EnvInstanceID, "DYNO"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	if fallback == "" {
		return "local"
	}
	return fallback
}
