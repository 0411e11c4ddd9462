package util

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
)

func GenerateRequestID() string {
	actions := []string{
		"crossing", "resting", "loping", "striding", "hauling",
		"wading", "climbing", "descending", "grazing", "watering",
		"trotting", "pacing", "leading", "trailing", "camping",
	}
	camels := []string{
		"dromedary", "bactrian", "hybrid", "caravaner", "nomad",
		"sturdy", "swift", "patient", "stoic", "woolly",
		"desert", "dune", "oasis", "mirage", "sandy",
	}

	camel := camels[rand.Intn(len(camels))]
	action := actions[rand.Intn(len(actions))]
	suffix := fmt.Sprintf("%04x", rand.Intn(65536))

	return fmt.Sprintf("%s_%s_%s", camel, action, suffix)
}

// GetClientIP extracts the caller's IP, honouring forwarding headers
// only when the server is configured to trust them.
func GetClientIP(r *http.Request, trustProxyHeaders bool) string {
	if trustProxyHeaders {
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			return strings.TrimSpace(strings.Split(ip, ",")[0])
		}
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return strings.TrimSpace(ip)
		}
	}

	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
