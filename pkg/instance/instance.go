package instance

import (
	"os"
	"strconv"
)

// ID names the running process for logs and lock ownership. Heroku-style
// dyno names win, then an explicit INSTANCE_ID, then the host name.
func ID() string {
	for _, key := range []string{"DYNO", "INSTANCE_ID"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}

// Holder identifies this process uniquely enough to own a distributed lock.
func Holder() string {
	return ID() + ":" + strconv.Itoa(os.Getpid())
}
