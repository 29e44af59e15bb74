package logkv

import "time"

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 4000
)

type config struct {
	host        string
	port        int
	dialTimeout time.Duration
	readTimeout time.Duration
}

type Option func(*config)

func WithHost(host string) Option {
	return func(c *config) {
		c.host = host
	}
}

func WithPort(port int) Option {
	return func(c *config) {
		c.port = port
	}
}

// WithDialTimeout bounds how long Connect waits for the TCP dial.
func WithDialTimeout(d time.Duration) Option {
	return func(c *config) {
		c.dialTimeout = d
	}
}

// WithReadTimeout bounds how long each request waits for its response.
// Zero means wait forever.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) {
		c.readTimeout = d
	}
}

func defaultConfig() config {
	return config{
		host: DefaultHost,
		port: DefaultPort,
	}
}
