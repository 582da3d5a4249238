package speech

import "time"

type clientOptions struct {
	endpoint       string
	streamEndpoint string
	dialer         *Dialer
	chunkInterval  time.Duration
}

// Option customizes a Volcengine client.
type Option func(*clientOptions)

// WithEndpoint overrides the websocket URL of every call.
func WithEndpoint(url string) Option {
	return func(o *clientOptions) {
		o.endpoint = url
		o.streamEndpoint = url
	}
}

// WithStreamEndpoint overrides the websocket URL of streaming recognition only.
func WithStreamEndpoint(url string) Option {
	return func(o *clientOptions) { o.streamEndpoint = url }
}

// WithDialer overrides the dial and retry settings.
func WithDialer(d *Dialer) Option {
	return func(o *clientOptions) { o.dialer = d }
}

// WithChunkInterval sets the pause between uploaded audio chunks; zero sends as fast as
// the source yields.
func WithChunkInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.chunkInterval = d }
}

func buildOptions(endpoint, streamEndpoint string, opts []Option) clientOptions {
	o := clientOptions{
		endpoint:       endpoint,
		streamEndpoint: streamEndpoint,
		dialer:         DefaultDialer(),
		chunkInterval:  asrChunkInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
