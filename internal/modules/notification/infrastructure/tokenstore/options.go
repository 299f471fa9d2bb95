package tokenstore

import (
	"time"

	"OpenCollab/pkg/util"
)

const tokenEntropyBytes = 32

type options struct {
	now      func() time.Time
	generate func() (string, error)
}

type Option func(*options)

// WithClock 替换时间源，测试中用于推进时钟
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithGenerator 替换凭证生成器
func WithGenerator(gen func() (string, error)) Option {
	return func(o *options) {
		if gen != nil {
			o.generate = gen
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		now: time.Now,
		generate: func() (string, error) {
			return util.GenerateSecureToken(tokenEntropyBytes)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
