package resilience

import (
	"context"

	"github.com/MrWong99/oralread/pkg/provider/stt"
)

// STTFailover implements [stt.Provider] over several providers. A stream is
// opened on the first provider whose breaker admits the call and whose dial
// succeeds. A stream that is already open is not migrated when its provider
// fails later.
type STTFailover struct {
	f *Failover[stt.Provider]
}

var _ stt.Provider = (*STTFailover)(nil)

// NewSTTFailover returns an empty failover; add providers with Add.
func NewSTTFailover(cfg BreakerConfig) *STTFailover {
	return &STTFailover{f: NewFailover[stt.Provider](cfg)}
}

// Add registers p under name. Providers are tried in the order added.
func (s *STTFailover) Add(name string, p stt.Provider) *STTFailover {
	s.f.Add(name, p)
	return s
}

// Len returns the number of registered providers.
func (s *STTFailover) Len() int { return s.f.Len() }

// States reports each provider's breaker state.
func (s *STTFailover) States() map[string]State { return s.f.States() }

// StartStream opens a stream on the first healthy provider.
func (s *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.Stream, error) {
	return Call(ctx, s.f, func(ctx context.Context, _ string, p stt.Provider) (stt.Stream, error) {
		return p.StartStream(ctx, cfg)
	})
}
