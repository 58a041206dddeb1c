package hier

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimitedProvider wraps a Provider with a token-bucket limiter on
// each suspension point, the same shape backend/cache uses in front of
// its upstream remote to cap requests-per-second to the backing store.
type rateLimitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// newRateLimitedProvider returns p unchanged if opt disables throttling
// (RemoteCallsPerSecond <= 0), so a zero-value Options never pays for a
// limiter it doesn't need.
func newRateLimitedProvider(p Provider, opt Options) Provider {
	if opt.RemoteCallsPerSecond <= 0 {
		return p
	}
	burst := opt.RemoteBurst
	if burst < 1 {
		burst = 1
	}
	return &rateLimitedProvider{
		Provider: p,
		limiter:  rate.NewLimiter(rate.Limit(opt.RemoteCallsPerSecond), burst),
	}
}

func (r *rateLimitedProvider) ChildInfos(ctx context.Context, nodeID string) ([]ChildInfo, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(KindTransport, err, "rate limit wait")
	}
	return r.Provider.ChildInfos(ctx, nodeID)
}

func (r *rateLimitedProvider) CreateNodeState(ctx context.Context, nodeID string, parent *NodeEntry) (NodeState, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(KindTransport, err, "rate limit wait")
	}
	return r.Provider.CreateNodeState(ctx, nodeID, parent)
}

func (r *rateLimitedProvider) CreatePropertyState(ctx context.Context, propID string, parent *NodeEntry) (PropertyState, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(KindTransport, err, "rate limit wait")
	}
	return r.Provider.CreatePropertyState(ctx, propID, parent)
}

func (r *rateLimitedProvider) CreateDeepNodeState(ctx context.Context, anchor *NodeEntry, suffix []PathElement) (*NodeEntry, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, wrapErr(KindTransport, err, "rate limit wait")
	}
	return r.Provider.CreateDeepNodeState(ctx, anchor, suffix)
}
