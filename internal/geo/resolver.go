package geo

import (
	"context"

	"github.com/rs/zerolog/log"
)

// OffsetSource identifies which tier of the fallback chain produced an offset.
type OffsetSource string

const (
	// SourceLive means a fresh geolocation lookup succeeded.
	SourceLive OffsetSource = "live"
	// SourceCached means the offset came from the persisted config blob.
	SourceCached OffsetSource = "cached"
	// SourceUTC means both tiers failed and UTC was assumed.
	SourceUTC OffsetSource = "utc"
)

// Resolved is the outcome of one offset resolution. Geolocation is non-nil
// only when Source is SourceLive.
type Resolved struct {
	OffsetSeconds int
	Source        OffsetSource
	Geolocation   *Geolocation
}

// Resolver derives a UTC offset through the fallback chain: live geolocation,
// then the cached offset from a prior successful lookup, then UTC. Live
// lookups fail transiently (upstream outages, loopback IPs in local testing),
// remembered offsets are usually still right, and UTC is a deterministic last
// resort that never fails the request.
type Resolver struct {
	client *Client
}

// NewResolver creates a Resolver over the given upstream client.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// ResolveUTCOffset runs the fallback chain. clientIP may be empty and
// cachedOffset may be nil; first tier to produce a value wins.
func (r *Resolver) ResolveUTCOffset(ctx context.Context, clientIP string, cachedOffset *int) Resolved {
	if clientIP != "" {
		if loc := r.client.LookupGeolocation(ctx, clientIP); loc != nil {
			return Resolved{
				OffsetSeconds: loc.OffsetSeconds,
				Source:        SourceLive,
				Geolocation:   loc,
			}
		}
	}

	if cachedOffset != nil {
		log.Debug().Int("offset", *cachedOffset).Msg("Falling back to cached timezone offset")
		return Resolved{OffsetSeconds: *cachedOffset, Source: SourceCached}
	}

	log.Debug().Msg("No geolocation and no cached offset, assuming UTC")
	return Resolved{OffsetSeconds: 0, Source: SourceUTC}
}
