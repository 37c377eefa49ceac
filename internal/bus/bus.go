package bus

import (
	"context"
	"fmt"
	"maps"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// New creates a new event bus based on configuration.
// "channel" returns an in-process ChannelBus, "nats" a NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

type metadataKey struct{}

// WithMetadata attaches message metadata (trace and request ids) to ctx.
// Publish copies it onto every message sent with that context.
func WithMetadata(ctx context.Context, md map[string]string) context.Context {
	merged := maps.Clone(metadataFrom(ctx))
	if merged == nil {
		merged = make(map[string]string, len(md))
	}
	maps.Copy(merged, md)
	return context.WithValue(ctx, metadataKey{}, merged)
}

func metadataFrom(ctx context.Context) map[string]string {
	md, _ := ctx.Value(metadataKey{}).(map[string]string)
	return md
}

func newMetadata(ctx context.Context) map[string]string {
	md := maps.Clone(metadataFrom(ctx))
	if md == nil {
		md = make(map[string]string)
	}
	return md
}
