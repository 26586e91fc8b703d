package engine

import (
	"context"

	"hostsync/internal/model"
)

// ChunkedGateway is a Gateway decorator that splits the mutating host
// calls into fixed-size chunks and activates after each chunk. A full
// activation queue slows the site down, so instead of staging one
// giant batch we commit bounded portions as we go.
//
// Only AddHosts, ModifyHosts and DeleteHosts are chunked; every other
// call passes straight through. Because the chunked calls activate
// themselves, RequiresActivation reports false.
type ChunkedGateway struct {
	Gateway
	size int
}

// NewChunkedGateway wraps gw so mutating host calls run in chunks of
// size hosts.
func NewChunkedGateway(gw Gateway, size int) *ChunkedGateway {
	return &ChunkedGateway{Gateway: gw, size: size}
}

func chunked[T any](items []T, size int) [][]T {
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// AddHosts submits the hosts in chunks, activating after each one.
// Per-host failures are accumulated across chunks.
func (g *ChunkedGateway) AddHosts(ctx context.Context, hosts []model.HostCreate) (model.HostResult, error) {
	var result model.HostResult
	for _, chunk := range chunked(hosts, g.size) {
		partial, err := g.Gateway.AddHosts(ctx, chunk)
		if err != nil {
			return result, err
		}
		result.Merge(partial)
		if _, err := g.Gateway.ActivateChanges(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// ModifyHosts submits the updates in chunks, activating after each one.
func (g *ChunkedGateway) ModifyHosts(ctx context.Context, hosts []model.HostModify) (model.HostResult, error) {
	var result model.HostResult
	for _, chunk := range chunked(hosts, g.size) {
		partial, err := g.Gateway.ModifyHosts(ctx, chunk)
		if err != nil {
			return result, err
		}
		result.Merge(partial)
		if _, err := g.Gateway.ActivateChanges(ctx); err != nil {
			return result, err
		}
	}
	return result, nil
}

// DeleteHosts deletes in chunks, activating after each one.
func (g *ChunkedGateway) DeleteHosts(ctx context.Context, hostnames []string) error {
	for _, chunk := range chunked(hostnames, g.size) {
		if err := g.Gateway.DeleteHosts(ctx, chunk); err != nil {
			return err
		}
		if _, err := g.Gateway.ActivateChanges(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RequiresActivation reports false: the chunked calls activate the
// changes themselves.
func (g *ChunkedGateway) RequiresActivation() bool {
	return false
}
