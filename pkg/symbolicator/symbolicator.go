// Package symbolicator resolves addresses to symbol names, one batched request per binary image.
package symbolicator

import (
	"context"

	"github.com/apex/log"
)

// BinaryImageInfo identifies the symbol file and load address of a binary image.
//
// It is comparable and used as the grouping key of a symbolication pass.
type BinaryImageInfo struct {
	// File is the path of the symbol file
	File string
	// LoadAddress is a hex string with a 0x prefix
	LoadAddress  string
	Architecture string
}

// InfoProvider returns the binary image info for an address, or nil when none is available.
type InfoProvider interface {
	BinaryImageInfo(ctx context.Context, addr string) (*BinaryImageInfo, error)
}

// InfoProviderFunc adapts a function to the InfoProvider interface.
type InfoProviderFunc func(ctx context.Context, addr string) (*BinaryImageInfo, error)

func (f InfoProviderFunc) BinaryImageInfo(ctx context.Context, addr string) (*BinaryImageInfo, error) {
	return f(ctx, addr)
}

// Request is one batched symbolication call for a single binary image.
type Request struct {
	SymbolFile   string
	Architecture string
	LoadAddress  string
	Addresses    []string
}

// Service resolves the addresses of a request. The returned slice is in request order
// and may be shorter or longer than Addresses.
type Service interface {
	Symbolicate(ctx context.Context, req Request) ([]string, error)
}

// Symbolicator groups addresses by binary image and calls a Service once per group.
type Symbolicator struct {
	provider InfoProvider
	service  Service
}

// New returns a Symbolicator.
func New(provider InfoProvider, service Service) *Symbolicator {
	return &Symbolicator{
		provider: provider,
		service:  service,
	}
}

type group struct {
	info    BinaryImageInfo
	indices []int
}

// Symbolicate returns one entry per address; an empty string means no symbol is available.
func (s *Symbolicator) Symbolicate(ctx context.Context, addrs []string) ([]string, error) {
	results := make([]string, len(addrs))

	var groups []*group
	lookup := make(map[BinaryImageInfo]*group)
	for idx, addr := range addrs {
		info, err := s.provider.BinaryImageInfo(ctx, addr)
		if err != nil {
			return nil, err
		}
		if info == nil {
			log.WithField("address", addr).Debug("No binary image info")
			continue
		}
		g, ok := lookup[*info]
		if !ok {
			g = &group{info: *info}
			lookup[*info] = g
			groups = append(groups, g)
		}
		g.indices = append(g.indices, idx)
	}

	for _, g := range groups {
		req := Request{
			SymbolFile:   g.info.File,
			Architecture: g.info.Architecture,
			LoadAddress:  g.info.LoadAddress,
			Addresses:    make([]string, 0, len(g.indices)),
		}
		for _, idx := range g.indices {
			req.Addresses = append(req.Addresses, addrs[idx])
		}

		log.WithFields(log.Fields{
			"file":      g.info.File,
			"arch":      g.info.Architecture,
			"load":      g.info.LoadAddress,
			"addresses": len(req.Addresses),
		}).Debug("Symbolicating")

		symbols, err := s.service.Symbolicate(ctx, req)
		if err != nil {
			return nil, err
		}
		for i, sym := range symbols {
			if i >= len(g.indices) {
				break
			}
			results[g.indices[i]] = sym
		}
	}

	return results, nil
}
