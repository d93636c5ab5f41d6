// Package casconfig opens the snapshot CAS backends named in configuration.
package casconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/intro/storage"
	"xdao.co/intro/storage/grpccas"
	"xdao.co/intro/storage/localfs"
)

// Config lists snapshot backends in read order.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to all backends and require CID equality (see storage.Mirror)
//
// Example:
//
//	write_policy: all
//	backends:
//	  - name: localfs
//	    dir: /var/lib/introd/snapshots
//	  - name: grpc
//	    target: peer.example:7400
//	    timeout: 5s
type Config struct {
	WritePolicy string          `yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `yaml:"backends"`
}

type BackendConfig struct {
	// Name is the backend kind: "localfs", "memory" or "grpc".
	Name string `yaml:"name"`
	// ID is an optional stable alias used in per-backend CID maps. Defaults to Name.
	ID  string `yaml:"id,omitempty"`
	Dir string `yaml:"dir,omitempty"`
	// Target is the host:port of a peer introd serving its snapshot store.
	Target string `yaml:"target,omitempty"`
	// Timeout bounds the dial and each RPC for grpc backends.
	Timeout string `yaml:"timeout,omitempty"`
}

func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]struct{}, len(c.Backends))
	for _, b := range c.Backends {
		switch b.Name {
		case "localfs":
			if b.Dir == "" {
				return fmt.Errorf("casconfig: backend %q requires dir", b.id())
			}
		case "memory":
		case "grpc":
			if b.Target == "" {
				return fmt.Errorf("casconfig: backend %q requires target", b.id())
			}
			if b.Timeout != "" {
				if d, err := time.ParseDuration(b.Timeout); err != nil || d < 0 {
					return fmt.Errorf("casconfig: backend %q: invalid timeout %q", b.id(), b.Timeout)
				}
			}
		case "":
			return errors.New("casconfig: backend name is required")
		default:
			return fmt.Errorf("casconfig: unknown backend %q", b.Name)
		}
		if _, ok := seen[b.id()]; ok {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = struct{}{}
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// Open opens every backend. A single backend is returned as is. The close
// func releases remote connections and is never nil on success.
func (c Config) Open() (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for _, fn := range closers {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}

	named := make([]storage.NamedCAS, 0, len(c.Backends))
	for _, b := range c.Backends {
		var cas storage.CAS
		switch b.Name {
		case "localfs":
			fs, err := localfs.New(b.Dir)
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("casconfig: open %q: %w", b.id(), err)
			}
			cas = fs
		case "memory":
			cas = storage.NewMemCAS()
		case "grpc":
			// Validate has already checked the duration.
			timeout, _ := time.ParseDuration(b.Timeout)
			client, err := grpccas.Dial(b.Target, grpccas.DialOptions{Timeout: timeout})
			if err != nil {
				_ = closeAll()
				return nil, nil, fmt.Errorf("casconfig: dial %q: %w", b.id(), err)
			}
			client.Timeout = timeout
			closers = append(closers, client.Close)
			cas = client
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
	}

	if len(named) == 1 {
		return named[0].CAS, closeAll, nil
	}
	if c.WritePolicy == "all" {
		return storage.Mirror{Backends: named}, closeAll, nil
	}
	return firstWriter{storage.Mirror{Backends: named}}, closeAll, nil
}

// firstWriter writes to the first backend only and reads through the mirror.
type firstWriter struct {
	storage.Mirror
}

func (f firstWriter) Put(ctx context.Context, b []byte) (cid.Cid, error) {
	return f.Backends[0].CAS.Put(ctx, b)
}
