// Package bundle packs CAS blocks into a deterministic TAR archive so a
// snapshot can be moved between hosts that share no store.
package bundle

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/intro/cidutil"
	"xdao.co/intro/storage"
)

// FormatVersion is the index.json schema version.
const FormatVersion = 1

// SnapshotLabel names the snapshot root in bundles written by the CLI.
const SnapshotLabel = "snapshot"

var (
	ErrMalformed     = errors.New("bundle: malformed archive")
	ErrMissingIndex  = errors.New("bundle: archive has no index.json")
	ErrDanglingLabel = errors.New("bundle: label names a block not in the archive")
)

var epoch = time.Unix(0, 0).UTC()

// Index describes the archive contents.
type Index struct {
	Version int               `json:"version"`
	Blocks  []Block           `json:"blocks"`
	Labels  map[string]string `json:"labels,omitempty"`
}

type Block struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

// Label returns the CID recorded under name.
func (idx Index) Label(name string) (cid.Cid, error) {
	s, ok := idx.Labels[name]
	if !ok {
		return cid.Undef, fmt.Errorf("bundle: no label %q", name)
	}
	return cidutil.Parse(s)
}

// Export writes the blocks for ids, read from cas, followed by index.json.
// Entries are sorted by CID and headers are normalized, so equal inputs give
// byte-identical archives.
func Export(ctx context.Context, w io.Writer, cas storage.CAS, ids []cid.Cid, labels map[string]cid.Cid) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if err := cidutil.Check(id); err != nil {
			return err
		}
		uniq[id.String()] = id
	}
	names := make([]string, 0, len(uniq))
	for s := range uniq {
		names = append(names, s)
	}
	sort.Strings(names)

	idx := Index{Version: FormatVersion, Blocks: make([]Block, 0, len(names))}
	for name, id := range labels {
		if name == "" {
			return fmt.Errorf("bundle: empty label name")
		}
		if _, ok := uniq[id.String()]; !ok {
			return fmt.Errorf("%w: %s -> %s", ErrDanglingLabel, name, id)
		}
		if idx.Labels == nil {
			idx.Labels = map[string]string{}
		}
		idx.Labels[name] = id.String()
	}

	tw := tar.NewWriter(w)
	for _, s := range names {
		if err := ctx.Err(); err != nil {
			_ = tw.Close()
			return err
		}
		id := uniq[s]
		b, err := cas.Get(ctx, id)
		if err != nil {
			_ = tw.Close()
			return fmt.Errorf("bundle: read %s: %w", s, err)
		}
		if !cidutil.Verify(id, b) {
			_ = tw.Close()
			return storage.ErrCIDMismatch
		}
		if err := writeEntry(tw, "blocks/"+s, b); err != nil {
			_ = tw.Close()
			return err
		}
		idx.Blocks = append(idx.Blocks, Block{CID: s, Size: len(b)})
	}

	// Map keys are emitted sorted by encoding/json.
	b, err := json.Marshal(idx)
	if err != nil {
		_ = tw.Close()
		return err
	}
	if err := writeEntry(tw, "index.json", append(b, '\n')); err != nil {
		_ = tw.Close()
		return err
	}
	return tw.Close()
}

// Import copies every block in the archive into cas and returns the index.
// Each block must hash to the CID in its entry name; unknown entries, duplicates
// and labels pointing outside the archive are rejected.
func Import(ctx context.Context, r io.Reader, cas storage.CAS) (Index, error) {
	if cas == nil {
		return Index{}, fmt.Errorf("bundle: nil CAS")
	}
	tr := tar.NewReader(r)
	seen := map[string]struct{}{}
	var idx *Index

	for {
		if err := ctx.Err(); err != nil {
			return Index{}, err
		}
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Index{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		name := cleanPath(h.Name)
		if name == "" || h.Typeflag != tar.TypeReg {
			return Index{}, fmt.Errorf("%w: entry %q", ErrMalformed, h.Name)
		}

		if name == "index.json" {
			if idx != nil {
				return Index{}, fmt.Errorf("%w: duplicate index.json", ErrMalformed)
			}
			var v Index
			if err := json.NewDecoder(tr).Decode(&v); err != nil {
				return Index{}, fmt.Errorf("%w: index.json: %v", ErrMalformed, err)
			}
			if v.Version != FormatVersion {
				return Index{}, fmt.Errorf("%w: index version %d", ErrMalformed, v.Version)
			}
			idx = &v
			continue
		}

		s, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			return Index{}, fmt.Errorf("%w: unknown entry %s", ErrMalformed, name)
		}
		id, err := cidutil.Parse(s)
		if err != nil {
			return Index{}, err
		}
		if _, dup := seen[s]; dup {
			return Index{}, fmt.Errorf("%w: duplicate block %s", ErrMalformed, s)
		}
		seen[s] = struct{}{}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return Index{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if !cidutil.Verify(id, payload) {
			return Index{}, storage.ErrCIDMismatch
		}
		got, err := cas.Put(ctx, payload)
		if err != nil {
			return Index{}, err
		}
		if !got.Equals(id) {
			return Index{}, storage.ErrCIDMismatch
		}
	}

	if idx == nil {
		return Index{}, ErrMissingIndex
	}
	for name, s := range idx.Labels {
		if _, ok := seen[s]; !ok {
			return Index{}, fmt.Errorf("%w: %s -> %s", ErrDanglingLabel, name, s)
		}
	}
	return *idx, nil
}

func writeEntry(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
		Format:   tar.FormatUSTAR,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(content))
	return err
}

func cleanPath(name string) string {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
