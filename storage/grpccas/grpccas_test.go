package grpccas

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/intro/storage"
	"xdao.co/intro/storage/localfs"
	"xdao.co/intro/storage/testkit"
)

func serveCAS(t *testing.T, srv *Server) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	gs := grpc.NewServer()
	RegisterSnapshotsServer(gs, srv)
	go func() {
		_ = gs.Serve(lis)
	}()
	t.Cleanup(gs.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.Dial() }
	client, err := Dial("bufnet", DialOptions{Extra: []grpc.DialOption{
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConformanceOverLocalFS(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		cas, err := localfs.New(t.TempDir())
		if err != nil {
			t.Fatalf("localfs.New: %v", err)
		}
		return serveCAS(t, &Server{CAS: cas})
	})
}

func TestReadOnlyRejectsPut(t *testing.T) {
	backing := storage.NewMemCAS()
	ctx := context.Background()
	id, err := backing.Put(ctx, []byte("snapshot"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	client := serveCAS(t, &Server{CAS: backing, ReadOnly: true})

	if _, err := client.Put(ctx, []byte("other")); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("Put: got %v want ErrReadOnly", err)
	}
	got, err := client.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "snapshot" {
		t.Fatalf("payload mismatch: %q", got)
	}
}

// corruptCAS serves bytes that do not match the requested CID.
type corruptCAS struct{ storage.CAS }

func (corruptCAS) Get(context.Context, cid.Cid) ([]byte, error) { return []byte("garbage"), nil }

func TestGetDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemCAS()
	id, err := backing.Put(ctx, []byte("snapshot"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	client := serveCAS(t, &Server{CAS: corruptCAS{backing}})

	if _, err := client.Get(ctx, id); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("Get: got %v want ErrCIDMismatch", err)
	}
}

func TestMissingCASIsFailedPrecondition(t *testing.T) {
	client := serveCAS(t, &Server{})
	if _, err := client.Put(context.Background(), []byte("x")); err == nil {
		t.Fatalf("expected error from server without a CAS")
	}
}
