// Command intro-snapd serves a snapshot store to introd peers without running a
// ledger. Backends are configured with the same YAML as introd's snapshot
// section.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"google.golang.org/grpc"
	"gopkg.in/yaml.v3"

	"xdao.co/intro/config"
	"xdao.co/intro/logs"
	"xdao.co/intro/rpc"
	"xdao.co/intro/storage/casconfig"
	"xdao.co/intro/storage/grpccas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr, nil))
}

// run serves until ctx is done. ready, when non-nil, receives the bound address.
func run(ctx context.Context, args []string, errOut io.Writer, ready chan<- string) int {
	fs := flag.NewFlagSet("intro-snapd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	listen := fs.String("listen", "127.0.0.1:7402", "listen address")
	dir := fs.String("dir", "", "serve this localfs directory")
	configPath := fs.String("config", "", "YAML file holding a snapshot backend list")
	readOnly := fs.Bool("read-only", false, "reject Put")
	level := fs.String("log-level", "info", "debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var cfg casconfig.Config
	switch {
	case *configPath != "" && *dir != "":
		fmt.Fprintln(errOut, "use either -config or -dir")
		return 2
	case *configPath != "":
		b, err := os.ReadFile(filepath.Clean(*configPath))
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 2
		}
	case *dir != "":
		cfg.Backends = []casconfig.BackendConfig{{Name: "localfs", Dir: *dir}}
	default:
		fmt.Fprintln(errOut, "missing -dir or -config")
		return 2
	}

	lvl, err := config.ParseLevel(*level)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger, err := logs.New(errOut, lvl, "text")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	cas, closeFn, err := cfg.Open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer closeFn()

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer lis.Close()

	s := grpc.NewServer(grpc.UnaryInterceptor(rpc.UnaryInterceptor(logger, 0)))
	grpccas.RegisterSnapshotsServer(s, &grpccas.Server{CAS: cas, ReadOnly: *readOnly})

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	logger.Info("intro-snapd listening", "addr", lis.Addr().String(), "backends", len(cfg.Backends), "read_only", *readOnly)
	if ready != nil {
		ready <- lis.Addr().String()
	}
	if err := s.Serve(lis); err != nil {
		logger.Error("serve", "err", err)
		return 1
	}
	return 0
}
