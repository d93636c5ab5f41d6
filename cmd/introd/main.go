package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"xdao.co/intro/cidutil"
	"xdao.co/intro/config"
	"xdao.co/intro/httpapi"
	"xdao.co/intro/ledger"
	"xdao.co/intro/ledger/sqlite"
	"xdao.co/intro/logs"
	"xdao.co/intro/processor"
	"xdao.co/intro/rpc"
	"xdao.co/intro/snapshot"
	"xdao.co/intro/storage"
	"xdao.co/intro/storage/grpccas"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet("introd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML config file (defaults apply when empty)")
	grpcAddr := fs.String("grpc", "", "Override server.grpc_addr")
	httpAddr := fs.String("http", "", "Override server.http_addr (\"-\" disables HTTP)")
	dbPath := fs.String("db", "", "Override ledger.sqlite_path")
	restore := fs.String("restore", "", "Import this snapshot CID before serving")
	snapshotOnExit := fs.Bool("snapshot-on-exit", false, "Export a snapshot on shutdown")
	printConfig := fs.Bool("print-config", false, "Print the effective config as YAML and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 2
		}
	}
	if *grpcAddr != "" {
		cfg.Server.GRPCAddr = *grpcAddr
	}
	switch *httpAddr {
	case "":
	case "-":
		cfg.Server.HTTPAddr = ""
	default:
		cfg.Server.HTTPAddr = *httpAddr
	}
	if *dbPath != "" {
		cfg.Ledger.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 2
	}
	if *printConfig {
		b, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(errOut, "config: %v\n", err)
			return 1
		}
		_, _ = out.Write(b)
		return 0
	}

	level, _ := config.ParseLevel(cfg.Log.Level)
	logger, err := logs.New(errOut, level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(errOut, "logs: %v\n", err)
		return 2
	}

	if err := serve(ctx, cfg, logger, *restore, *snapshotOnExit); err != nil {
		logger.Error("introd stopped", "err", err)
		return 1
	}
	return 0
}

func openStore(cfg config.Config) (ledger.Store, func() error, error) {
	if cfg.Ledger.SQLitePath == "" {
		return ledger.NewMemStore(), func() error { return nil }, nil
	}
	s, err := sqlite.Open(cfg.Ledger.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, restore string, snapshotOnExit bool) error {
	programID, err := cfg.ProgramID()
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	cas, closeCAS, err := cfg.Snapshot.Open()
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer closeCAS()
	if restore != "" {
		if err := restoreSnapshot(ctx, cas, restore, store, logger); err != nil {
			return err
		}
	}

	bank := ledger.NewBank(store,
		ledger.WithRent(cfg.LedgerRent()),
		ledger.WithLogger(logger),
		ledger.WithMaxLogLines(cfg.Ledger.MaxLogLines),
		ledger.WithProgram(programID, processor.Entrypoint),
	)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	grpcServer := rpc.NewGRPCServer(&rpc.Server{Bank: bank, FaucetMax: cfg.Faucet.MaxLamports}, logger, timeout)
	switch cfg.Server.Snapshots {
	case config.SnapshotsReadOnly, config.SnapshotsReadWrite:
		grpccas.RegisterSnapshotsServer(grpcServer, &grpccas.Server{
			CAS:      cas,
			ReadOnly: cfg.Server.Snapshots == config.SnapshotsReadOnly,
		})
	}

	errc := make(chan error, 2)
	go func() { errc <- grpcServer.Serve(lis) }()
	logger.Info("introd listening", "grpc", lis.Addr().String(), "program", programID.String())

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		api := &httpapi.API{Bank: bank, ProgramID: programID, Logger: logger}
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           api.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		logger.Info("introd http listening", "http", cfg.Server.HTTPAddr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errc:
	}

	grpcServer.GracefulStop()
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
	}

	if snapshotOnExit {
		id, n, err := snapshot.Export(context.Background(), store, cas)
		if err != nil {
			return errors.Join(serveErr, err)
		}
		logger.Info("snapshot exported", "cid", id.String(), "accounts", n)
	}
	return serveErr
}

func restoreSnapshot(ctx context.Context, cas storage.CAS, ref string, store ledger.Store, logger *slog.Logger) error {
	id, err := cidutil.Parse(ref)
	if err != nil {
		return err
	}
	n, err := snapshot.Import(ctx, cas, id, store)
	if err != nil {
		return err
	}
	logger.Info("snapshot restored", "cid", ref, "accounts", n)
	return nil
}
