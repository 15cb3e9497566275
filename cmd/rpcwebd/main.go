// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/internal/control"
	"github.com/bitcoin-rpc-web/rpcweb/internal/version"
	"github.com/bitcoin-rpc-web/rpcweb/rpcclient"
	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout is how long exit waits for queued jobs to drain.
const shutdownTimeout = 10 * time.Second

// logStatus writes a one line summary of the dashboard and the notification
// feed.
func logStatus(svc *control.Service) {
	snap, err := svc.Snapshot()
	if snap == nil {
		if err != nil {
			rpcwLog.Infof("No dashboard data yet: %v", err)
		} else {
			rpcwLog.Info("No dashboard data yet")
		}
	} else {
		rpcwLog.Infof("Chain %s height %d/%d (%.2f%%), %d peers, mempool "+
			"%d txns (%s), received %s, sent %s, up %s", snap.Chain.Chain,
			snap.Chain.Blocks, snap.Chain.Headers,
			snap.Chain.VerificationProgress*100, len(snap.Peers),
			snap.Mempool.Transactions, humanize.IBytes(snap.Mempool.Bytes),
			humanize.IBytes(snap.Traffic.TotalBytesRecv),
			humanize.IBytes(snap.Traffic.TotalBytesSent),
			time.Duration(snap.UptimeSecs)*time.Second)
		if err != nil {
			rpcwLog.Warnf("Last refresh failed: %v", err)
		}
	}

	state := svc.FeedState()
	if state.Address == "" {
		return
	}
	stats := svc.FeedStats()
	rpcwLog.Infof("Notifications from %s: connected %v, %s received, %d "+
		"buffered of %d", state.Address, state.Connected,
		humanize.Comma(int64(stats.EventsSeen)), state.Buffered,
		state.BufferLimit)
}

// statusLogger logs the status every interval until ctx is done.
func statusLogger(ctx context.Context, svc *control.Service, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logStatus(svc)
		}
	}
}

// rpcwebdMain is the real main function for rpcwebd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func rpcwebdMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	cfg, _, err := loadConfig(appName, os.Args[1:])
	if err != nil {
		usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
		fmt.Fprintln(os.Stderr, err)
		var e errSuppressUsage
		if !errors.As(err, &e) {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	// Get a context that will be canceled when a shutdown signal has been
	// triggered from an OS signal such as SIGINT (Ctrl+C).
	ctx := shutdownListener()
	defer rpcwLog.Info("Shutdown complete")

	// Show version at startup.
	rpcwLog.Infof("Version %s (Go version %s %s/%s)", version.Full(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if cfg.NoFileLogging {
		rpcwLog.Info("File logging disabled")
	}
	if cfg.memLimit > 0 {
		debug.SetMemoryLimit(int64(cfg.memLimit))
		rpcwLog.Infof("Soft memory limit: %s", humanize.IBytes(cfg.memLimit))
	}

	policy := rpcclient.HostPolicy{AllowInsecure: cfg.AllowInsecureRPC}
	if policy.AllowInsecure {
		rpcwLog.Warn("RPC credentials may be sent to hosts outside loopback " +
			"and private networks")
	}
	var proxy *rpcclient.ProxyConfig
	if cfg.Proxy != "" {
		proxy = &rpcclient.ProxyConfig{
			Addr: cfg.Proxy,
			User: cfg.ProxyUser,
			Pass: cfg.ProxyPass,
		}
	}

	var desc strings.Builder
	cfg.describe(&desc)
	rpcwLog.Infof("Using %s", desc.String())

	svc, err := control.New(&control.ServiceConfig{
		Config: control.Config{
			URL:          cfg.RPCURL,
			User:         cfg.RPCUser,
			Pass:         cfg.RPCPass,
			Wallet:       cfg.Wallet,
			ZMQAddr:      cfg.ZMQAddr,
			BufferLimit:  cfg.ZMQBuffer,
			PollInterval: cfg.PollInterval,
		},
		Policy:      policy,
		HTTPClient:  rpcclient.NewHTTPClient(proxy),
		Workers:     cfg.Workers,
		MaxInFlight: cfg.MaxInFlight,
	})
	if err != nil {
		rpcwLog.Errorf("Unable to start: %v", err)
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(),
			shutdownTimeout)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			rpcwLog.Warnf("RPC requests still running at exit: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	if cfg.StatusInterval > 0 {
		g.Go(func() error {
			return statusLogger(gctx, svc, cfg.StatusInterval)
		})
	}
	if err := g.Wait(); err != nil {
		rpcwLog.Errorf("%v", err)
		return err
	}
	logStatus(svc)
	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := rpcwebdMain(); err != nil {
		os.Exit(1)
	}
}
