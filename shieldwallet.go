package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/PIVX-Labs/pivx-shield/bridge"
	"github.com/PIVX-Labs/pivx-shield/engine"
	"github.com/PIVX-Labs/pivx-shield/rpc/legacyrpc"
	"github.com/PIVX-Labs/pivx-shield/wallet"
	"github.com/PIVX-Labs/pivx-shield/walletdb"
	"github.com/btcsuite/go-socks/socks"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	// dialTimeout bounds the connection to the engine.
	dialTimeout = 30 * time.Second

	// shutdownTimeout bounds the time running RPC requests are given to
	// finish on shutdown.
	shutdownTimeout = 10 * time.Second
)

var (
	cfg *config
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Work around defer not working after os.Exit.
	if err := walletMain(); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the program
// can be exited with an error exit status.
func walletMain() error {
	// Load configuration and parse command line.  This function also
	// initializes logging and configures it accordingly.
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = tcfg
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version %s (%s)", version(), activeNet.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addInterruptHandler(cancel)

	netDir := networkDir(cfg.AppDataDir.Value, activeNet)
	if err := checkCreateDir(netDir); err != nil {
		log.Error(err)
		return err
	}

	b, err := startBridge(ctx, cfg)
	if err != nil {
		log.Errorf("Unable to connect to the engine: %v", err)
		return err
	}
	defer b.Stop()

	db, err := walletdb.Open(filepath.Join(netDir, walletDbName))
	if err != nil {
		log.Errorf("Unable to open the wallet database: %v", err)
		return err
	}
	defer db.Close()
	if fps, err := db.Fingerprints(); err == nil {
		log.Debugf("Wallet database holds %d wallet(s)", len(fps))
	}

	w, err := openWallet(ctx, cfg, engine.NewClient(b), db)
	if err != nil {
		log.Errorf("Unable to open the wallet: %v", err)
		return err
	}
	w.Start()

	listeners := make([]net.Listener, 0, len(cfg.RPCListen))
	for _, addr := range cfg.RPCListen {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			log.Errorf("Unable to listen on %s: %v", addr, err)
			for _, l := range listeners {
				l.Close()
			}
			w.Stop()
			return err
		}
		listeners = append(listeners, lis)
	}
	rpcServer := legacyrpc.NewServer(&legacyrpc.Options{
		Username:       cfg.RPCUser,
		Password:       cfg.RPCPass,
		RequestTimeout: cfg.RPCTimeout,
	}, w, db)

	g, gctx := errgroup.WithContext(ctx)
	for _, lis := range listeners {
		lis := lis
		g.Go(func() error {
			return rpcServer.Serve(lis)
		})
	}
	if cfg.SaveInterval > 0 {
		g.Go(func() error {
			autoSave(gctx, w, db, cfg.SaveInterval)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout)
		defer cancel()
		err := rpcServer.Stop(shutdownCtx)

		w.Stop()
		if err := saveWallet(w, db); err != nil {
			log.Errorf("Unable to save the wallet: %v", err)
		}
		return err
	})

	err = g.Wait()
	if err != nil {
		log.Errorf("Shutdown with error: %v", err)
	}
	log.Info("Shutdown complete")
	return err
}

// startBridge connects to the engine and starts the bridge multiplexing the
// wallet's calls over the connection.
func startBridge(ctx context.Context, cfg *config) (*bridge.Bridge, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	var transport bridge.Transport
	if cfg.EngineGRPC != "" {
		opts := []grpc.DialOption{grpc.WithInsecure(), grpc.WithBlock()}
		if cfg.Proxy != "" {
			proxy := &socks.Proxy{
				Addr:     cfg.Proxy,
				Username: cfg.ProxyUser,
				Password: cfg.ProxyPass,
			}
			opts = append(opts, grpc.WithContextDialer(
				func(_ context.Context, addr string) (net.Conn, error) {
					return proxy.Dial("tcp", addr)
				}))
		}
		t, err := bridge.DialGRPC(dialCtx, cfg.EngineGRPC, opts...)
		if err != nil {
			return nil, err
		}
		transport = t
	} else {
		t, err := bridge.DialWebSocket(dialCtx, &bridge.WebSocketConfig{
			URL:              cfg.EngineURL,
			Proxy:            cfg.Proxy,
			ProxyUser:        cfg.ProxyUser,
			ProxyPass:        cfg.ProxyPass,
			HandshakeTimeout: dialTimeout,
		})
		if err != nil {
			return nil, err
		}
		transport = t
	}

	b := bridge.New(&bridge.Config{
		Transport:   transport,
		CallTimeout: cfg.CallTimeout,
	})
	b.Start()
	return b, nil
}

// autoSave saves the wallet to the database every interval until ctx is
// done.
func autoSave(ctx context.Context, w *wallet.Wallet, db *walletdb.DB,
	interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := saveWallet(w, db); err != nil {
				log.Errorf("Unable to save the wallet: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
