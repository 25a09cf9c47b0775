package legacyrpc

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/PIVX-Labs/pivx-shield/wallet"
	"github.com/PIVX-Labs/pivx-shield/walletdb"
	"github.com/abesuite/abec/abejson"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options contains the required options for running the legacy RPC server.
type Options struct {
	Username string
	Password string

	// RequestTimeout bounds the time a single request may run.  Zero
	// disables the limit.
	RequestTimeout time.Duration
}

// Server holds the items the RPC server may need to access (auth, wallet,
// database, etc.)
type Server struct {
	httpServer http.Server
	router     *gin.Engine

	wallet *wallet.Wallet
	db     *walletdb.DB

	requestTimeout time.Duration
}

// NewServer creates a new server for serving legacy RPC client connections.
// The database may be nil, in which case savewallet is refused.
func NewServer(opts *Options, w *wallet.Wallet, db *walletdb.DB) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:         router,
		wallet:         w,
		db:             db,
		requestTimeout: opts.RequestTimeout,
	}
	s.httpServer.Handler = router

	var rpc gin.IRoutes = router
	if opts.Username != "" || opts.Password != "" {
		rpc = router.Group("/", gin.BasicAuth(gin.Accounts{
			opts.Username: opts.Password,
		}))
	}
	rpc.POST("/", s.handleJSONRPC)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler returns the HTTP handler serving the JSON-RPC and metrics
// endpoints.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on the listener until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	log.Infof("Listening on %s", lis.Addr())
	err := s.httpServer.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server, waiting for running requests until
// ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	log.Warn("Stopping RPC server...")
	err := s.httpServer.Shutdown(ctx)
	log.Info("RPC server shutdown")
	return err
}

func (s *Server) handleJSONRPC(c *gin.Context) {
	var req abejson.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, makeResponse(nil, nil,
			&abejson.RPCError{
				Code:    abejson.ErrRPCParse.Code,
				Message: err.Error(),
			}))
		return
	}
	if req.Method == "" {
		c.JSON(http.StatusBadRequest, makeResponse(req.ID, nil,
			abejson.ErrRPCInvalidRequest))
		return
	}

	ctx := c.Request.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	log.Debugf("Received RPC request %s", req.Method)
	result, jsonErr := lazyApplyHandler(&req, s.wallet, s.db)(ctx)
	if jsonErr != nil {
		log.Debugf("RPC request %s failed: %v", req.Method, jsonErr)
	}
	c.JSON(http.StatusOK, makeResponse(req.ID, result, jsonErr))
}
