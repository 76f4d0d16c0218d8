// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scc-digitalhub/dam-assets-sdk/sdk/auth"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/config"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/assets"
	"github.com/scc-digitalhub/dam-assets-sdk/sdk/services/upload"
)

const shutdownTimeout = 15 * time.Second

// TokenSource is the part of the token provider exposed on /api/token.
type TokenSource interface {
	Credential(ctx context.Context) (auth.Credential, error)
	Invalidate()
}

type Deps struct {
	Assets  *assets.AssetService
	Uploads *upload.UploadService
	Tokens  TokenSource
	// Registry backs /metrics; nil disables HTTP metrics.
	Registry *prometheus.Registry
}

// Server exposes the asset operations over HTTP.
type Server struct {
	conf       config.ServerConfig
	deps       Deps
	logger     log.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(conf config.ServerConfig, deps Deps, logger log.Logger) (*Server, error) {
	if deps.Assets == nil || deps.Uploads == nil || deps.Tokens == nil {
		return nil, errors.New("server needs asset, upload and token services")
	}
	if logger == nil {
		logger = log.NewLogger()
	}

	engine := gin.New()
	if conf.MaxMultipartMemory > 0 {
		engine.MaxMultipartMemory = conf.MaxMultipartMemory
	}

	s := &Server{conf: conf, deps: deps, logger: logger, engine: engine}
	engine.Use(gin.Recovery(), requestID(), accessLog(logger))
	if deps.Registry != nil {
		engine.Use(newHTTPMetrics(deps.Registry).middleware())
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              conf.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.deps.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Registry, promhttp.HandlerOpts{})))
	}

	api := s.engine.Group("/api")
	{
		api.GET("/assets/*path", s.listAssets)
		api.POST("/assets/copy", s.copyAsset)
		api.DELETE("/assets/discarded/*path", s.deleteDiscarded)
		api.DELETE("/asset/*path", s.deleteAsset)
		api.GET("/download/*path", s.downloadAsset)
		api.GET("/get/metadata/*path", s.getMetadata)
		api.PUT("/update/metadata/*path", s.updateMetadata)
		api.GET("/search/metadata", s.searchMetadata)
		api.POST("/folders", s.createFolder)
		api.GET("/token", s.getToken)
		api.POST("/upload/*targetFolder", s.uploadFiles)
	}
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Listening on %s", s.conf.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Infof("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
