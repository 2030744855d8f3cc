package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"

	"boostfix/pkg/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server *http.Server
	certs  *certStore
	done   chan struct{}
}

type Params struct {
	fx.In
	Config  *config.Config
	Handler http.Handler
}

// listenAddr accepts either a bare port ("8080") or host:port.
func listenAddr(addr string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return ":" + addr
}

func NewHttpServer(p Params) (*Server, error) {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         listenAddr(cfg.Server.Addr),
			Handler:      p.Handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		done: make(chan struct{}),
	}

	if !cfg.TLS.Enable {
		return srv, nil
	}

	srv.certs = &certStore{certPath: cfg.TLS.CertPath, keyPath: cfg.TLS.KeyPath}
	if err := srv.certs.load(); err != nil {
		return nil, fmt.Errorf("load tls key pair: %w", err)
	}
	srv.server.TLSConfig = &tls.Config{
		MinVersion:     tls.VersionTLS12,
		GetCertificate: srv.certs.get,
	}

	return srv, nil
}

// certStore serves the current key pair and swaps it when the files on disk
// change. A failed reload keeps the previous pair.
type certStore struct {
	certPath string
	keyPath  string
	cert     atomic.Pointer[tls.Certificate]
}

func (c *certStore) load() error {
	cert, err := tls.LoadX509KeyPair(c.certPath, c.keyPath)
	if err != nil {
		return err
	}
	c.cert.Store(&cert)
	return nil
}

func (c *certStore) get(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	cert := c.cert.Load()
	if cert == nil {
		return nil, errors.New("no TLS cert loaded")
	}
	return cert, nil
}

func (c *certStore) reload() {
	if err := c.load(); err != nil {
		zap.L().Error("failed to reload TLS cert, keeping previous", zap.Error(err))
		return
	}
	zap.L().Info("TLS certificate reloaded")
}

// watch follows the parent directories of the key pair so that symlink swaps
// of mounted secrets are observed.
func (c *certStore) watch(done <-chan struct{}) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("failed to create fsnotify watcher", zap.Error(err))
		return
	}
	defer watcher.Close()

	targets := map[string]struct{}{
		filepath.Clean(c.certPath): {},
		filepath.Clean(c.keyPath):  {},
	}
	for path := range targets {
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			zap.L().Warn("failed to watch tls directory", zap.String("path", path), zap.Error(err))
		}
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if _, tracked := targets[filepath.Clean(event.Name)]; !tracked && !strings.Contains(event.Name, "..data") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				c.reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Error("watcher error", zap.Error(err))
		case <-done:
			return
		}
	}
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", srv.server.Addr, err)
			}

			if srv.certs != nil {
				go srv.certs.watch(srv.done)
			}

			go func() {
				var err error
				if srv.server.TLSConfig != nil {
					zap.L().Info("Starting HTTP server with tls", zap.String("addr", ln.Addr().String()))
					err = srv.server.ServeTLS(ln, "", "")
				} else {
					zap.L().Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
					err = srv.server.Serve(ln)
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("HTTP server stopped unexpectedly", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			zap.L().Info("Shutting down HTTP server gracefully...")
			close(srv.done)
			return srv.server.Shutdown(ctx)
		},
	})
}
