package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Alia5/ghostkey/internal/server/api/auth"
)

var wsRegex = regexp.MustCompile(`\s`)

// Server implements the local TCP control API.
type Server struct {
	addr   string
	ln     net.Listener
	logger *slog.Logger
	router *Router
	config ServerConfig
	key    []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new API server. Handlers are registered through Router before
// Start is called.
func New(addr string, config ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		logger: logger,
		config: config,
		router: NewRouter(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Router returns the router used by the API server so callers can register handlers.
func (a *Server) Router() *Router { return a.router }

// Config returns the server configuration.
func (a *Server) Config() ServerConfig { return a.config }

// Addr returns the bound address once the server is started, the configured
// one before.
func (a *Server) Addr() string {
	if a.ln != nil {
		return a.ln.Addr().String()
	}
	return a.addr
}

// Start listens on the configured address and serves incoming API commands.
func (a *Server) Start() error {
	if a.config.Password != "" {
		key, err := auth.DeriveKey(a.config.Password)
		if err != nil {
			return fmt.Errorf("derive API key: %w", err)
		}
		a.key = key
	}
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.ln = ln
	a.logger.Info("API listening", "addr", ln.Addr().String(), "auth", a.key != nil)
	go a.serve()
	return nil
}

// Close stops accepting connections, ends running streams and waits for
// in-flight connections to finish.
func (a *Server) Close() {
	a.cancel()
	if a.ln != nil {
		_ = a.ln.Close()
	}
	a.wg.Wait()
}

func (a *Server) serve() {
	for {
		c, err := a.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				a.logger.Info("API server stopped")
				return
			}
			a.logger.Info("API accept error", "error", err)
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.handleConn(c)
		}()
	}
}

func (a *Server) writeError(w io.Writer, err error) {
	problemJSON, _ := json.Marshal(WrapError(err))
	fmt.Fprintf(w, "%s\n", string(problemJSON))
}

func (a *Server) writeOK(w io.Writer, rest string) {
	if rest == "" {
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "%s\n", rest)
	}
}

func isLoopback(addr net.Addr) bool {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// authenticate runs the optional handshake and returns the connection to use
// for the request. A nil conn means the client was turned away.
func (a *Server) authenticate(conn net.Conn, r *bufio.Reader, logger *slog.Logger) (net.Conn, *bufio.Reader) {
	isAuth, err := auth.IsAuthHandshake(r)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			logger.Error("read api data", "error", err)
		}
		return nil, nil
	}
	switch {
	case isAuth && a.key == nil:
		logger.Warn("api auth handshake but no password configured")
		_, _ = r.Discard(auth.HandshakeSize)
		a.writeError(conn, ErrUnauthorized("authentication is not enabled"))
		return nil, nil
	case isAuth:
		clientNonce, serverNonce, err := auth.ServerHandshake(r, conn, a.key)
		if err != nil {
			logger.Warn("api auth failed", "error", err)
			return nil, nil
		}
		wrapped, err := auth.WrapConn(conn, auth.DeriveSessionKey(a.key, serverNonce, clientNonce), auth.RoleServer)
		if err != nil {
			logger.Error("api wrap conn", "error", err)
			return nil, nil
		}
		return wrapped, bufio.NewReader(wrapped)
	case a.key != nil && (a.config.RequireLocalHostAuth || !isLoopback(conn.RemoteAddr())):
		logger.Warn("api unauthenticated request rejected")
		a.writeError(conn, ErrUnauthorized("authentication required"))
		return nil, nil
	}
	return conn, r
}

func (a *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connCtx, connCancel := context.WithCancel(a.ctx)
	defer connCancel()

	connLogger := a.logger.With("remote", conn.RemoteAddr().String())
	if a.config.RequestTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(a.config.RequestTimeout))
	}

	rw, r := a.authenticate(conn, bufio.NewReader(conn), connLogger)
	if rw == nil {
		return
	}

	// Read until null terminator
	reqData, err := r.ReadString('\x00')
	if err != nil {
		if err == io.EOF {
			connLogger.Error("api incomplete request (no null terminator)")
		} else {
			connLogger.Error("read api data", "error", err)
		}
		return
	}
	_ = conn.SetReadDeadline(time.Time{})
	reqData = strings.TrimSuffix(reqData, "\x00")

	if reqData == "" {
		connLogger.Error("api empty command")
		a.writeError(rw, ErrBadRequest("empty request"))
		return
	}

	var path, payload string
	if loc := wsRegex.FindStringIndex(reqData); loc != nil {
		path = reqData[:loc[0]]
		payload = reqData[loc[1]:]
	} else {
		path = reqData
	}

	if path == "" {
		connLogger.Error("api empty path")
		a.writeError(rw, ErrBadRequest("empty path"))
		return
	}

	path = strings.ToLower(path)
	connLogger.Info("api cmd", "path", path)

	if h, params := a.router.Match(path); h != nil {
		req := &Request{Ctx: connCtx, Params: params, Payload: payload}
		res := &Response{}
		if err := h(req, res, connLogger); err != nil {
			connLogger.Error("api handler error", "path", path, "error", err)
			a.writeError(rw, err)
			return
		}
		connLogger.Debug("api handler success", "path", path)
		a.writeOK(rw, res.JSON)
		return
	}
	if sh, params := a.router.MatchStream(path); sh != nil {
		connLogger.Info("api stream begin", "path", path)
		req := &Request{Ctx: connCtx, Params: params, Payload: payload}
		if err := sh(rw, req, connLogger); err != nil {
			connLogger.Error("api stream handler error", "path", path, "error", err)
		}
		connLogger.Info("api stream end", "path", path)
		return
	}
	connLogger.Error("api unknown path", "path", path)
	a.writeError(rw, ErrNotFound(fmt.Sprintf("unknown path: %s", path)))
}
