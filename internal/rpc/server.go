// Package rpc implements the wallet daemon's local JSON-RPC 2.0 API and its
// websocket message stream.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-walletd/config"
	"github.com/Klingon-tech/klingnet-walletd/internal/hub"
	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/internal/messaging"
	"github.com/Klingon-tech/klingnet-walletd/internal/queue"
	"github.com/Klingon-tech/klingnet-walletd/internal/wallet"
	"github.com/Klingon-tech/klingnet-walletd/pkg/tx"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Router handles inbound page and UI messages.
type Router interface {
	Handle(ctx context.Context, msg messaging.Message, sender messaging.Sender) error
}

// Queue is the part of the action queue exposed over RPC.
type Queue interface {
	Push(ctx context.Context, p queue.Payload) (queue.Meta, error)
	Get(hash types.Hash) (queue.Meta, bool)
	Len() int
	List() []queue.Meta
	InFlight() (queue.Meta, bool)
}

// Wallet is the unlocked wallet exposed over RPC.
type Wallet interface {
	Accounts() []wallet.AccountInfo
	SelectedAccount() (wallet.AccountInfo, bool)
	Select(addr types.Address) error
	NewAccount(name string) (wallet.AccountInfo, error)
	DeployPayload(addr *types.Address) (*tx.DeployAccount, error)
}

// Server is the JSON-RPC 2.0 HTTP server.
type Server struct {
	addr        string
	router      Router
	hub         *hub.Hub
	queue       Queue
	wallet      Wallet // nil = wallet_* disabled.
	server      *http.Server
	mux         *http.ServeMux
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new RPC server. The rpcCfg parameter controls IP filtering,
// CORS and the websocket endpoint. A zero-value RPCConfig allows all IPs,
// disables CORS and serves no websocket stream.
func New(addr string, router Router, h *hub.Hub, q Queue, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:   addr,
		router: router,
		hub:    h,
		queue:  q,
		logger: klog.WithComponent("rpc"),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	var ws bool
	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
		ws = rpcCfg[0].WS
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.handleRequest)
	if ws && h != nil {
		s.mux.HandleFunc("/ws", s.handleWS)
	}

	s.server = &http.Server{
		Handler:     s.mux,
		ReadTimeout: 30 * time.Second,
	}

	return s
}

// SetWallet enables the wallet_* endpoints.
func (s *Server) SetWallet(w Wallet) {
	s.wallet = w
}

// SetMetrics serves the gatherer's metrics on /metrics. Call before Start.
func (s *Server) SetMetrics(g prometheus.Gatherer) {
	s.mux.Handle("/metrics", s.filtered(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("RPC server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("RPC server listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop closes websocket streams and gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// filtered wraps h with the IP allow-list.
func (s *Server) filtered(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.allowRemote(r) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// allowRemote applies the IP allow-list to the request's remote address.
func (s *Server) allowRemote(r *http.Request) bool {
	if len(s.allowedNets) == 0 {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && s.isIPAllowed(ip)
}

// handleRequest is the main HTTP handler for JSON-RPC requests.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	if !s.allowRemote(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	// CORS headers.
	s.setCORSHeaders(w, r)

	// Handle CORS preflight.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, nil, CodeInvalidRequest, "only POST method is allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, nil, CodeParseError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeError(w, nil, CodeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, CodeParseError, "invalid JSON")
		return
	}

	if req.JSONRPC != "2.0" {
		writeError(w, req.ID, CodeInvalidRequest, "jsonrpc must be \"2.0\"")
		return
	}

	result, rpcErr := s.dispatch(r.Context(), &req)
	if rpcErr != nil {
		writeJSON(w, Response{
			JSONRPC: "2.0",
			Error:   rpcErr,
			ID:      req.ID,
		})
		return
	}

	writeJSON(w, Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	})
}

// dispatch routes a request to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, req *Request) (interface{}, *Error) {
	switch req.Method {
	case "wallet_postMessage":
		return s.handlePostMessage(ctx, req)
	case "queue_getStatus":
		return s.handleQueueGetStatus(req)
	case "queue_getAction":
		return s.handleQueueGetAction(req)
	case "wallet_getSelectedAccount":
		return s.handleWalletGetSelectedAccount(req)
	case "wallet_listAccounts":
		return s.handleWalletListAccounts(req)
	case "wallet_selectAccount":
		return s.handleWalletSelectAccount(req)
	case "wallet_newAccount":
		return s.handleWalletNewAccount(req)
	case "wallet_deployAccount":
		return s.handleWalletDeployAccount(ctx, req)
	default:
		return nil, &Error{Code: CodeMethodNotFound, Message: fmt.Sprintf("method %q not found", req.Method)}
	}
}

// writeJSON writes a JSON-RPC response.
func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON-RPC error response.
func writeError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	})
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// originAllowed reports whether origin matches the configured CORS origins.
func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.corsOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" || !s.originAllowed(origin) {
		return
	}

	for _, o := range s.corsOrigins {
		if o == "*" {
			origin = "*"
			break
		}
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

// parseParams unmarshals the request params into the given target.
func parseParams(req *Request, target interface{}) *Error {
	if req.Params == nil {
		return &Error{Code: CodeInvalidParams, Message: "params required"}
	}

	data, err := json.Marshal(req.Params)
	if err != nil {
		return &Error{Code: CodeInvalidParams, Message: "invalid params"}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
