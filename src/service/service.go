package service

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/net"
	"github.com/mosaicnetworks/ledgerpool/src/pool"
	"github.com/mosaicnetworks/ledgerpool/src/validator"
)

// Service exposes the state of a Pool over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	pool        *pool.Pool
	mux         *http.ServeMux
	timeout     time.Duration
	logger      *logrus.Entry
}

// NewService creates a Service for p. timeout bounds the pool operations
// triggered by a request.
func NewService(bindAddress string, p *pool.Pool, timeout time.Duration, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		pool:        p,
		mux:         http.NewServeMux(),
		timeout:     timeout,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

func (s *Service) registerHandlers() {
	s.logger.Debug("Registering pool API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/nodes", s.makeHandler(s.GetNodes))
	s.mux.HandleFunc("/refresh", s.RefreshPool)
	s.mux.HandleFunc("/get/", s.GetKey)
	s.mux.Handle("/metrics", s.pool.Metrics().Handler())
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the handlers, for use with another server.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving pool API")

	err := http.ListenAndServe(s.bindAddress, s.mux)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.GetStats())
}

// GetNodes returns every node of the current registry.
func (s *Service) GetNodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Nodes())
}

// RefreshPool runs a catch-up and returns the resulting stats.
func (s *Service) RefreshPool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.pool.Refresh(ctx); err != nil {
		s.logger.WithError(err).Error("Refreshing pool")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, s.pool.GetStats())
}

type getResponse struct {
	Key      string      `json:"key"`
	Kind     string      `json:"kind"`
	Value    interface{} `json:"value"`
	Metadata interface{} `json:"metadata"`
	Cached   bool        `json:"cached"`
}

// GetKey reads a key of the ledger state through the result cache. The
// nocache query parameter forces a read from the pool.
func (s *Service) GetKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path[len("/get/"):]
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.pool.Get(ctx,
		net.Operation{Type: validator.OpGet, Key: key},
		pool.GetCacheOptions{NoCache: r.URL.Query().Get("nocache") != ""})
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Reading key")
		writeError(w, err)
		return
	}

	if res.Value.Reason != "" {
		http.Error(w, res.Value.Reason, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, getResponse{
		Key:      key,
		Kind:     string(res.Value.Kind),
		Value:    json.RawMessage(res.Value.Canonical()),
		Metadata: res.Metadata,
		Cached:   res.Cached,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps pool errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if poolErr := common.AsPool(err); poolErr != nil {
		switch poolErr.Type() {
		case common.NotFound:
			status = http.StatusNotFound
		case common.NetworkUnavailable, common.Timeout, common.NoConsensus, common.Closed:
			status = http.StatusServiceUnavailable
		case common.PoolLedgerCorrupted, common.InvalidTransaction, common.InsufficientAttestors:
			status = http.StatusBadGateway
		}
	}
	http.Error(w, err.Error(), status)
}
