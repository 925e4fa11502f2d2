package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wa-catalog/internal/metrics"
	"wa-catalog/internal/repo"
	"wa-catalog/internal/stats"
)

// maxPeriodDays caps the period endpoint so one request cannot fan out
// into an unbounded number of range queries.
const maxPeriodDays = 90

// CatalogAdmin is the slice of storage the CRUD endpoints use.
type CatalogAdmin interface {
	Ping(ctx context.Context) error
	GetVendorByID(ctx context.Context, id string) (*repo.Vendor, error)
	InsertVendor(ctx context.Context, v repo.Vendor) (*repo.Vendor, error)
	UpdateVendor(ctx context.Context, v repo.Vendor) error
	DeleteVendor(ctx context.Context, id string) error
	ListVendorSample(ctx context.Context, limit int) ([]repo.Vendor, error)
	GetProductByID(ctx context.Context, id string) (*repo.Product, error)
	InsertProduct(ctx context.Context, p repo.Product) (*repo.Product, error)
	UpdateProduct(ctx context.Context, p repo.Product) error
	DeleteProduct(ctx context.Context, id string) error
	ListInStockProducts(ctx context.Context, limit int) ([]repo.Product, error)
}

// StatsProvider computes dashboard snapshots.
type StatsProvider interface {
	Snapshot(ctx context.Context) stats.Snapshot
	PeriodStats(ctx context.Context, days int) stats.PeriodStats
}

// Server wraps an http.Server with the admin API routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	store      CatalogAdmin
	stats      StatsProvider
	validate   *validator.Validate
}

// New creates the admin API server listening on addr.
func New(addr string, store CatalogAdmin, statsProvider StatsProvider, logger *slog.Logger, metricRegistry *metrics.Metrics) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		store:    store,
		stats:    statsProvider,
		validate: validator.New(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", server.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", server.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/stats/period/{days}", server.handleStatsPeriod).Methods(http.MethodGet)

	api.HandleFunc("/vendors", server.handleListVendors).Methods(http.MethodGet)
	api.HandleFunc("/vendors", server.handleCreateVendor).Methods(http.MethodPost)
	api.HandleFunc("/vendors/{id}", server.handleGetVendor).Methods(http.MethodGet)
	api.HandleFunc("/vendors/{id}", server.handleUpdateVendor).Methods(http.MethodPut)
	api.HandleFunc("/vendors/{id}", server.handleDeleteVendor).Methods(http.MethodDelete)

	api.HandleFunc("/products", server.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products", server.handleCreateProduct).Methods(http.MethodPost)
	api.HandleFunc("/products/{id}", server.handleGetProduct).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", server.handleUpdateProduct).Methods(http.MethodPut)
	api.HandleFunc("/products/{id}", server.handleDeleteProduct).Methods(http.MethodDelete)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "unhealthy", "database unreachable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Snapshot(r.Context()))
}

func (s *Server) handleStatsPeriod(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(mux.Vars(r)["days"])
	if err != nil || days < 1 || days > maxPeriodDays {
		s.writeError(w, http.StatusBadRequest, "invalid_period", fmt.Sprintf("days must be 1-%d", maxPeriodDays))
		return
	}
	s.writeJSON(w, http.StatusOK, s.stats.PeriodStats(r.Context(), days))
}

// vendorPayload is the write body for vendor create/update.
type vendorPayload struct {
	Name           string   `json:"name" validate:"required,min=2"`
	City           string   `json:"city" validate:"required"`
	Categories     []string `json:"categories"`
	Verified       bool     `json:"verified"`
	Status         string   `json:"status" validate:"omitempty,oneof=active inactive suspended"`
	WhatsAppNumber string   `json:"whatsappNumber" validate:"required,min=8"`
}

// productPayload is the write body for product create/update.
type productPayload struct {
	VendorID     string   `json:"vendorId" validate:"required,uuid4"`
	Name         string   `json:"name" validate:"required,min=2"`
	Category     string   `json:"category" validate:"required"`
	Price        int64    `json:"price" validate:"gte=0"`
	Description  string   `json:"description"`
	Keywords     []string `json:"keywords"`
	Availability string   `json:"availability" validate:"omitempty,oneof=in_stock out_of_stock"`
	Condition    string   `json:"condition"`
}

func (s *Server) handleListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := s.store.ListVendorSample(r.Context(), 100)
	if err != nil {
		s.storageError(w, "list vendors", err)
		return
	}
	s.writeJSON(w, http.StatusOK, vendors)
}

func (s *Server) handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var payload vendorPayload
	if !s.decode(w, r, &payload) {
		return
	}
	vendor, err := s.store.InsertVendor(r.Context(), repo.Vendor{
		Name:           payload.Name,
		City:           payload.City,
		Categories:     payload.Categories,
		Verified:       payload.Verified,
		Status:         defaultString(payload.Status, "active"),
		WhatsAppNumber: payload.WhatsAppNumber,
	})
	if err != nil {
		s.storageError(w, "create vendor", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, vendor)
}

func (s *Server) handleGetVendor(w http.ResponseWriter, r *http.Request) {
	vendor, err := s.store.GetVendorByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storageError(w, "get vendor", err)
		return
	}
	if vendor == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "vendor not found")
		return
	}
	s.writeJSON(w, http.StatusOK, vendor)
}

func (s *Server) handleUpdateVendor(w http.ResponseWriter, r *http.Request) {
	var payload vendorPayload
	if !s.decode(w, r, &payload) {
		return
	}
	id := mux.Vars(r)["id"]
	existing, err := s.store.GetVendorByID(r.Context(), id)
	if err != nil {
		s.storageError(w, "get vendor", err)
		return
	}
	if existing == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "vendor not found")
		return
	}
	existing.Name = payload.Name
	existing.City = payload.City
	existing.Categories = payload.Categories
	existing.Verified = payload.Verified
	existing.Status = defaultString(payload.Status, existing.Status)
	existing.WhatsAppNumber = payload.WhatsAppNumber
	if err := s.store.UpdateVendor(r.Context(), *existing); err != nil {
		s.storageError(w, "update vendor", err)
		return
	}
	s.writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteVendor(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteVendor(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storageError(w, "delete vendor", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListInStockProducts(r.Context(), 100)
	if err != nil {
		s.storageError(w, "list products", err)
		return
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if !s.decode(w, r, &payload) {
		return
	}
	product, err := s.store.InsertProduct(r.Context(), repo.Product{
		VendorID:     payload.VendorID,
		Name:         payload.Name,
		Category:     payload.Category,
		Price:        payload.Price,
		Description:  payload.Description,
		Keywords:     payload.Keywords,
		Availability: defaultString(payload.Availability, "in_stock"),
		Condition:    payload.Condition,
	})
	if err != nil {
		s.storageError(w, "create product", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, product)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProductByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.storageError(w, "get product", err)
		return
	}
	if product == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	s.writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var payload productPayload
	if !s.decode(w, r, &payload) {
		return
	}
	id := mux.Vars(r)["id"]
	existing, err := s.store.GetProductByID(r.Context(), id)
	if err != nil {
		s.storageError(w, "get product", err)
		return
	}
	if existing == nil {
		s.writeError(w, http.StatusNotFound, "not_found", "product not found")
		return
	}
	existing.VendorID = payload.VendorID
	existing.Name = payload.Name
	existing.Category = payload.Category
	existing.Price = payload.Price
	existing.Description = payload.Description
	existing.Keywords = payload.Keywords
	existing.Availability = defaultString(payload.Availability, existing.Availability)
	existing.Condition = payload.Condition
	if err := s.store.UpdateProduct(r.Context(), *existing); err != nil {
		s.storageError(w, "update product", err)
		return
	}
	s.writeJSON(w, http.StatusOK, existing)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.storageError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads and validates a JSON body, answering the request itself on
// failure. Returns false when the caller should stop.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return false
	}
	return true
}

func (s *Server) storageError(w http.ResponseWriter, op string, err error) {
	s.logger.Error("storage operation failed", "op", op, "error", err)
	if s.metrics != nil {
		s.metrics.Errors.WithLabelValues("http").Inc()
	}
	s.writeError(w, http.StatusInternalServerError, "storage_error", "operation failed, try again later")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("response encoding failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
