package api

import (
	"embed"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"dentaldesk/internal/billing"
	"dentaldesk/internal/builder"
	"dentaldesk/internal/log"
	"dentaldesk/internal/storage"
	"dentaldesk/internal/version"
)

//go:embed www/*
var wwwFS embed.FS

// DefaultTenant is used when a request carries no X-Tenant header
const DefaultTenant = "clinic"

// Server represents the API server
type Server struct {
	router  *mux.Router
	storage storage.Storage
	billing *billing.Service
	builder *builder.Manager
	config  *ServerConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port       string
	ClinicName string
}

// NewServer creates a new API server
func NewServer(storageClient storage.Storage, billingService *billing.Service, builderManager *builder.Manager, config *ServerConfig) *Server {
	if config == nil {
		config = &ServerConfig{}
	}
	s := &Server{
		router:  mux.NewRouter(),
		storage: storageClient,
		billing: billingService,
		builder: builderManager,
		config:  config,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Add request logging
	api.Use(s.loggingHandler)

	// Utility endpoints
	// GET    /api                   - API info (name, version)
	// GET    /api/health            - Health check
	// GET    /api/version           - Server version
	api.HandleFunc("", s.infoHandler).Methods("GET")
	api.HandleFunc("/health", s.healthHandler).Methods("GET")
	api.HandleFunc("/version", s.versionHandler).Methods("GET")

	// Invoice routes
	// GET    /api/invoices                           - List invoices
	// POST   /api/invoices                           - Create invoice
	// GET    /api/invoices/summary                   - Dashboard totals
	// POST   /api/invoices/from-treatment            - Invoice a completed treatment
	// GET    /api/invoices/{id}                      - Get invoice
	// PATCH  /api/invoices/{id}                      - Update status and/or notes
	// DELETE /api/invoices/{id}                      - Delete invoice
	// POST   /api/invoices/{id}/payments             - Record a payment
	// POST   /api/invoices/{id}/insurance-credit     - Apply an approved insurance claim
	// GET    /api/invoices/{id}/print                - Printable HTML

	// Literal segments MUST be registered before {id}: gorilla mux matches in registration order.
	api.HandleFunc("/invoices", s.listInvoicesHandler).Methods("GET")
	api.HandleFunc("/invoices", s.createInvoiceHandler).Methods("POST")
	api.HandleFunc("/invoices/summary", s.invoiceSummaryHandler).Methods("GET")
	api.HandleFunc("/invoices/from-treatment", s.invoiceFromTreatmentHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}", s.getInvoiceHandler).Methods("GET")
	api.HandleFunc("/invoices/{id}", s.updateInvoiceHandler).Methods("PATCH")
	api.HandleFunc("/invoices/{id}", s.deleteInvoiceHandler).Methods("DELETE")
	api.HandleFunc("/invoices/{id}/payments", s.recordPaymentHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}/insurance-credit", s.insuranceCreditHandler).Methods("POST")
	api.HandleFunc("/invoices/{id}/print", s.printInvoiceHandler).Methods("GET")

	// Clinic routes
	// GET    /api/patients              - List patients
	// POST   /api/patients              - Create patient
	// GET    /api/treatments            - List treatments (legacy store)
	// GET    /api/appointments          - List appointments (legacy store)
	// GET    /api/insurance-claims      - List insurance claims (legacy store)
	api.HandleFunc("/patients", s.listPatientsHandler).Methods("GET")
	api.HandleFunc("/patients", s.createPatientHandler).Methods("POST")
	api.HandleFunc("/treatments", s.listTreatmentsHandler).Methods("GET")
	api.HandleFunc("/appointments", s.listAppointmentsHandler).Methods("GET")
	api.HandleFunc("/insurance-claims", s.listInsuranceClaimsHandler).Methods("GET")

	// Website builder routes
	// GET    /api/website-builder/state                          - Persisted state
	// PUT    /api/website-builder/state                          - Replace and persist state
	// GET    /api/website-builder/widget-types                   - Widget palette
	// GET    /api/website-builder/canvas                         - Live canvas
	// POST   /api/website-builder/canvas/widgets                 - Add widget
	// PATCH  /api/website-builder/canvas/widgets/{id}            - Update widget props
	// DELETE /api/website-builder/canvas/widgets/{id}            - Remove widget
	// POST   /api/website-builder/canvas/widgets/{id}/duplicate  - Duplicate widget
	// POST   /api/website-builder/canvas/widgets/{id}/move       - Reparent widget
	// POST   /api/website-builder/canvas/widgets/{id}/drag       - Drag gesture (start, move, end)
	// POST   /api/website-builder/canvas/undo                    - Undo
	// POST   /api/website-builder/canvas/redo                    - Redo
	// POST   /api/website-builder/canvas/save                    - Persist canvas
	// PUT    /api/website-builder/canvas/settings                - Update canvas settings
	// GET    /api/website-builder/templates                      - List templates
	// POST   /api/website-builder/templates                      - Save canvas as template
	// POST   /api/website-builder/templates/{id}/apply           - Apply template
	wb := api.PathPrefix("/website-builder").Subrouter()
	wb.HandleFunc("/state", s.getBuilderStateHandler).Methods("GET")
	wb.HandleFunc("/state", s.putBuilderStateHandler).Methods("PUT")
	wb.HandleFunc("/widget-types", s.widgetTypesHandler).Methods("GET")
	wb.HandleFunc("/canvas", s.canvasHandler).Methods("GET")
	wb.HandleFunc("/canvas/widgets", s.addWidgetHandler).Methods("POST")
	wb.HandleFunc("/canvas/widgets/{id}", s.updateWidgetHandler).Methods("PATCH")
	wb.HandleFunc("/canvas/widgets/{id}", s.removeWidgetHandler).Methods("DELETE")
	wb.HandleFunc("/canvas/widgets/{id}/duplicate", s.duplicateWidgetHandler).Methods("POST")
	wb.HandleFunc("/canvas/widgets/{id}/move", s.moveWidgetHandler).Methods("POST")
	wb.HandleFunc("/canvas/widgets/{id}/drag", s.dragWidgetHandler).Methods("POST")
	wb.HandleFunc("/canvas/undo", s.undoHandler).Methods("POST")
	wb.HandleFunc("/canvas/redo", s.redoHandler).Methods("POST")
	wb.HandleFunc("/canvas/save", s.saveCanvasHandler).Methods("POST")
	wb.HandleFunc("/canvas/settings", s.updateSettingsHandler).Methods("PUT")
	wb.HandleFunc("/templates", s.listTemplatesHandler).Methods("GET")
	wb.HandleFunc("/templates", s.saveTemplateHandler).Methods("POST")
	wb.HandleFunc("/templates/{id}/apply", s.applyTemplateHandler).Methods("POST")

	// Serve static website files at root
	// Strip the "www" prefix from the embedded filesystem
	wwwContent, err := fs.Sub(wwwFS, "www")
	if err != nil {
		log.Error("Failed to create sub filesystem for www: %v", err)
		return
	}

	// Handle root path - serve index.html with dynamic values
	s.router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		data, err := fs.ReadFile(wwwContent, "index.html")
		if err != nil {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}

		html := string(data)
		html = strings.ReplaceAll(html, "{{VERSION}}", version.GetVersion())
		html = strings.ReplaceAll(html, "{{CLINIC}}", s.clinicName())
		html = strings.ReplaceAll(html, "{{YEAR}}", strconv.Itoa(time.Now().Year()))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}).Methods("GET")
}

// Handler returns the HTTP handler with CORS support
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Tenant"},
		AllowCredentials: true,
		MaxAge:           86400,
	})

	return c.Handler(s.router)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// loggingHandler logs incoming requests
func (s *Server) loggingHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		log.Trace("%s %s %s %d %v", s.getTenant(r), r.Method, r.URL.Path, wrapped.statusCode, duration)
	})
}

// getTenant extracts tenant from X-Tenant header or returns default
func (s *Server) getTenant(r *http.Request) string {
	if tenant := strings.TrimSpace(r.Header.Get("X-Tenant")); tenant != "" {
		return tenant
	}
	return DefaultTenant
}

func (s *Server) clinicName() string {
	if s.config.ClinicName != "" {
		return s.config.ClinicName
	}
	return "DentalDesk"
}

// infoHandler returns API info
func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "DentalDesk",
		"version": version.GetVersion(),
	})
}

// healthHandler returns the health status, including the storage backend
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.CheckConnection(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "degraded",
			"storage": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// versionHandler returns the server version
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.GetVersion(),
		"service": "dentaldesk",
	})
}
