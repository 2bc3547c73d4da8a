package server

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pennywise-app/pennywise/internal/expense"
	"github.com/pennywise-app/pennywise/internal/shopping"
)

// Server handles HTTP requests for the tracker
type Server struct {
	expenses  *expense.Service
	shopping  *shopping.Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// New creates a new Server with default mux
func New(expenses *expense.Service, shoppingList *shopping.Service, basicAuth BasicAuth) *Server {
	return NewWithMux(expenses, shoppingList, basicAuth, http.NewServeMux())
}

// NewWithMux creates a new Server with a custom mux for testing
func NewWithMux(expenses *expense.Service, shoppingList *shopping.Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		expenses:  expenses,
		shopping:  shoppingList,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Pennywise"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux.
// Routes must be registered from most specific to least specific.
func (s *Server) registerRoutes() {
	// Receipt scanning
	s.mux.HandleFunc("POST /api/receipts/scan", s.requireAuth(s.handleScanReceipt))

	// Expenses
	s.mux.HandleFunc("POST /api/expenses/import", s.requireAuth(s.handleImportReceipt))
	s.mux.HandleFunc("GET /api/expenses/{id}/receipt", s.requireAuth(s.handleGetReceiptImage))
	s.mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	s.mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	s.mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))

	// Reports
	s.mux.HandleFunc("GET /api/reports/categories", s.requireAuth(s.handleCategoryReport))
	s.mux.HandleFunc("GET /api/reports/monthly", s.requireAuth(s.handleMonthlyReport))
	s.mux.HandleFunc("GET /api/reports/export", s.requireAuth(s.handleExportReport))

	// Category suggestions
	s.mux.HandleFunc("GET /api/categories/suggest", s.requireAuth(s.handleSuggestCategory))

	// Shopping list
	s.mux.HandleFunc("GET /api/shopping/suggestions", s.requireAuth(s.handleShoppingSuggestions))
	s.mux.HandleFunc("DELETE /api/shopping/checked", s.requireAuth(s.handleClearChecked))
	s.mux.HandleFunc("POST /api/shopping/{id}/toggle", s.requireAuth(s.handleToggleShoppingItem))
	s.mux.HandleFunc("DELETE /api/shopping/{id}", s.requireAuth(s.handleDeleteShoppingItem))
	s.mux.HandleFunc("GET /api/shopping", s.requireAuth(s.handleListShoppingItems))
	s.mux.HandleFunc("POST /api/shopping", s.requireAuth(s.handleAddShoppingItem))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
