package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pennywise-app/pennywise/internal/expense"
	"github.com/pennywise-app/pennywise/internal/scanning"
)

// maxUploadSize bounds receipt uploads. High-resolution phone photos run
// large before the normalizer shrinks them.
const maxUploadSize = int64(50 << 20) // 50MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes a plain error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// jsonError writes an error payload the UI can surface in a notification
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// scanErrorStatus maps the pipeline error taxonomy to HTTP status codes
func scanErrorStatus(err error) int {
	var unavailable *scanning.ServiceUnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, scanning.ErrNoImage) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// readUpload pulls the "file" part out of a multipart form
func readUpload(r *http.Request) (string, []byte, string, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		if err.Error() == "http: request body too large" {
			return "", nil, "", fmt.Errorf("file is too large, maximum size is 50MB")
		}
		return "", nil, "", fmt.Errorf("parsing form: %w", err)
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil, "", nil // caller decides whether a file is required
		}
		return "", nil, "", fmt.Errorf("reading file from form: %w", err)
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		return "", nil, "", fmt.Errorf("file is too large, maximum size is 50MB")
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, "", fmt.Errorf("reading file data: %w", err)
	}

	return header.Filename, data, uploadContentType(header), nil
}

// uploadContentType determines the MIME type of an upload, falling back to
// the file extension when the browser did not say.
func uploadContentType(header *multipart.FileHeader) string {
	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType != "" {
		return contentType
	}
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleScanReceipt runs an uploaded receipt through the extraction pipeline
// and returns the structured result for confirmation. Nothing is persisted.
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, err := readUpload(r)
	if err != nil {
		slog.Error("Error reading upload", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(data) == 0 {
		jsonError(w, "No file was selected. Please choose a receipt to scan.", http.StatusBadRequest)
		return
	}

	receipt, err := s.expenses.ScanReceipt(r.Context(), data, contentType)
	if err != nil {
		slog.Error("Error scanning receipt", "filename", filename, "error", err)
		jsonError(w, err.Error(), scanErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, receipt)
}

// handleImportReceipt persists a confirmed scan: multipart form with the
// original image under "file" and the confirmed receipt JSON under "receipt".
func (s *Server) handleImportReceipt(w http.ResponseWriter, r *http.Request) {
	filename, data, contentType, err := readUpload(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receiptJSON := r.FormValue("receipt")
	if receiptJSON == "" {
		jsonError(w, "Missing receipt data", http.StatusBadRequest)
		return
	}

	var receipt scanning.StructuredReceipt
	if err := json.Unmarshal([]byte(receiptJSON), &receipt); err != nil {
		jsonError(w, "Invalid receipt data", http.StatusBadRequest)
		return
	}

	expenses, err := s.expenses.ImportReceipt(filename, data, contentType, &receipt)
	if err != nil {
		slog.Error("Error importing receipt", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, expenses)
}

// handleCreateExpense handles manual expense entry
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var input expense.Expense
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	created, err := s.expenses.CreateExpense(&input)
	if err != nil {
		slog.Error("Error creating expense", "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// handleListExpenses returns expenses, optionally filtered by month and
// category query parameters
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListExpenses(r.URL.Query().Get("month"), r.URL.Query().Get("category"))
	if err != nil {
		slog.Error("Error listing expenses", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, expenses)
}

// handleGetExpense returns a single expense
func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Expense ID required", http.StatusBadRequest)
		return
	}
	found, err := s.expenses.GetExpense(id)
	if err != nil {
		corsError(w, "Expense not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, found)
}

// handleUpdateExpense applies changes to an expense
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Expense ID required", http.StatusBadRequest)
		return
	}

	var update expense.Expense
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := s.expenses.UpdateExpense(id, &update)
	if err != nil {
		corsError(w, "Expense not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteExpense deletes an expense
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Expense ID required", http.StatusBadRequest)
		return
	}
	if err := s.expenses.DeleteExpense(id); err != nil {
		corsError(w, "Error deleting expense", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptImage returns the stored image an expense came from
func (s *Server) handleGetReceiptImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Expense ID required", http.StatusBadRequest)
		return
	}
	data, err := s.expenses.GetReceiptImage(id)
	if err != nil {
		corsError(w, "Receipt image not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

// handleCategoryReport returns per-category totals for a month
func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	report, err := s.expenses.CategoryReport(month)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleMonthlyReport returns per-month totals for a year
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		jsonError(w, "Invalid year", http.StatusBadRequest)
		return
	}

	report, err := s.expenses.MonthlyReport(year)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleExportReport streams a month's expenses as an XLSX attachment
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	data, err := s.expenses.ExportMonthXLSX(month)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=expenses-%s.xlsx", month))
	w.Write(data)
}

// handleSuggestCategory suggests a category for an item name
func (s *Server) handleSuggestCategory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	category, err := s.expenses.SuggestCategory(r.Context(), name)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"name": name, "category": category})
}

// handleListShoppingItems returns the shopping list
func (s *Server) handleListShoppingItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.shopping.ListItems()
	if err != nil {
		slog.Error("Error listing shopping items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// handleAddShoppingItem adds an item to the shopping list
func (s *Server) handleAddShoppingItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string  `json:"name"`
		Quantity float64 `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := s.shopping.AddItem(req.Name, req.Quantity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// handleToggleShoppingItem flips an item's checked state
func (s *Server) handleToggleShoppingItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Item ID required", http.StatusBadRequest)
		return
	}
	item, err := s.shopping.ToggleItem(id)
	if err != nil {
		corsError(w, "Item not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// handleDeleteShoppingItem removes an item from the list
func (s *Server) handleDeleteShoppingItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Item ID required", http.StatusBadRequest)
		return
	}
	if err := s.shopping.DeleteItem(id); err != nil {
		corsError(w, "Item not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleClearChecked removes every checked item from the list
func (s *Server) handleClearChecked(w http.ResponseWriter, r *http.Request) {
	if err := s.shopping.ClearChecked(); err != nil {
		slog.Error("Error clearing checked items", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleShoppingSuggestions asks the model for shopping list suggestions
// seeded with the names of recent purchases
func (s *Server) handleShoppingSuggestions(w http.ResponseWriter, r *http.Request) {
	recent, err := s.expenses.ListExpenses("", "")
	if err != nil {
		slog.Error("Error listing expenses for suggestions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, 30)
	for _, e := range recent {
		names = append(names, e.Name)
		if len(names) == 30 {
			break
		}
	}

	suggestions, err := s.shopping.Suggest(r.Context(), names)
	if err != nil {
		jsonError(w, err.Error(), scanErrorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{"suggestions": suggestions})
}
