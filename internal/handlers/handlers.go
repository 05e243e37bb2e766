package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Brownie44l1/cassava-api/internal/capture"
	"github.com/Brownie44l1/cassava-api/internal/catalog"
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/Brownie44l1/cassava-api/internal/pipeline"
	"github.com/Brownie44l1/cassava-api/internal/stats"
	"github.com/Brownie44l1/cassava-api/internal/store"
)

const (
	maxUploadSize       = 10 << 20
	defaultHistoryLimit = 50
)

type Handler struct {
	loader *pipeline.Loader
	store  store.Store
}

// NewHandler serves predictions from loader and history from st. A nil st
// keeps history in memory.
func NewHandler(loader *pipeline.Loader, st store.Store) *Handler {
	if st == nil {
		st = store.NewMemoryStore()
	}
	return &Handler{
		loader: loader,
		store:  st,
	}
}

// Router registers every endpoint behind the CORS middleware.
func Router(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", EnableCORS(h.Health))
	mux.HandleFunc("/predict", EnableCORS(h.Predict))
	mux.HandleFunc("/predict/image", EnableCORS(h.PredictFromImage))
	mux.HandleFunc("/history", EnableCORS(h.History))
	mux.HandleFunc("/history/{id}/image", EnableCORS(h.HistoryImage))
	mux.HandleFunc("/stats", EnableCORS(h.Stats))
	return mux
}

func EnableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	state, err := h.loader.State()
	body := map[string]string{"status": "healthy", "model": state.String()}
	if err != nil {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	queue, err := h.loader.Queue()
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if len(req.Image) != model.TensorLen {
		http.Error(w, fmt.Sprintf("Expected %d values, got %d", model.TensorLen, len(req.Image)),
			http.StatusBadRequest)
		return
	}

	verdict, err := queue.SubmitTensor(r.Context(), model.Tensor(req.Image))
	if err != nil {
		logging.Errorf("Prediction error: %v", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, NewResponse(verdict, queue.Labels()))
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// capture stays disabled until the model is ready
	queue, err := h.loader.Queue()
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	logging.Infof("Received file: %s, size: %d bytes", header.Filename, header.Size)

	img, format, err := capture.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG, GIF, BMP, TIFF, WebP", http.StatusBadRequest)
		return
	}

	logging.Debugf("Image format: %s, dimensions: %dx%d", format, img.Width, img.Height)

	verdict, err := queue.Submit(r.Context(), img)
	if err != nil {
		logging.Errorf("Prediction error: %v", err)
		writeError(w, err)
		return
	}

	resp := NewResponse(verdict, queue.Labels())
	if verdict.IsClassified() {
		rec, err := store.NewRecord(verdict, img)
		if err == nil {
			err = h.store.Save(r.Context(), rec)
		}
		if err != nil {
			logging.Warnf("Failed to save scan: %v", err)
		} else {
			resp.RecordID = rec.ID.String()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := h.store.List(r.Context(), store.Filter{Owner: r.URL.Query().Get("owner"), Limit: limit})
	if err != nil {
		logging.Errorf("History error: %v", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	labels, err := h.store.Labels(r.Context(), store.Filter{Owner: r.URL.Query().Get("owner")})
	if err != nil {
		logging.Errorf("Stats error: %v", err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats.Summarize(labels))
}

// HistoryImage returns the PNG stored with one scan.
func (h *Handler) HistoryImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "Invalid scan id", http.StatusBadRequest)
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(rec.Image) == 0) {
		http.Error(w, "Scan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Errorf("History image error: %v", err)
		http.Error(w, "Failed to load scan", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(rec.Image)))
	w.Write(rec.Image)
}

// NewResponse converts a verdict into its JSON form, keying probabilities by
// the labels they align with.
func NewResponse(v decision.Verdict, labels model.LabelSet) model.PredictionResponse {
	resp := model.PredictionResponse{
		Predictions: make(map[string]float64, len(v.Probabilities)),
	}
	for i, p := range v.Probabilities {
		if i < len(labels) {
			resp.Predictions[labels[i]] = p
		}
	}

	if !v.IsClassified() {
		resp.Status = "uncertain"
		resp.Message = v.Message
		return resp
	}
	resp.Status = "classified"
	resp.Class = v.Label
	resp.Confidence = v.Confidence
	resp.Remedy = catalog.Remedy(v.Label)
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotReady), errors.Is(err, model.ErrModelLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("Failed to encode response: %v", err)
	}
}
