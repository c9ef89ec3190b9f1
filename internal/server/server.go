package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"pricewatch/internal/database"
)

// Server is the HTTP API over the price stores. It serves JSON only;
// rendering belongs to the downstream dashboard.
type Server struct {
	db  *database.DB
	mux *http.ServeMux
}

// New creates a new Server.
func New(db *database.DB) *Server {
	s := &Server{db: db, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/products", s.handleProducts)
	s.mux.HandleFunc("/api/metrics", s.handleMetrics)
	s.mux.HandleFunc("/api/facts", s.handleFacts)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.internalError(w, "reading stats", err)
		return
	}
	writeJSON(w, map[string]any{
		"products":             stats.Products,
		"active_products":      stats.ActiveProducts,
		"observations":         stats.Observations,
		"forecasts":            stats.Forecasts,
		"unresolved_forecasts": stats.UnresolvedForecasts,
		"products_with_errors": stats.ProductsWithMetrics,
		"fact_rows":            stats.FactRows,
	})
}

type productView struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.db.GetAllProducts()
	if err != nil {
		s.internalError(w, "reading products", err)
		return
	}
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{
			ID:        p.ID,
			URL:       p.URL,
			Name:      p.Name,
			IsActive:  p.IsActive,
			CreatedAt: deref(p.CreatedAt),
		})
	}
	writeJSON(w, views)
}

type metricView struct {
	ProductID   int64   `json:"product_id"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	SampleCount int     `json:"sample_count"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := s.db.GetAllErrorMetrics()
	if err != nil {
		s.internalError(w, "reading metrics", err)
		return
	}
	views := make([]metricView, 0, len(metrics))
	for _, m := range metrics {
		views = append(views, metricView{
			ProductID:   m.ProductID,
			MAE:         m.MAE,
			RMSE:        m.RMSE,
			SampleCount: m.SampleCount,
			UpdatedAt:   deref(m.UpdatedAt),
		})
	}
	writeJSON(w, views)
}

type factView struct {
	ProductID      int64    `json:"product_id"`
	Day            string   `json:"day"`
	RealPrice      *float64 `json:"real_price"`
	PredictedPrice *float64 `json:"predicted_price"`
	Rating         float64  `json:"rating"`
	MovingAvg3     float64  `json:"moving_avg_3"`
	MovingAvg7     float64  `json:"moving_avg_7"`
	MAE            *float64 `json:"mae"`
	RMSE           *float64 `json:"rmse"`
}

func (s *Server) handleFacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var productID *int64
	if raw := q.Get("product"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid product id", http.StatusBadRequest)
			return
		}
		productID = &id
	}

	start, err := queryDay(q.Get("from"), database.Day("0001-01-01"))
	if err != nil {
		http.Error(w, "invalid from date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	end, err := queryDay(q.Get("to"), database.Day("9999-12-31"))
	if err != nil {
		http.Error(w, "invalid to date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	facts, err := s.db.GetFacts(productID, start, end)
	if err != nil {
		s.internalError(w, "reading facts", err)
		return
	}
	views := make([]factView, 0, len(facts))
	for _, f := range facts {
		views = append(views, factView{
			ProductID:      f.ProductID,
			Day:            string(f.Day),
			RealPrice:      f.RealPrice,
			PredictedPrice: f.PredictedPrice,
			Rating:         f.Features.Rating,
			MovingAvg3:     f.Features.MovingAvg3,
			MovingAvg7:     f.Features.MovingAvg7,
			MAE:            f.MAE,
			RMSE:           f.RMSE,
		})
	}
	writeJSON(w, views)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	log.Printf("Error %s: %v", what, err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func queryDay(raw string, fallback database.Day) (database.Day, error) {
	if raw == "" {
		return fallback, nil
	}
	return database.ParseDay(raw)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv := New(db)
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
