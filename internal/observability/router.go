package observability

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/ismaiel54/limit-order-book/internal/msg"
	"github.com/ismaiel54/limit-order-book/internal/orderbook"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultDepthLevels = 10
	maxDepthLevels     = 500
)

// BookReader is the read side of the book engine
type BookReader interface {
	Symbol() string
	Tick() decimal.Decimal
	TopOfBook() msg.TopOfBookMsg
	Depth(n int) orderbook.Depth
}

// TopResponse is the body of GET /api/v1/book/top
type TopResponse struct {
	Symbol       string `json:"symbol"`
	Seq          uint64 `json:"seq"`
	BestBid      int64  `json:"best_bid"`
	HasBid       bool   `json:"has_bid"`
	BestBidPrice string `json:"best_bid_price,omitempty"`
	BestAsk      int64  `json:"best_ask"`
	HasAsk       bool   `json:"has_ask"`
	BestAskPrice string `json:"best_ask_price,omitempty"`
	Orders       int    `json:"orders"`
}

// DepthLevel is one aggregated level with its decimal price
type DepthLevel struct {
	orderbook.LevelView
	PriceDecimal string `json:"price_decimal"`
}

// DepthResponse is the body of GET /api/v1/book/depth
type DepthResponse struct {
	Symbol string       `json:"symbol"`
	Bids   []DepthLevel `json:"bids"`
	Asks   []DepthLevel `json:"asks"`
}

// NewRouter wires health, metrics and book read endpoints
func NewRouter(h *HealthChecker, book BookReader, metricsHandler http.Handler, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		st := h.Status()
		code := http.StatusOK
		if st.Status != "OK" {
			code = http.StatusServiceUnavailable
		}
		respondJSON(w, logger, code, st)
	}).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/book/top", func(w http.ResponseWriter, r *http.Request) {
		top := book.TopOfBook()
		resp := TopResponse{
			Symbol:  top.Symbol,
			Seq:     top.Seq,
			BestBid: top.BestBid,
			HasBid:  top.HasBid,
			BestAsk: top.BestAsk,
			HasAsk:  top.HasAsk,
			Orders:  top.Orders,
		}
		if top.HasBid {
			resp.BestBidPrice = msg.TicksToPrice(top.BestBid, book.Tick())
		}
		if top.HasAsk {
			resp.BestAskPrice = msg.TicksToPrice(top.BestAsk, book.Tick())
		}
		respondJSON(w, logger, http.StatusOK, resp)
	}).Methods(http.MethodGet)

	api.HandleFunc("/book/depth", func(w http.ResponseWriter, r *http.Request) {
		levels := defaultDepthLevels
		if v := r.URL.Query().Get("levels"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > maxDepthLevels {
				respondJSON(w, logger, http.StatusBadRequest, map[string]string{
					"error": "levels must be an integer between 1 and " + strconv.Itoa(maxDepthLevels),
				})
				return
			}
			levels = n
		}

		depth := book.Depth(levels)
		respondJSON(w, logger, http.StatusOK, DepthResponse{
			Symbol: depth.Symbol,
			Bids:   withPrices(depth.Bids, book.Tick()),
			Asks:   withPrices(depth.Asks, book.Tick()),
		})
	}).Methods(http.MethodGet)

	return r
}

func withPrices(levels []orderbook.LevelView, tick decimal.Decimal) []DepthLevel {
	out := make([]DepthLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, DepthLevel{
			LevelView:    lvl,
			PriceDecimal: msg.TicksToPrice(lvl.Price, tick),
		})
	}
	return out
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write response", zap.Error(err))
	}
}
