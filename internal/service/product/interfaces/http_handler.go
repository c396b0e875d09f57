package interfaces

import (
	"errors"
	"net/http"

	"coupon-core/internal/pkg/httpx"
	"coupon-core/internal/service/product/application"
	"coupon-core/internal/service/product/domain"
)

// CreateProductRequest 是新建商品的请求体
type CreateProductRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int64  `json:"stock"`
}

// StockRequest 是库存调整的请求体
type StockRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// DeductRequest 是整笔订单扣减库存的请求体
type DeductRequest struct {
	OrderID int64          `json:"order_id"`
	Items   []StockRequest `json:"items"`
}

// ProductResponse 是商品的响应体
type ProductResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int64  `json:"stock"`
}

// ProductHandler 封装了商品服务的 HTTP 处理器
type ProductHandler struct {
	service *application.ProductService
}

// NewProductHandler 创建一个新的 HTTP 处理器实例
func NewProductHandler(service *application.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *ProductHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/products", h.handleCreate)
	mux.HandleFunc("/products/restock", h.handleRestock)
	mux.HandleFunc("/products/deduct", h.handleDeduct)
}

func (h *ProductHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req CreateProductRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Price < 0 || req.Stock < 0 {
		httpx.WriteError(ctx, w, http.StatusBadRequest, errors.New("name is required, price and stock must not be negative"))
		return
	}
	p, err := h.service.Create(ctx, &domain.Product{Name: req.Name, Price: req.Price, Stock: req.Stock})
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
}

func (h *ProductHandler) handleRestock(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req StockRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if err := h.service.RestoreStock(ctx, req.ProductID, req.Quantity); err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	p, err := h.service.Get(ctx, req.ProductID)
	if err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ProductResponse{ID: p.ID, Name: p.Name, Price: p.Price, Stock: p.Stock})
}

func (h *ProductHandler) handleDeduct(w http.ResponseWriter, r *http.Request) {
	ctx := httpx.Extract(r)

	var req DeductRequest
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}
	if req.OrderID <= 0 || len(req.Items) == 0 {
		httpx.WriteError(ctx, w, http.StatusBadRequest, errors.New("order_id and items are required"))
		return
	}
	lines := make([]domain.StockLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	if err := h.service.DeductStocks(ctx, req.OrderID, lines); err != nil {
		httpx.WriteError(ctx, w, statusFor(err), err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"order_id": req.OrderID, "status": "deducted"})
}

func statusFor(err error) int {
	if status, ok := httpx.LockStatus(err); ok {
		return status
	}
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
