// Package products serves the product catalogue: listing, CRUD and export.
package products

import (
	"net/http"
	"net/url"

	"admin_dashboard/internal/config"
	"admin_dashboard/internal/handlers"
	"admin_dashboard/internal/middlewares"
	"admin_dashboard/internal/store"
)

type ProductHandler struct {
	h *handlers.Handler
}

func NewProductHandler(h *handlers.Handler) *ProductHandler {
	return &ProductHandler{h: h}
}

// ProductRequest carries the editable product fields. Nil fields are kept.
type ProductRequest struct {
	Name     *string  `json:"name"`
	Category *string  `json:"category"`
	Price    *float64 `json:"price"`
	Stock    *int     `json:"stock"`
}

func (req *ProductRequest) BindForm(form url.Values) error {
	var err error
	req.Name = handlers.FormString(form, "name")
	req.Category = handlers.FormString(form, "category")
	if req.Price, err = handlers.FormFloat(form, "price"); err != nil {
		return err
	}
	req.Stock, err = handlers.FormInt(form, "stock")
	return err
}

func (req *ProductRequest) apply(p *store.Product) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
}

func (ph *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	p := ph.h.Paginate(r)
	products, total, err := ph.h.Store.ListProducts(r.Context(), p.ListOptions())
	if err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	p.SetTotal(total)
	middlewares.RespondPaginated(w, products, p)
}

func (ph *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := ph.h.Store.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	config.RespondJSON(w, http.StatusOK, product)
}

func (ph *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}

	product := &store.Product{}
	req.apply(product)
	if err := product.Validate(); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	if err := ph.h.Store.CreateProduct(r.Context(), product); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}

	ph.h.Logger.Info("product created", "product_id", product.ID, "name", product.Name)
	ph.h.Done(w, r, http.StatusCreated, "Product created successfully", map[string]any{"product": product})
}

func (ph *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req ProductRequest
	if err := handlers.Bind(w, r, &req); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}

	product, err := ph.h.Store.GetProduct(ctx, r.PathValue("id"))
	if err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	req.apply(product)
	if err := product.Validate(); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	if err := ph.h.Store.UpdateProduct(ctx, product); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}

	ph.h.Logger.Info("product updated", "product_id", product.ID)
	ph.h.Done(w, r, http.StatusOK, "Product updated successfully", map[string]any{"product": product})
}

func (ph *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := ph.h.Store.DeleteProduct(r.Context(), id); err != nil {
		ph.h.Fail(w, r, "product", err)
		return
	}
	ph.h.Logger.Info("product deleted", "product_id", id)
	ph.h.Done(w, r, http.StatusOK, "Product deleted successfully", nil)
}

// ExportProducts streams the catalogue as a spreadsheet.
func (ph *ProductHandler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	products, _, err := ph.h.Store.ListProducts(r.Context(), store.ListOptions{Search: r.URL.Query().Get("search")})
	if err != nil {
		ph.h.Logger.Error("failed to fetch products for export", "error", err)
		http.Error(w, "Failed to fetch products", http.StatusInternalServerError)
		return
	}

	headers := []string{"Name", "Category", "Price", "Stock", "Created At", "Updated At"}
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		rows = append(rows, []any{
			p.Name, p.Category, p.Price, p.Stock,
			p.CreatedAt.Format("2006-01-02 15:04:05"),
			p.UpdatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	ph.h.WriteSpreadsheet(w, "products", "Products", headers, rows)
}
