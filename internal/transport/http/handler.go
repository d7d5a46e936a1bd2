package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/holydev/shopsphere/internal/model"
	"github.com/holydev/shopsphere/internal/service"
)

// Services bundles everything the router exposes.
type Services struct {
	Orders   *service.OrderService
	Users    *service.UserService
	Products *service.ProductService
	Carts    *service.CartService
	Reviews  *service.ReviewService
}

func RegisterHandlers(r *gin.Engine, svc Services) {
	v1 := r.Group("/v1")
	{
		v1.POST("/users", registerUserHandler(svc.Users))
		v1.GET("/users/:id", getUserHandler(svc.Users))

		v1.GET("/products", listProductsHandler(svc.Products))
		v1.GET("/products/:id", getProductHandler(svc.Products))
		v1.POST("/products", createProductHandler(svc.Products))
		v1.PUT("/products/:id/stock", setStockHandler(svc.Products))
		v1.GET("/products/:id/reviews", listReviewsHandler(svc.Reviews))

		auth := v1.Group("", RequireUser())
		{
			auth.POST("/products/:id/reviews", createReviewHandler(svc.Reviews))

			auth.GET("/cart", getCartHandler(svc.Carts))
			auth.POST("/cart/items", addCartItemHandler(svc.Carts))
			auth.PUT("/cart/items/:productId", updateCartItemHandler(svc.Carts))
			auth.DELETE("/cart/items/:productId", removeCartItemHandler(svc.Carts))
			auth.POST("/cart/checkout", checkoutHandler(svc.Carts, svc.Orders))

			auth.POST("/orders", createOrderHandler(svc.Orders))
			auth.GET("/orders", listOrdersHandler(svc.Orders))
			auth.GET("/orders/:id", getOrderHandler(svc.Orders))
		}

		v1.GET("/admin/orders", listAllOrdersHandler(svc.Orders))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCartItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyRated):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidRating):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

type registerUserReq struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func registerUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerUserReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		u, err := svc.Register(c, req.Email, req.FirstName, req.LastName)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

func getUserHandler(svc *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := svc.Get(c, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

type createProductReq struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
	Price       string `json:"price" binding:"required"`
	ImageURL    string `json:"image_url"`
	Stock       int    `json:"stock"`
}

func createProductHandler(svc *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		p, err := svc.Create(c, service.CreateProductInput{
			Name:        req.Name,
			Description: req.Description,
			SKU:         req.SKU,
			Price:       price,
			ImageURL:    req.ImageURL,
			Stock:       req.Stock,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func getProductHandler(svc *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Get(c, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func listProductsHandler(svc *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
		items, total, err := svc.List(c, c.Query("q"), page, pageSize)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "pageSize": pageSize, "items": items})
	}
}

type setStockReq struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

func setStockHandler(svc *service.ProductService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req setStockReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.SetStock(c, c.Param("id"), req.Quantity); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": c.Param("id"), "quantity": req.Quantity})
	}
}

type createReviewReq struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func createReviewHandler(svc *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReviewReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		rev, err := svc.Create(c, c.GetString("userID"), c.Param("id"), req.Rating, req.Comment)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, rev)
	}
}

func listReviewsHandler(svc *service.ReviewService) gin.HandlerFunc {
	return func(c *gin.Context) {
		reviews, err := svc.ListByProduct(c, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, reviews)
	}
}

func getCartHandler(svc *service.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		cart, err := svc.Get(c, c.GetString("userID"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, cart)
	}
}

type cartItemReq struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

func addCartItemHandler(svc *service.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cartItemReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.AddItem(c, c.GetString("userID"), req.ProductID, req.Quantity); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type updateCartItemReq struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

func updateCartItemHandler(svc *service.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateCartItemReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := svc.UpdateItem(c, c.GetString("userID"), c.Param("productId"), req.Quantity); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func removeCartItemHandler(svc *service.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RemoveItem(c, c.GetString("userID"), c.Param("productId")); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func checkoutHandler(carts *service.CartService, orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := carts.Checkout(c, c.GetString("userID"), orders)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

type createOrderReq struct {
	Items []struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
	} `json:"items" binding:"required,dive"`
}

func createOrderHandler(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createOrderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lines := make([]service.OrderLine, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, service.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
		}
		order, err := svc.Create(c, c.GetString("userID"), lines)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func listOrdersHandler(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListUserOrders(c, c.GetString("userID"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, orders)
	}
}

func getOrderHandler(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := svc.Get(c, c.GetString("userID"), c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listAllOrdersHandler(svc *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "10"))
		status := model.OrderStatus(c.Query("status"))
		orders, total, err := svc.ListAll(c, status, page, pageSize)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "page": page, "pageSize": pageSize, "items": orders})
	}
}
