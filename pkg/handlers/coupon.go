package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medreza/marketplace-coupons/pkg/coupon"
	"github.com/medreza/marketplace-coupons/pkg/models"
	"github.com/medreza/marketplace-coupons/pkg/repository"
	"github.com/sirupsen/logrus"
)

type CouponHandler struct {
	service *coupon.Service
}

func NewCouponHandler(service *coupon.Service) *CouponHandler {
	return &CouponHandler{service: service}
}

// Register mounts the coupon routes on rg.
func (h *CouponHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/coupons", h.CreateCoupon)
	rg.GET("/coupons", h.ListCoupons)
	rg.POST("/coupons/validate", h.ValidateCoupon)
	rg.POST("/coupons/redeem", h.RedeemCoupon)
	rg.GET("/coupons/:code", h.GetCoupon)
	rg.PATCH("/coupons/:code/deactivate", h.DeactivateCoupon)
}

func (h *CouponHandler) CreateCoupon(c *gin.Context) {
	var req models.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("CreateCoupon: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			logrus.WithField("coupon_code", models.NormalizeCode(req.Code)).Warn("CreateCoupon: Coupon already exists")
			c.JSON(http.StatusConflict, gin.H{"error": "Coupon already exists"})
			return
		}
		logrus.WithError(err).Error("CreateCoupon: Failed to create coupon")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create coupon"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *CouponHandler) ListCoupons(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	coupons, total, err := h.service.List(c.Request.Context(), page, limit)
	if err != nil {
		logrus.WithError(err).Error("ListCoupons: Failed to list coupons")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list coupons"})
		return
	}
	if coupons == nil {
		coupons = make([]models.Coupon, 0)
	}

	c.JSON(http.StatusOK, models.CouponListResponse{
		Coupons: coupons,
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

func (h *CouponHandler) GetCoupon(c *gin.Context) {
	code := c.Param("code")
	if code == "" {
		logrus.Warn("GetCoupon: Coupon code is required")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coupon code is required"})
		return
	}

	found, err := h.service.Get(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			logrus.WithField("coupon_code", code).Warn("GetCoupon: Coupon not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		logrus.WithField("coupon_code", code).WithError(err).Error("GetCoupon: Failed to get coupon")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get coupon"})
		return
	}

	c.JSON(http.StatusOK, found)
}

// ValidateCoupon answers 200 for both valid and invalid coupons; an invalid
// coupon is a result, not an error.
func (h *CouponHandler) ValidateCoupon(c *gin.Context) {
	var req models.ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("ValidateCoupon: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	quote, err := h.service.Preview(c.Request.Context(), req.Code, req.UserID, req.CartAmount)
	if err != nil {
		h.fail(c, "ValidateCoupon", err, logrus.Fields{"coupon_code": req.Code, "user_id": req.UserID})
		return
	}

	c.JSON(http.StatusOK, models.ValidateCouponResponse{
		Valid:          quote.Validity.Valid,
		Code:           quote.Coupon.Code,
		Reason:         string(quote.Validity.Reason),
		Message:        quote.Validity.Message,
		DiscountAmount: quote.Discount,
	})
}

func (h *CouponHandler) RedeemCoupon(c *gin.Context) {
	var req models.RedeemCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithField("error", err).Warn("RedeemCoupon: Invalid request body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	updated, discount, err := h.service.Apply(c.Request.Context(), req.Code, req.UserID, req.OrderAmount)
	if err != nil {
		h.fail(c, "RedeemCoupon", err, logrus.Fields{"coupon_code": req.Code, "user_id": req.UserID})
		return
	}

	resp := models.RedeemCouponResponse{
		Code:           updated.Code,
		UserID:         req.UserID,
		OrderAmount:    req.OrderAmount,
		DiscountAmount: discount,
		PayableAmount:  req.OrderAmount - discount,
		UsedCount:      updated.UsedCount,
	}
	if updated.UsageLimit != nil {
		remaining := *updated.UsageLimit - updated.UsedCount
		resp.Remaining = &remaining
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CouponHandler) DeactivateCoupon(c *gin.Context) {
	code := c.Param("code")

	if err := h.service.Deactivate(c.Request.Context(), code); err != nil {
		if errors.Is(err, repository.ErrCouponNotFound) {
			logrus.WithField("coupon_code", code).Warn("DeactivateCoupon: Coupon not found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
			return
		}
		logrus.WithField("coupon_code", code).WithError(err).Error("DeactivateCoupon: Failed to deactivate coupon")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate coupon"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Coupon deactivated", "code": models.NormalizeCode(code)})
}

func (h *CouponHandler) fail(c *gin.Context, op string, err error, fields logrus.Fields) {
	log := logrus.WithFields(fields)

	var verr *coupon.ValidationError
	switch {
	case errors.As(err, &verr):
		log.WithField("reason", verr.Validity.Reason).Warn(op + ": Coupon rejected")
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  verr.Validity.Message,
			"reason": verr.Validity.Reason,
		})
	case errors.Is(err, coupon.ErrInvalidArgument):
		log.WithError(err).Warn(op + ": Invalid argument")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrCouponNotFound):
		log.Warn(op + ": Coupon not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "Coupon not found"})
	case errors.Is(err, coupon.ErrRedemptionConflict):
		log.Warn(op + ": Redemption conflict")
		c.JSON(http.StatusConflict, gin.H{"error": "Coupon is being redeemed concurrently, please retry"})
	default:
		log.WithError(err).Error(op + ": Failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process coupon"})
	}
}
