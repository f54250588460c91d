package handler

import (
	"strconv"

	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuctionHandler 拍卖会处理器
type AuctionHandler struct {
	auctionService service.AuctionService
}

// NewAuctionHandler 创建拍卖会处理器
func NewAuctionHandler(auctionService service.AuctionService) *AuctionHandler {
	return &AuctionHandler{auctionService: auctionService}
}

// CreateAuction 创建拍卖会（运营）
func (h *AuctionHandler) CreateAuction(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionAuctionManage, 0) {
		respondForbidden(c)
		return
	}

	var req service.CreateAuctionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		respondBadRequest(c, err)
		return
	}

	auction, err := h.auctionService.CreateAuction(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"auction": auction})
}

// GetAuction 查询拍卖会
func (h *AuctionHandler) GetAuction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	auction, err := h.auctionService.GetAuction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"auction": auction})
}

// ListAuctions 分页查询拍卖会
func (h *AuctionHandler) ListAuctions(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))

	req := service.ListAuctionsReq{
		Status:   c.Query("status"),
		Category: c.Query("category"),
		Page:     page,
		PageSize: pageSize,
	}

	auctions, total, err := h.auctionService.ListAuctions(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"list":  auctions,
		"total": total,
	})
}

// ListAuctionAssets 查询拍卖会内的拍品
func (h *AuctionHandler) ListAuctionAssets(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	assets, err := h.auctionService.ListAuctionAssets(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": assets})
}

// DeleteAuction 删除拍卖会（运营，仅限开拍前）
func (h *AuctionHandler) DeleteAuction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionAuctionManage, 0) {
		respondForbidden(c)
		return
	}

	if err := h.auctionService.DeleteAuction(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
