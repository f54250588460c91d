package handler

import (
	"strconv"

	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BidHandler 报名/保证金/竞价处理器
type BidHandler struct {
	bidService service.BidService
}

// NewBidHandler 创建竞价处理器
func NewBidHandler(bidService service.BidService) *BidHandler {
	return &BidHandler{bidService: bidService}
}

// RegisterForAuction 报名拍卖会
func (h *BidHandler) RegisterForAuction(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionRegister, 0) {
		respondForbidden(c)
		return
	}

	fee, err := h.bidService.RegisterForAuction(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"registration_fee": fee})
}

// PayRegistrationFee 支付报名费
func (h *BidHandler) PayRegistrationFee(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionRegister, 0) {
		respondForbidden(c)
		return
	}

	fee, err := h.bidService.PayRegistrationFee(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"registration_fee": fee})
}

// DepositForAsset 缴纳拍品保证金
func (h *BidHandler) DepositForAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionDeposit, 0) {
		respondForbidden(c)
		return
	}

	deposit, err := h.bidService.DepositForAsset(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"deposit": deposit})
}

// PayDeposit 支付保证金
func (h *BidHandler) PayDeposit(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionDeposit, 0) {
		respondForbidden(c)
		return
	}

	deposit, err := h.bidService.PayDeposit(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"deposit": deposit})
}

// PlaceBid 出价
func (h *BidHandler) PlaceBid(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionBid, 0) {
		respondForbidden(c)
		return
	}

	var req service.PlaceBidReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		respondBadRequest(c, err)
		return
	}
	req.UserID = p.UserID
	req.AuctionAssetID = id

	bid, err := h.bidService.PlaceBid(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"bid": bid})
}

// ListBids 查询出价记录（普通用户只看本人，运营可看全部）
func (h *BidHandler) ListBids(c *gin.Context) {
	p := currentPrincipal(c)
	if !p.Authenticated {
		respondForbidden(c)
		return
	}

	auctionAssetID, _ := strconv.ParseUint(c.Query("auction_asset_id"), 10, 64)
	userID := p.UserID
	if p.Role == model.UserRoleStaff || p.Role == model.UserRoleAdmin {
		userID = 0
	}

	bids, err := h.bidService.ListBids(c.Request.Context(), userID, uint(auctionAssetID))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": bids})
}
