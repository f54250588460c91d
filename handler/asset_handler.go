package handler

import (
	"strconv"

	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AssetHandler 拍品处理器
type AssetHandler struct {
	assetService service.AssetService
}

// NewAssetHandler 创建拍品处理器
func NewAssetHandler(assetService service.AssetService) *AssetHandler {
	return &AssetHandler{assetService: assetService}
}

// CreateAsset 创建拍品（卖家）
func (h *AssetHandler) CreateAsset(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionAssetWrite, p.UserID) {
		respondForbidden(c)
		return
	}

	var req service.CreateAssetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		respondBadRequest(c, err)
		return
	}
	req.SellerID = p.UserID

	asset, err := h.assetService.CreateAsset(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"asset": asset})
}

// GetAsset 查询拍品
func (h *AssetHandler) GetAsset(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	asset, err := h.assetService.GetAsset(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"asset": asset})
}

// ListAssets 分页查询拍品
func (h *AssetHandler) ListAssets(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	sellerID, _ := strconv.ParseUint(c.Query("seller_id"), 10, 64)

	req := service.ListAssetsReq{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		SellerID: uint(sellerID),
		Page:     page,
		PageSize: pageSize,
	}

	assets, total, err := h.assetService.ListAssets(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{
		"list":  assets,
		"total": total,
	})
}

// SubmitForAppraisal 送鉴（拍品归属卖家）
func (h *AssetHandler) SubmitForAppraisal(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	asset, err := h.assetService.GetAsset(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !service.Allow(p, service.ActionAssetWrite, asset.SellerID) {
		respondForbidden(c)
		return
	}

	asset, err = h.assetService.SubmitForAppraisal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"asset": asset})
}

// RecordAppraisal 录入鉴定结论（运营）
func (h *AssetHandler) RecordAppraisal(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionAppraisalRecord, 0) {
		respondForbidden(c)
		return
	}

	var req service.RecordAppraisalReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		respondBadRequest(c, err)
		return
	}
	req.AssetID = id

	asset, err := h.assetService.RecordAppraisal(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"asset": asset})
}

// ListAppraisers 查询鉴定师名录（运营）
func (h *AssetHandler) ListAppraisers(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionAppraisalRecord, 0) {
		respondForbidden(c)
		return
	}

	appraisers, err := h.assetService.ListAppraisers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": appraisers})
}
