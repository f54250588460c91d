package handler

import (
	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContractHandler 结算合同处理器
type ContractHandler struct {
	contractService service.ContractService
}

// NewContractHandler 创建结算合同处理器
func NewContractHandler(contractService service.ContractService) *ContractHandler {
	return &ContractHandler{contractService: contractService}
}

// CreateContract 创建合同（运营）
func (h *ContractHandler) CreateContract(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionContractManage, 0) {
		respondForbidden(c)
		return
	}

	var req service.CreateContractReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Logger.Error("参数绑定失败", zap.Error(err))
		respondBadRequest(c, err)
		return
	}

	contract, err := h.contractService.CreateContract(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"contract": contract})
}

// GetContract 查询合同（仅当事方与运营）
func (h *ContractHandler) GetContract(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	contract, err := h.contractService.GetContract(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	p := currentPrincipal(c)
	isParty := p.UserID == contract.WinnerID || p.UserID == contract.SellerID
	if !isParty && !service.Allow(p, service.ActionContractManage, 0) {
		respondForbidden(c)
		return
	}
	respondOK(c, gin.H{"contract": contract})
}

// AttachFee 挂接费用行（运营）
func (h *ContractHandler) AttachFee(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionContractManage, 0) {
		respondForbidden(c)
		return
	}

	var req struct {
		FeeID uint `json:"fee_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	contractFee, err := h.contractService.AttachFee(c.Request.Context(), id, req.FeeID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"contract_fee": contractFee})
}

// AttachTax 挂接税费行（运营）
func (h *ContractHandler) AttachTax(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionContractManage, 0) {
		respondForbidden(c)
		return
	}

	var req struct {
		TaxID uint `json:"tax_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	contractTax, err := h.contractService.AttachTax(c.Request.Context(), id, req.TaxID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"contract_tax": contractTax})
}

// PayWinner 买受人付款
func (h *ContractHandler) PayWinner(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionContractPay, p.UserID) {
		respondForbidden(c)
		return
	}

	contract, err := h.contractService.PayWinner(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"contract": contract})
}

// PaySeller 卖家付款
func (h *ContractHandler) PaySeller(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionContractPay, p.UserID) {
		respondForbidden(c)
		return
	}

	contract, err := h.contractService.PaySeller(c.Request.Context(), p.UserID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"contract": contract})
}

// CreateFee 新增费用目录项（运营）
func (h *ContractHandler) CreateFee(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionCatalogManage, 0) {
		respondForbidden(c)
		return
	}

	var req service.CatalogItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	fee, err := h.contractService.CreateFee(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"fee": fee})
}

// ListFees 查询费用目录
func (h *ContractHandler) ListFees(c *gin.Context) {
	fees, err := h.contractService.ListFees(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": fees})
}

// CreateTax 新增税费目录项（运营）
func (h *ContractHandler) CreateTax(c *gin.Context) {
	p := currentPrincipal(c)
	if !service.Allow(p, service.ActionCatalogManage, 0) {
		respondForbidden(c)
		return
	}

	var req service.CatalogItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	tax, err := h.contractService.CreateTax(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"tax": tax})
}

// ListTaxes 查询税费目录
func (h *ContractHandler) ListTaxes(c *gin.Context) {
	taxes, err := h.contractService.ListTaxes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"list": taxes})
}
