package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heidiie13/api-auction-system/config"
	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ContractService 结算合同服务接口
type ContractService interface {
	CreateContract(ctx context.Context, req CreateContractReq) (*model.Contract, error)
	GetContract(ctx context.Context, id uint) (*model.Contract, error)
	AttachFee(ctx context.Context, contractID, feeID uint) (*model.ContractFee, error)
	AttachTax(ctx context.Context, contractID, taxID uint) (*model.ContractTax, error)
	PayWinner(ctx context.Context, userID, contractID uint) (*model.Contract, error)
	PaySeller(ctx context.Context, userID, contractID uint) (*model.Contract, error)

	CreateFee(ctx context.Context, req CatalogItemReq) (*model.Fee, error)
	ListFees(ctx context.Context) ([]model.Fee, error)
	CreateTax(ctx context.Context, req CatalogItemReq) (*model.Tax, error)
	ListTaxes(ctx context.Context) ([]model.Tax, error)
}

// contractService 结算合同服务实现
type contractService struct {
	db       *gorm.DB
	notifier utils.Notifier
}

// NewContractService 创建结算合同服务
func NewContractService(db *gorm.DB, notifier utils.Notifier) ContractService {
	return &contractService{db: db, notifier: notifier}
}

// -------------- 请求结构体 --------------

// CreateContractReq 创建合同请求
type CreateContractReq struct {
	Name           string    `json:"name"`
	AuctionAssetID uint      `json:"auction_asset_id"`
	PaymentDueDate time.Time `json:"payment_due_date"`
}

// CatalogItemReq 费用/税费目录项请求
type CatalogItemReq struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	IsPercentage bool            `json:"is_percentage"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
}

// validateCatalogAmount 目录项金额校验：比例限定0-100，固定金额非负
func validateCatalogAmount(isPercentage bool, amount decimal.Decimal) error {
	if isPercentage {
		if amount.LessThan(decimal.Zero) || amount.GreaterThan(decimal.NewFromInt(100)) {
			return utils.NewValidationError("比例必须在0到100之间")
		}
		return nil
	}
	if amount.LessThan(decimal.Zero) {
		return utils.NewValidationError("金额不能为负数")
	}
	return nil
}

// -------------- 合同主流程 --------------

// CreateContract 创建合同：仅限已成交拍品，买卖双方不得为同一人
func (s *contractService) CreateContract(ctx context.Context, req CreateContractReq) (*model.Contract, error) {
	var auctionAsset model.AuctionAsset
	if err := s.db.WithContext(ctx).First(&auctionAsset, req.AuctionAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍卖拍品不存在")
		}
		return nil, err
	}
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, auctionAsset.AssetID).Error; err != nil {
		return nil, err
	}

	if asset.Status != model.AssetStatusSold || asset.WinnerID == nil || !auctionAsset.FinalPrice.Valid {
		return nil, utils.NewPreconditionError("只有已成交的拍品才能生成合同")
	}
	if *asset.WinnerID == asset.SellerID {
		return nil, utils.NewConflictError("买受人与卖家不能为同一用户")
	}

	var existing model.Contract
	err := s.db.WithContext(ctx).Where("auction_asset_id = ?", req.AuctionAssetID).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("该拍品已有合同")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if req.PaymentDueDate.IsZero() {
		req.PaymentDueDate = time.Now().AddDate(0, 0, 30)
	}
	name := req.Name
	if name == "" {
		name = fmt.Sprintf("拍品%d成交合同", asset.ID)
	}

	contract := model.Contract{
		ContractNo:          uuid.NewString(),
		Name:                name,
		AuctionAssetID:      req.AuctionAssetID,
		WinnerID:            *asset.WinnerID,
		SellerID:            asset.SellerID,
		Status:              model.ContractStatusActive,
		WinnerPaymentStatus: model.PaymentStatusUnpaid,
		SellerPaymentStatus: model.PaymentStatusUnpaid,
		PaymentDueDate:      req.PaymentDueDate,
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&contract).Error; err != nil {
		tx.Rollback()
		utils.Logger.Error("创建合同失败", zap.Uint("auction_asset_id", req.AuctionAssetID), zap.Error(err))
		return nil, err
	}
	if err := s.recomputeAggregates(tx, &contract, &auctionAsset); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetContract 查询合同
func (s *contractService) GetContract(ctx context.Context, id uint) (*model.Contract, error) {
	var contract model.Contract
	if err := s.db.WithContext(ctx).First(&contract, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("合同不存在")
		}
		return nil, err
	}
	return &contract, nil
}

// recomputeAggregates 重算合同派生金额（事务内调用）：
// total_fees = Σ费用行，total_taxes = Σ税费行
// winner_amount_due = final_price + total_taxes - 已付保证金抵扣
// seller_amount_due = total_fees
func (s *contractService) recomputeAggregates(tx *gorm.DB, contract *model.Contract, auctionAsset *model.AuctionAsset) error {
	var contractFees []model.ContractFee
	if err := tx.Where("contract_id = ?", contract.ID).Find(&contractFees).Error; err != nil {
		return err
	}
	var contractTaxes []model.ContractTax
	if err := tx.Where("contract_id = ?", contract.ID).Find(&contractTaxes).Error; err != nil {
		return err
	}

	totalFees := decimal.Zero
	for _, cf := range contractFees {
		totalFees = totalFees.Add(cf.Amount)
	}
	totalTaxes := decimal.Zero
	for _, ct := range contractTaxes {
		totalTaxes = totalTaxes.Add(ct.Amount)
	}

	winnerDue := auctionAsset.FinalPrice.Decimal.Add(totalTaxes)
	if config.GlobalConfig.DepositCreditEnabled {
		// 买受人已付保证金抵扣应付款
		var deposit model.AssetDeposit
		err := tx.Where("user_id = ? AND auction_asset_id = ? AND payment_status = ?",
			contract.WinnerID, contract.AuctionAssetID, model.PaymentStatusPaid).
			First(&deposit).Error
		if err == nil {
			winnerDue = winnerDue.Sub(deposit.Amount)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	contract.TotalFees = totalFees
	contract.TotalTaxes = totalTaxes
	contract.WinnerAmountDue = winnerDue
	contract.SellerAmountDue = totalFees

	return tx.Model(contract).Updates(map[string]interface{}{
		"total_fees":        totalFees,
		"total_taxes":       totalTaxes,
		"winner_amount_due": winnerDue,
		"seller_amount_due": totalFees,
	}).Error
}

// lineItemAmount 计算费用/税费行实际金额：比例计成交价×比例/100，否则取固定金额
func lineItemAmount(isPercentage bool, amount, finalPrice decimal.Decimal) decimal.Decimal {
	if isPercentage {
		return finalPrice.Mul(amount).Div(decimal.NewFromInt(100))
	}
	return amount
}

// AttachFee 挂接费用行：(contract, fee)唯一，事务内落行并重算派生金额
func (s *contractService) AttachFee(ctx context.Context, contractID, feeID uint) (*model.ContractFee, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	var fee model.Fee
	if err := s.db.WithContext(ctx).First(&fee, feeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("费用项不存在")
		}
		return nil, err
	}

	var existing model.ContractFee
	err = s.db.WithContext(ctx).Where("contract_id = ? AND fee_id = ?", contractID, feeID).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("该费用已挂接到此合同")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var auctionAsset model.AuctionAsset
	if err := s.db.WithContext(ctx).First(&auctionAsset, contract.AuctionAssetID).Error; err != nil {
		return nil, err
	}

	contractFee := model.ContractFee{
		ContractID: contractID,
		FeeID:      feeID,
		Amount:     lineItemAmount(fee.IsPercentage, fee.Amount, auctionAsset.FinalPrice.Decimal),
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&contractFee).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recomputeAggregates(tx, contract, &auctionAsset); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &contractFee, nil
}

// AttachTax 挂接税费行：(contract, tax)唯一，事务内落行并重算派生金额
func (s *contractService) AttachTax(ctx context.Context, contractID, taxID uint) (*model.ContractTax, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}
	var tax model.Tax
	if err := s.db.WithContext(ctx).First(&tax, taxID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("税费项不存在")
		}
		return nil, err
	}

	var existing model.ContractTax
	err = s.db.WithContext(ctx).Where("contract_id = ? AND tax_id = ?", contractID, taxID).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("该税费已挂接到此合同")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var auctionAsset model.AuctionAsset
	if err := s.db.WithContext(ctx).First(&auctionAsset, contract.AuctionAssetID).Error; err != nil {
		return nil, err
	}

	contractTax := model.ContractTax{
		ContractID: contractID,
		TaxID:      taxID,
		Amount:     lineItemAmount(tax.IsPercentage, tax.Amount, auctionAsset.FinalPrice.Decimal),
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&contractTax).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recomputeAggregates(tx, contract, &auctionAsset); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &contractTax, nil
}

// payParty 当事方付款通用流程：幂等防重 + 流水 + 双方结清则合同completed
func (s *contractService) payParty(ctx context.Context, userID, contractID uint, winnerSide bool) (*model.Contract, error) {
	contract, err := s.GetContract(ctx, contractID)
	if err != nil {
		return nil, err
	}

	var column, paidMsg string
	var txType model.TransactionType
	if winnerSide {
		if contract.WinnerID != userID {
			return nil, utils.NewNotFoundError("合同不存在")
		}
		column = "winner_payment_status"
		paidMsg = "买受人款项已支付"
		txType = model.TransactionTypeWinnerPayment
	} else {
		if contract.SellerID != userID {
			return nil, utils.NewNotFoundError("合同不存在")
		}
		column = "seller_payment_status"
		paidMsg = "卖家款项已支付"
		txType = model.TransactionTypeSellerPayment
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 条件更新防并发重付：只有unpaid→paid的那一次才算成功
	res := tx.Model(&model.Contract{}).
		Where("id = ? AND "+column+" = ?", contract.ID, model.PaymentStatusUnpaid).
		Update(column, model.PaymentStatusPaid)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflictError(paidMsg)
	}

	contractIDRef := contract.ID
	history := model.TransactionHistory{
		UserID:          userID,
		TransactionType: txType,
		Status:          model.TransactionStatusSuccess,
		Description:     fmt.Sprintf("合同%s当事方付款", contract.ContractNo),
		ContractID:      &contractIDRef,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 状态推导：事务内重读合同，双方均已结清才算完成
	if err := tx.First(contract, contract.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	completed := contract.WinnerPaymentStatus == model.PaymentStatusPaid &&
		contract.SellerPaymentStatus == model.PaymentStatusPaid
	if completed {
		if err := tx.Model(contract).Update("status", model.ContractStatusCompleted).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		contract.Status = model.ContractStatusCompleted
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if completed {
		if err := s.notifier.Publish(ctx, utils.EventContractCompleted, contract.ID); err != nil {
			utils.Logger.Error("发布合同完成事件失败", zap.Uint("contract_id", contract.ID), zap.Error(err))
		}
	}

	return contract, nil
}

// PayWinner 买受人付款
func (s *contractService) PayWinner(ctx context.Context, userID, contractID uint) (*model.Contract, error) {
	return s.payParty(ctx, userID, contractID, true)
}

// PaySeller 卖家付款
func (s *contractService) PaySeller(ctx context.Context, userID, contractID uint) (*model.Contract, error) {
	return s.payParty(ctx, userID, contractID, false)
}

// -------------- 费用/税费目录 --------------

// CreateFee 新增费用目录项
func (s *contractService) CreateFee(ctx context.Context, req CatalogItemReq) (*model.Fee, error) {
	if req.Name == "" {
		return nil, utils.NewValidationError("费用名称不能为空")
	}
	if err := validateCatalogAmount(req.IsPercentage, req.Amount); err != nil {
		return nil, err
	}
	fee := model.Fee{
		Name:         req.Name,
		FeeType:      model.FeeType(req.Type),
		IsPercentage: req.IsPercentage,
		Amount:       req.Amount,
		Description:  req.Description,
	}
	if err := s.db.WithContext(ctx).Create(&fee).Error; err != nil {
		return nil, err
	}
	return &fee, nil
}

// ListFees 查询费用目录
func (s *contractService) ListFees(ctx context.Context) ([]model.Fee, error) {
	var fees []model.Fee
	if err := s.db.WithContext(ctx).Order("id").Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

// CreateTax 新增税费目录项
func (s *contractService) CreateTax(ctx context.Context, req CatalogItemReq) (*model.Tax, error) {
	if req.Name == "" {
		return nil, utils.NewValidationError("税费名称不能为空")
	}
	if err := validateCatalogAmount(req.IsPercentage, req.Amount); err != nil {
		return nil, err
	}
	tax := model.Tax{
		Name:         req.Name,
		TaxType:      model.TaxType(req.Type),
		IsPercentage: req.IsPercentage,
		Amount:       req.Amount,
		Description:  req.Description,
	}
	if err := s.db.WithContext(ctx).Create(&tax).Error; err != nil {
		return nil, err
	}
	return &tax, nil
}

// ListTaxes 查询税费目录
func (s *contractService) ListTaxes(ctx context.Context) ([]model.Tax, error) {
	var taxes []model.Tax
	if err := s.db.WithContext(ctx).Order("id").Find(&taxes).Error; err != nil {
		return nil, err
	}
	return taxes, nil
}
