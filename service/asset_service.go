package service

import (
	"context"
	"errors"
	"time"

	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 鉴定师池的互斥锁key：取一个空闲鉴定师并置忙必须原子完成，防止双重指派
const appraiserPoolLockKey = "lock:appraiser_pool"

// AppraisalOutcome 鉴定结论
type AppraisalOutcome string

const (
	AppraisalOutcomeSuccessful AppraisalOutcome = "successful"
	AppraisalOutcomeFailed     AppraisalOutcome = "failed"
)

// AssetService 拍品服务接口（鉴定门禁 + 拍品CRUD）
type AssetService interface {
	CreateAsset(ctx context.Context, req CreateAssetReq) (*model.Asset, error)
	GetAsset(ctx context.Context, id uint) (*model.Asset, error)
	ListAssets(ctx context.Context, req ListAssetsReq) ([]model.Asset, int64, error)
	SubmitForAppraisal(ctx context.Context, assetID uint) (*model.Asset, error)
	RecordAppraisal(ctx context.Context, req RecordAppraisalReq) (*model.Asset, error)
	ListAppraisers(ctx context.Context) ([]model.Appraiser, error)
}

// assetService 拍品服务实现
type assetService struct {
	db       *gorm.DB
	locker   utils.Locker
	notifier utils.Notifier
}

// NewAssetService 创建拍品服务
func NewAssetService(db *gorm.DB, locker utils.Locker, notifier utils.Notifier) AssetService {
	return &assetService{db: db, locker: locker, notifier: notifier}
}

// -------------- 请求结构体 --------------

// CreateAssetReq 创建拍品请求
type CreateAssetReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Size        string `json:"size"`
	Warehouse   string `json:"warehouse"`
	Origin      string `json:"origin"`
	Quantity    uint   `json:"quantity"`
	SellerID    uint   `json:"-"`
}

// ListAssetsReq 查询拍品请求
type ListAssetsReq struct {
	Category string `json:"category"`
	Status   string `json:"status"`
	SellerID uint   `json:"seller_id"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// RecordAppraisalReq 录入鉴定结论请求
type RecordAppraisalReq struct {
	AssetID        uint             `json:"-"`
	Outcome        AppraisalOutcome `json:"outcome"`
	AppraisedValue *decimal.Decimal `json:"appraised_value"`
}

// -------------- 核心方法 --------------

// CreateAsset 创建拍品
func (s *assetService) CreateAsset(ctx context.Context, req CreateAssetReq) (*model.Asset, error) {
	if req.Name == "" {
		return nil, utils.NewValidationError("拍品名称不能为空")
	}
	if req.Category == "" {
		return nil, utils.NewValidationError("拍品品类不能为空")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	asset := model.Asset{
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Size:           req.Size,
		Warehouse:      req.Warehouse,
		Origin:         req.Origin,
		Quantity:       req.Quantity,
		SellerID:       req.SellerID,
		Status:         model.AssetStatusPending,
		AppraiseStatus: model.AppraisalStatusNotAppraised,
	}
	if err := s.db.WithContext(ctx).Create(&asset).Error; err != nil {
		utils.Logger.Error("创建拍品失败", zap.Error(err))
		return nil, err
	}
	return &asset, nil
}

// GetAsset 查询拍品
func (s *assetService) GetAsset(ctx context.Context, id uint) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍品不存在")
		}
		return nil, err
	}
	return &asset, nil
}

// ListAssets 分页查询拍品
func (s *assetService) ListAssets(ctx context.Context, req ListAssetsReq) ([]model.Asset, int64, error) {
	var assets []model.Asset
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Asset{})
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.SellerID > 0 {
		query = query.Where("seller_id = ?", req.SellerID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Order("created_at DESC").Find(&assets).Error; err != nil {
		return nil, 0, err
	}
	return assets, total, nil
}

// SubmitForAppraisal 送鉴：取第一个空闲鉴定师并指派（单件在途策略），拍品进入鉴定中
func (s *assetService) SubmitForAppraisal(ctx context.Context, assetID uint) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍品不存在")
		}
		return nil, err
	}

	if asset.AppraiseStatus != model.AppraisalStatusNotAppraised {
		return nil, utils.NewConflictError("拍品已进入鉴定流程")
	}
	if asset.Status != model.AssetStatusPending {
		return nil, utils.NewPreconditionError("拍品当前状态不可送鉴")
	}

	// 鉴定师池互斥：查空闲+置忙+指派在同一临界区内完成
	mutex, err := s.locker.Acquire(ctx, appraiserPoolLockKey, 10*time.Second)
	if err != nil {
		utils.Logger.Error("获取鉴定师池锁失败", zap.Error(err))
		return nil, errors.New("鉴定师指派繁忙，请稍后再试")
	}
	defer mutex.Release()

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 临界区内重读复核，防止两次并发送鉴各指派一名鉴定师
	if err := tx.First(&asset, assetID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if asset.AppraiseStatus != model.AppraisalStatusNotAppraised {
		tx.Rollback()
		return nil, utils.NewConflictError("拍品已进入鉴定流程")
	}
	if asset.Status != model.AssetStatusPending {
		tx.Rollback()
		return nil, utils.NewPreconditionError("拍品当前状态不可送鉴")
	}

	var appraiser model.Appraiser
	if err := tx.Where("status = ?", model.AppraiserStatusActive).Order("user_id").First(&appraiser).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewExhaustedError("暂无空闲鉴定师")
		}
		return nil, err
	}

	appraiserID := appraiser.UserID
	if err := tx.Model(&asset).Updates(map[string]interface{}{
		"appraise_status": model.AppraisalStatusUnderway,
		"appraiser_id":    appraiserID,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&appraiser).Update("status", model.AppraiserStatusInactive).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	asset.AppraiseStatus = model.AppraisalStatusUnderway
	asset.AppraiserID = &appraiserID
	return &asset, nil
}

// RecordAppraisal 录入鉴定结论：通过则落估值与时间戳，不通过则清空估值；同时释放鉴定师
func (s *assetService) RecordAppraisal(ctx context.Context, req RecordAppraisalReq) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, req.AssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍品不存在")
		}
		return nil, err
	}

	if asset.AppraiseStatus.Terminal() {
		return nil, utils.NewConflictError("鉴定结论已出，不可修改")
	}
	if asset.AppraiseStatus != model.AppraisalStatusUnderway {
		return nil, utils.NewPreconditionError("拍品尚未进入鉴定流程")
	}

	updates := map[string]interface{}{}
	switch req.Outcome {
	case AppraisalOutcomeSuccessful:
		if req.AppraisedValue == nil || req.AppraisedValue.LessThanOrEqual(decimal.Zero) {
			return nil, utils.NewValidationError("鉴定估值必须为正数")
		}
		now := time.Now()
		updates["appraise_status"] = model.AppraisalStatusSuccessful
		updates["appraised_value"] = decimal.NullDecimal{Decimal: *req.AppraisedValue, Valid: true}
		updates["appraisal_at"] = &now
	case AppraisalOutcomeFailed:
		updates["appraise_status"] = model.AppraisalStatusFailed
		updates["appraised_value"] = decimal.NullDecimal{}
	default:
		return nil, utils.NewValidationError("未知的鉴定结论: %s", req.Outcome)
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Model(&asset).Updates(updates).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// 释放鉴定师
	if asset.AppraiserID != nil {
		if err := tx.Model(&model.Appraiser{}).Where("user_id = ?", *asset.AppraiserID).
			Update("status", model.AppraiserStatusActive).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, utils.EventAssetAppraised, asset.ID); err != nil {
		utils.Logger.Error("发布鉴定完成事件失败", zap.Uint("asset_id", asset.ID), zap.Error(err))
	}

	if err := s.db.WithContext(ctx).First(&asset, req.AssetID).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

// ListAppraisers 查询鉴定师名录
func (s *assetService) ListAppraisers(ctx context.Context) ([]model.Appraiser, error) {
	var appraisers []model.Appraiser
	if err := s.db.WithContext(ctx).Order("user_id").Find(&appraisers).Error; err != nil {
		return nil, err
	}
	return appraisers, nil
}
