package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heidiie13/api-auction-system/config"
	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// bidLockKey 竞价临界区锁key：单个拍卖拍品上的读改写序列必须串行
func bidLockKey(auctionAssetID uint) string {
	return fmt.Sprintf("lock:auction_asset:%d:bid", auctionAssetID)
}

// finalizeTaskKey 结拍延时任务key
func finalizeTaskKey(auctionAssetID uint) string {
	return fmt.Sprintf("auction_asset:%d:finalize", auctionAssetID)
}

// BidService 报名/保证金台账 + 竞价引擎接口
type BidService interface {
	RegisterForAuction(ctx context.Context, userID, auctionID uint) (*model.RegistrationFee, error)
	PayRegistrationFee(ctx context.Context, userID, feeID uint) (*model.RegistrationFee, error)
	DepositForAsset(ctx context.Context, userID, auctionAssetID uint) (*model.AssetDeposit, error)
	PayDeposit(ctx context.Context, userID, depositID uint) (*model.AssetDeposit, error)
	PlaceBid(ctx context.Context, req PlaceBidReq) (*model.Bid, error)
	ListBids(ctx context.Context, userID, auctionAssetID uint) ([]model.Bid, error)
	FinalizeAsset(ctx context.Context, auctionAssetID uint) error
}

// bidService 竞价服务实现
type bidService struct {
	db        *gorm.DB
	locker    utils.Locker
	scheduler utils.TaskScheduler
	notifier  utils.Notifier
	now       func() time.Time
}

// NewBidService 创建竞价服务
func NewBidService(db *gorm.DB, locker utils.Locker, scheduler utils.TaskScheduler, notifier utils.Notifier) BidService {
	return &bidService{
		db:        db,
		locker:    locker,
		scheduler: scheduler,
		notifier:  notifier,
		now:       time.Now,
	}
}

// PlaceBidReq 出价请求
type PlaceBidReq struct {
	UserID         uint            `json:"-"`
	AuctionAssetID uint            `json:"auction_asset_id"`
	Amount         decimal.Decimal `json:"amount"`
}

// -------------- 报名与保证金 --------------

// RegisterForAuction 报名：仅限报名期，(user, auction)唯一，生成固定金额的未付报名费
func (s *bidService) RegisterForAuction(ctx context.Context, userID, auctionID uint) (*model.RegistrationFee, error) {
	var auction model.Auction
	if err := s.db.WithContext(ctx).First(&auction, auctionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍卖会不存在")
		}
		return nil, err
	}

	if auction.Status != model.AuctionStatusRegistration {
		return nil, utils.NewPreconditionError("拍卖会不在报名期")
	}

	var existing model.RegistrationFee
	err := s.db.WithContext(ctx).Where("user_id = ? AND auction_id = ?", userID, auctionID).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("已报名该拍卖会")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fee := model.RegistrationFee{
		UserID:        userID,
		AuctionID:     auctionID,
		Amount:        config.GlobalConfig.RegistrationFee,
		PaymentStatus: model.PaymentStatusUnpaid,
	}
	if err := s.db.WithContext(ctx).Create(&fee).Error; err != nil {
		utils.Logger.Error("创建报名费失败", zap.Uint("user_id", userID), zap.Uint("auction_id", auctionID), zap.Error(err))
		return nil, err
	}
	return &fee, nil
}

// PayRegistrationFee 支付报名费（幂等防重，无支付网关，仅状态标记）
func (s *bidService) PayRegistrationFee(ctx context.Context, userID, feeID uint) (*model.RegistrationFee, error) {
	var fee model.RegistrationFee
	if err := s.db.WithContext(ctx).First(&fee, feeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("报名费记录不存在")
		}
		return nil, err
	}
	if fee.UserID != userID {
		return nil, utils.NewNotFoundError("报名费记录不存在")
	}
	if fee.PaymentStatus == model.PaymentStatusPaid {
		return nil, utils.NewConflictError("报名费已支付")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 条件更新防并发重付：只有unpaid→paid的那一次才算成功
	res := tx.Model(&model.RegistrationFee{}).
		Where("id = ? AND payment_status = ?", fee.ID, model.PaymentStatusUnpaid).
		Update("payment_status", model.PaymentStatusPaid)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflictError("报名费已支付")
	}
	auctionID := fee.AuctionID
	history := model.TransactionHistory{
		UserID:          userID,
		TransactionType: model.TransactionTypeRegistration,
		Status:          model.TransactionStatusSuccess,
		Description:     fmt.Sprintf("拍卖会%d报名费", auctionID),
		AuctionID:       &auctionID,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	fee.PaymentStatus = model.PaymentStatusPaid
	return &fee, nil
}

// DepositForAsset 缴纳保证金意向：仅限报名期，需已付报名费，金额=品类比例×起拍价/100
func (s *bidService) DepositForAsset(ctx context.Context, userID, auctionAssetID uint) (*model.AssetDeposit, error) {
	auctionAsset, auction, asset, err := s.loadBidContext(ctx, auctionAssetID)
	if err != nil {
		return nil, err
	}

	if auction.Status != model.AuctionStatusRegistration {
		return nil, utils.NewPreconditionError("保证金仅在报名期可缴纳")
	}
	if asset.AppraiseStatus != model.AppraisalStatusSuccessful {
		return nil, utils.NewPreconditionError("拍品未通过鉴定，不可缴纳保证金")
	}

	// 必须先有已付报名费
	var regFee model.RegistrationFee
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND auction_id = ? AND payment_status = ?", userID, auction.ID, model.PaymentStatusPaid).
		First(&regFee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewPreconditionError("请先支付报名费")
		}
		return nil, err
	}

	var existing model.AssetDeposit
	err = s.db.WithContext(ctx).Where("user_id = ? AND auction_asset_id = ?", userID, auctionAssetID).First(&existing).Error
	if err == nil {
		return nil, utils.NewConflictError("已缴纳过该拍品的保证金")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	percentage := config.DepositPercentageFor(asset.Category)
	amount := percentage.Mul(auctionAsset.StartingPrice).Div(decimal.NewFromInt(100))

	deposit := model.AssetDeposit{
		UserID:         userID,
		AuctionAssetID: auctionAssetID,
		Percentage:     percentage,
		Amount:         amount,
		PaymentStatus:  model.PaymentStatusUnpaid,
	}
	if err := s.db.WithContext(ctx).Create(&deposit).Error; err != nil {
		utils.Logger.Error("创建保证金失败", zap.Uint("user_id", userID), zap.Uint("auction_asset_id", auctionAssetID), zap.Error(err))
		return nil, err
	}
	return &deposit, nil
}

// PayDeposit 支付保证金（幂等防重）
func (s *bidService) PayDeposit(ctx context.Context, userID, depositID uint) (*model.AssetDeposit, error) {
	var deposit model.AssetDeposit
	if err := s.db.WithContext(ctx).First(&deposit, depositID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("保证金记录不存在")
		}
		return nil, err
	}
	if deposit.UserID != userID {
		return nil, utils.NewNotFoundError("保证金记录不存在")
	}
	if deposit.PaymentStatus == model.PaymentStatusPaid {
		return nil, utils.NewConflictError("保证金已支付")
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 条件更新防并发重付：只有unpaid→paid的那一次才算成功
	res := tx.Model(&model.AssetDeposit{}).
		Where("id = ? AND payment_status = ?", deposit.ID, model.PaymentStatusUnpaid).
		Update("payment_status", model.PaymentStatusPaid)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, utils.NewConflictError("保证金已支付")
	}
	auctionAssetID := deposit.AuctionAssetID
	history := model.TransactionHistory{
		UserID:          userID,
		TransactionType: model.TransactionTypeDeposit,
		Status:          model.TransactionStatusSuccess,
		Description:     fmt.Sprintf("拍卖拍品%d保证金", auctionAssetID),
		AuctionAssetID:  &auctionAssetID,
	}
	if err := tx.Create(&history).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	deposit.PaymentStatus = model.PaymentStatusPaid
	return &deposit, nil
}

// -------------- 竞价引擎 --------------

// loadBidContext 加载拍卖拍品及其所属拍卖会、拍品
func (s *bidService) loadBidContext(ctx context.Context, auctionAssetID uint) (*model.AuctionAsset, *model.Auction, *model.Asset, error) {
	var auctionAsset model.AuctionAsset
	if err := s.db.WithContext(ctx).First(&auctionAsset, auctionAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, utils.NewNotFoundError("拍卖拍品不存在")
		}
		return nil, nil, nil, err
	}
	var auction model.Auction
	if err := s.db.WithContext(ctx).First(&auction, auctionAsset.AuctionID).Error; err != nil {
		return nil, nil, nil, err
	}
	var asset model.Asset
	if err := s.db.WithContext(ctx).First(&asset, auctionAsset.AssetID).Error; err != nil {
		return nil, nil, nil, err
	}
	return &auctionAsset, &auction, &asset, nil
}

// PlaceBid 出价：
// 资格校验（竞价中+已付报名费+已付保证金）→ 临界区内复核当前价 →
// 事务内落出价、推高当前价、迁移最高价标记 → 重申结拍任务
func (s *bidService) PlaceBid(ctx context.Context, req PlaceBidReq) (*model.Bid, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, utils.NewValidationError("出价金额必须为正数")
	}

	auctionAsset, auction, _, err := s.loadBidContext(ctx, req.AuctionAssetID)
	if err != nil {
		return nil, err
	}

	if auction.Status != model.AuctionStatusActive {
		return nil, utils.NewPreconditionError("当前不在竞价时段")
	}
	// 本件竞价时段已结束（结拍任务已触发或将触发），视同竞价关闭
	if !s.now().Before(auctionAsset.EndAt) || auctionAsset.FinalPrice.Valid || auctionAsset.FinalizedAt != nil {
		return nil, utils.NewPreconditionError("当前不在竞价时段")
	}

	// 已付报名费
	var regFee model.RegistrationFee
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND auction_id = ? AND payment_status = ?", req.UserID, auction.ID, model.PaymentStatusPaid).
		First(&regFee).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewPreconditionError("请先支付报名费")
		}
		return nil, err
	}

	// 已付本件保证金
	var deposit model.AssetDeposit
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND auction_asset_id = ? AND payment_status = ?", req.UserID, req.AuctionAssetID, model.PaymentStatusPaid).
		First(&deposit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewPreconditionError("请先支付该拍品的保证金")
		}
		return nil, err
	}

	// 单拍品竞价串行化：两个并发出价不得同时读到同一当前价
	mutex, err := s.locker.Acquire(ctx, bidLockKey(req.AuctionAssetID), 10*time.Second)
	if err != nil {
		utils.Logger.Error("获取竞价锁失败", zap.Uint("auction_asset_id", req.AuctionAssetID), zap.Error(err))
		return nil, errors.New("竞价繁忙，请稍后再试")
	}
	defer mutex.Release()

	// 临界区内重读当前价，严格递增规则（持平亦拒绝）
	if err := s.db.WithContext(ctx).First(auctionAsset, req.AuctionAssetID).Error; err != nil {
		return nil, err
	}
	if auctionAsset.FinalPrice.Valid || auctionAsset.FinalizedAt != nil {
		return nil, utils.NewPreconditionError("当前不在竞价时段")
	}
	if req.Amount.LessThanOrEqual(auctionAsset.CurrentPrice) {
		return nil, utils.NewPreconditionError("出价必须高于当前价%s", auctionAsset.CurrentPrice.String())
	}

	bid := model.Bid{
		UserID:         req.UserID,
		AuctionAssetID: req.AuctionAssetID,
		Amount:         req.Amount,
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(&bid).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(auctionAsset).Updates(map[string]interface{}{
		"current_price": req.Amount,
		"bid_count":     gorm.Expr("bid_count + 1"),
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	// 最高价标记迁移：清掉其余出价的标记，再点亮新出价
	if err := tx.Model(&model.Bid{}).
		Where("auction_asset_id = ? AND id <> ?", req.AuctionAssetID, bid.ID).
		Update("is_current_highest", false).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(&bid).Update("is_current_highest", true).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// 重申结拍任务（取消重排语义；不改变结束时间本身）
	auctionAssetID := req.AuctionAssetID
	s.scheduler.Schedule(auctionAsset.EndAt, finalizeTaskKey(auctionAssetID), func() {
		if err := s.FinalizeAsset(context.Background(), auctionAssetID); err != nil {
			utils.Logger.Error("结拍任务执行失败", zap.Uint("auction_asset_id", auctionAssetID), zap.Error(err))
		}
	})

	if err := s.notifier.Publish(ctx, utils.EventBidPlaced, bid.ID); err != nil {
		utils.Logger.Error("发布出价事件失败", zap.Uint("bid_id", bid.ID), zap.Error(err))
	}

	bid.IsCurrentHighest = true
	return &bid, nil
}

// ListBids 查询出价记录（userID>0时只看本人）
func (s *bidService) ListBids(ctx context.Context, userID, auctionAssetID uint) ([]model.Bid, error) {
	query := s.db.WithContext(ctx).Model(&model.Bid{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if auctionAssetID > 0 {
		query = query.Where("auction_asset_id = ?", auctionAssetID)
	}
	var bids []model.Bid
	if err := query.Order("amount DESC").Find(&bids).Error; err != nil {
		return nil, err
	}
	return bids, nil
}

// FinalizeAsset 结拍（幂等）：有最高价出价则成交（落成交价、拍品sold、写买受人），
// 无人出价则流拍回退待上拍。延时任务与finished兜底扫描都会调用。
func (s *bidService) FinalizeAsset(ctx context.Context, auctionAssetID uint) error {
	// 与在途出价共用同一把锁，避免结拍与出价交错
	mutex, err := s.locker.Acquire(ctx, bidLockKey(auctionAssetID), 10*time.Second)
	if err != nil {
		return fmt.Errorf("acquire finalize lock failed: %w", err)
	}
	defer mutex.Release()

	var auctionAsset model.AuctionAsset
	if err := s.db.WithContext(ctx).First(&auctionAsset, auctionAssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 实体已随拍卖会删除，延时任务安全降级为no-op
			return nil
		}
		return err
	}
	// 已结拍（含流拍标记），幂等no-op
	if auctionAsset.FinalPrice.Valid || auctionAsset.FinalizedAt != nil {
		return nil
	}

	var highest model.Bid
	err = s.db.WithContext(ctx).
		Where("auction_asset_id = ? AND is_current_highest = ?", auctionAssetID, true).
		First(&highest).Error
	hasBid := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	finalizedAt := s.now()
	if hasBid {
		if err := tx.Model(&auctionAsset).Updates(map[string]interface{}{
			"final_price":  decimal.NullDecimal{Decimal: highest.Amount, Valid: true},
			"finalized_at": &finalizedAt,
		}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Model(&model.Asset{}).Where("id = ?", auctionAsset.AssetID).Updates(map[string]interface{}{
			"status":    model.AssetStatusSold,
			"winner_id": highest.UserID,
		}).Error; err != nil {
			tx.Rollback()
			return err
		}
	} else {
		// 流拍：落结拍标记，拍品回退待上拍，可进入后续拍卖
		if err := tx.Model(&auctionAsset).Update("finalized_at", &finalizedAt).Error; err != nil {
			tx.Rollback()
			return err
		}
		// 仅当拍品仍在本次上拍状态才回退，迟到重放不得动后续拍卖的结果
		if err := tx.Model(&model.Asset{}).
			Where("id = ? AND status = ?", auctionAsset.AssetID, model.AssetStatusInAuction).
			Update("status", model.AssetStatusPending).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	if err := s.notifier.Publish(ctx, utils.EventAssetFinalized, auctionAssetID); err != nil {
		utils.Logger.Error("发布结拍事件失败", zap.Uint("auction_asset_id", auctionAssetID), zap.Error(err))
	}

	utils.Logger.Info("拍卖拍品已结拍",
		zap.Uint("auction_asset_id", auctionAssetID),
		zap.Bool("sold", hasBid))
	return nil
}
