package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/heidiie13/api-auction-system/config"
	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 排期日历互斥锁key：档期冲突检查+落库必须原子完成，防止两场并发创建同时通过检查
const auctionCalendarLockKey = "lock:auction_calendar"

// AssetFinalizer 结拍器：拍卖会finished兜底扫描时逐件结拍（由竞价服务实现）
type AssetFinalizer interface {
	FinalizeAsset(ctx context.Context, auctionAssetID uint) error
}

// AuctionService 拍卖会排期服务接口
type AuctionService interface {
	CreateAuction(ctx context.Context, req CreateAuctionReq) (*model.Auction, error)
	GetAuction(ctx context.Context, id uint) (*model.Auction, error)
	ListAuctions(ctx context.Context, req ListAuctionsReq) ([]model.Auction, int64, error)
	ListAuctionAssets(ctx context.Context, auctionID uint) ([]model.AuctionAsset, error)
	DeleteAuction(ctx context.Context, id uint) error
	UpdateAuctionStatus(ctx context.Context, id uint) error
	RestoreSchedules(ctx context.Context) error
}

// auctionService 拍卖会排期服务实现
type auctionService struct {
	db        *gorm.DB
	locker    utils.Locker
	scheduler utils.TaskScheduler
	notifier  utils.Notifier
	finalizer AssetFinalizer
	now       func() time.Time
}

// NewAuctionService 创建拍卖会排期服务
func NewAuctionService(db *gorm.DB, locker utils.Locker, scheduler utils.TaskScheduler, notifier utils.Notifier, finalizer AssetFinalizer) AuctionService {
	return &auctionService{
		db:        db,
		locker:    locker,
		scheduler: scheduler,
		notifier:  notifier,
		finalizer: finalizer,
		now:       time.Now,
	}
}

// -------------- 请求结构体 --------------

// CreateAuctionReq 创建拍卖会请求
type CreateAuctionReq struct {
	Name                  string           `json:"name"`
	Description           string           `json:"description"`
	Category              string           `json:"category"`
	TimePeriod            model.TimePeriod `json:"time_period"`             // morning / afternoon
	RegistrationStartDate string           `json:"registration_start_date"` // 格式 2006-01-02
}

// ListAuctionsReq 查询拍卖会请求
type ListAuctionsReq struct {
	Status   string `json:"status"`
	Category string `json:"category"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// -------------- 排期计算 --------------

// assetSlotsFor 按场次取竞价时段表
func assetSlotsFor(period model.TimePeriod) []config.AssetSlot {
	if period == model.TimePeriodMorning {
		return config.MorningAssetSlots
	}
	return config.AfternoonAssetSlots
}

// calculateAuctionDates 推导四个时间点（确定性计算）：
// 报名开始 = 指定日期09:00；报名截止 = 开始+13天且强制17:00；
// 开拍日 = 报名截止日+3天；拍卖窗口 = [首个时段起点, 末个时段终点)
func calculateAuctionDates(registrationStartDate time.Time, period model.TimePeriod, assetCount int) (regStart, regEnd, startAt, endAt time.Time) {
	loc := registrationStartDate.Location()
	y, m, d := registrationStartDate.Date()

	regStart = time.Date(y, m, d, config.RegistrationStartHour, 0, 0, 0, loc)
	regEnd = regStart.AddDate(0, 0, config.RegistrationPeriodDays-1)
	regEnd = time.Date(regEnd.Year(), regEnd.Month(), regEnd.Day(), config.RegistrationEndHour, 0, 0, 0, loc)

	auctionDay := regEnd.AddDate(0, 0, config.AuctionStartDelayDays)
	slots := assetSlotsFor(period)[:assetCount]

	first, last := slots[0], slots[len(slots)-1]
	startAt = time.Date(auctionDay.Year(), auctionDay.Month(), auctionDay.Day(), first.StartHour, first.StartMinute, 0, 0, loc)
	endAt = time.Date(auctionDay.Year(), auctionDay.Month(), auctionDay.Day(), last.EndHour, last.EndMinute, 0, 0, loc)
	return
}

// -------------- 核心方法 --------------

// CreateAuction 创建拍卖会：选品、排期、档期冲突检查、随机上拍、注册状态流转任务
func (s *auctionService) CreateAuction(ctx context.Context, req CreateAuctionReq) (*model.Auction, error) {
	if req.Name == "" {
		return nil, utils.NewValidationError("拍卖会名称不能为空")
	}
	if req.TimePeriod != model.TimePeriodMorning && req.TimePeriod != model.TimePeriodAfternoon {
		return nil, utils.NewValidationError("场次必须为morning或afternoon")
	}
	regDate, err := time.ParseInLocation("2006-01-02", req.RegistrationStartDate, time.Local)
	if err != nil {
		return nil, utils.NewValidationError("报名开始日期格式错误，应为YYYY-MM-DD")
	}

	// 1. 选品：品类匹配 + 鉴定通过 + 待上拍
	var eligible []model.Asset
	if err := s.db.WithContext(ctx).
		Where("category = ? AND appraise_status = ? AND status = ?",
			req.Category, model.AppraisalStatusSuccessful, model.AssetStatusPending).
		Find(&eligible).Error; err != nil {
		return nil, err
	}

	assetCount := len(eligible)
	if assetCount < 1 {
		return nil, utils.NewExhaustedError("品类%s下没有符合条件的拍品", req.Category)
	}
	if assetCount > config.MaxAssetsPerAuction {
		assetCount = config.MaxAssetsPerAuction
	}

	// 2. 确定性排期
	regStart, regEnd, startAt, endAt := calculateAuctionDates(regDate, req.TimePeriod, assetCount)

	// 3. 排期日历互斥：档期冲突检查与落库在同一临界区+事务内
	mutex, err := s.locker.Acquire(ctx, auctionCalendarLockKey, 10*time.Second)
	if err != nil {
		utils.Logger.Error("获取排期日历锁失败", zap.Error(err))
		return nil, errors.New("排期处理繁忙，请稍后再试")
	}
	defer mutex.Release()

	auction := model.Auction{
		Name:                req.Name,
		Description:         req.Description,
		Category:            req.Category,
		TimePeriod:          req.TimePeriod,
		RegistrationStartAt: regStart,
		RegistrationEndAt:   regEnd,
		StartAt:             startAt,
		EndAt:               endAt,
		Status:              model.AuctionStatusRegistration,
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// 半开区间重叠判定：existing.start < new.end AND existing.end > new.start
	var overlapping int64
	if err := tx.Model(&model.Auction{}).
		Where("status <> ?", model.AuctionStatusCancelled).
		Where("start_at < ? AND end_at > ?", endAt, startAt).
		Count(&overlapping).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if overlapping > 0 {
		tx.Rollback()
		return nil, utils.NewConflictError("该时段已有其他拍卖会排期")
	}

	if err := tx.Create(&auction).Error; err != nil {
		tx.Rollback()
		utils.Logger.Error("创建拍卖会失败", zap.Error(err))
		return nil, err
	}

	// 4. 随机选品上拍（不放回抽样），逐件绑定竞价时段
	rand.Shuffle(len(eligible), func(i, j int) { eligible[i], eligible[j] = eligible[j], eligible[i] })
	selected := eligible[:assetCount]
	slots := assetSlotsFor(req.TimePeriod)[:assetCount]

	for i, asset := range selected {
		slot := slots[i]
		slotStart := time.Date(startAt.Year(), startAt.Month(), startAt.Day(), slot.StartHour, slot.StartMinute, 0, 0, startAt.Location())
		slotEnd := time.Date(startAt.Year(), startAt.Month(), startAt.Day(), slot.EndHour, slot.EndMinute, 0, 0, startAt.Location())

		auctionAsset := model.AuctionAsset{
			AuctionID:     auction.ID,
			AssetID:       asset.ID,
			StartAt:       slotStart,
			EndAt:         slotEnd,
			StartingPrice: asset.AppraisedValue.Decimal,
			CurrentPrice:  asset.AppraisedValue.Decimal,
		}
		if err := tx.Create(&auctionAsset).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Model(&model.Asset{}).Where("id = ?", asset.ID).
			Update("status", model.AssetStatusInAuction).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// 5. 注册三个状态流转延时任务
	s.scheduleTransitions(&auction)

	if err := s.notifier.Publish(ctx, utils.EventAuctionCreated, auction.ID); err != nil {
		utils.Logger.Error("发布拍卖会创建事件失败", zap.Uint("auction_id", auction.ID), zap.Error(err))
	}

	return &auction, nil
}

// scheduleTransitions 注册报名截止/开拍/结束三个状态流转任务
func (s *auctionService) scheduleTransitions(auction *model.Auction) {
	id := auction.ID
	handler := func() {
		// 延时任务处理：实体可能已被删除或状态已推进，UpdateAuctionStatus自身幂等
		if err := s.UpdateAuctionStatus(context.Background(), id); err != nil && utils.KindOf(err) != utils.ErrKindNotFound {
			utils.Logger.Error("拍卖会状态流转失败", zap.Uint("auction_id", id), zap.Error(err))
		}
	}
	s.scheduler.Schedule(auction.RegistrationEndAt, fmt.Sprintf("auction:%d:transition:registration_end", id), handler)
	s.scheduler.Schedule(auction.StartAt, fmt.Sprintf("auction:%d:transition:start", id), handler)
	s.scheduler.Schedule(auction.EndAt, fmt.Sprintf("auction:%d:transition:end", id), handler)
}

// GetAuction 查询拍卖会
func (s *auctionService) GetAuction(ctx context.Context, id uint) (*model.Auction, error) {
	var auction model.Auction
	if err := s.db.WithContext(ctx).First(&auction, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("拍卖会不存在")
		}
		return nil, err
	}
	return &auction, nil
}

// ListAuctions 分页查询拍卖会
func (s *auctionService) ListAuctions(ctx context.Context, req ListAuctionsReq) ([]model.Auction, int64, error) {
	var auctions []model.Auction
	var total int64

	query := s.db.WithContext(ctx).Model(&model.Auction{})
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.Category != "" {
		query = query.Where("category = ?", req.Category)
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
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
		Order("registration_start_at DESC").Find(&auctions).Error; err != nil {
		return nil, 0, err
	}
	return auctions, total, nil
}

// ListAuctionAssets 查询拍卖会内的拍品
func (s *auctionService) ListAuctionAssets(ctx context.Context, auctionID uint) ([]model.AuctionAsset, error) {
	if _, err := s.GetAuction(ctx, auctionID); err != nil {
		return nil, err
	}
	var assets []model.AuctionAsset
	if err := s.db.WithContext(ctx).Where("auction_id = ?", auctionID).
		Order("start_at").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// DeleteAuction 删除拍卖会（仅限开拍前）：成员拍品回退待上拍并级联清理
func (s *auctionService) DeleteAuction(ctx context.Context, id uint) error {
	auction, err := s.GetAuction(ctx, id)
	if err != nil {
		return err
	}

	if !s.now().Before(auction.StartAt) {
		return utils.NewConflictError("已开拍的拍卖会不可删除")
	}

	var auctionAssets []model.AuctionAsset
	if err := s.db.WithContext(ctx).Where("auction_id = ?", id).Find(&auctionAssets).Error; err != nil {
		return err
	}

	tx := s.db.WithContext(ctx).Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, aa := range auctionAssets {
		// 成员拍品回退待上拍，可再次进入后续拍卖
		if err := tx.Model(&model.Asset{}).Where("id = ?", aa.AssetID).
			Update("status", model.AssetStatusPending).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("auction_asset_id = ?", aa.ID).Delete(&model.Bid{}).Error; err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Where("auction_asset_id = ?", aa.ID).Delete(&model.AssetDeposit{}).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Where("auction_id = ?", id).Delete(&model.AuctionAsset{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Where("auction_id = ?", id).Delete(&model.RegistrationFee{}).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Delete(&model.Auction{}, id).Error; err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	// 清理该拍卖会的全部延时任务
	s.scheduler.CancelPrefix(fmt.Sprintf("auction:%d:", id))
	for _, aa := range auctionAssets {
		s.scheduler.Cancel(fmt.Sprintf("auction_asset:%d:finalize", aa.ID))
	}

	utils.Logger.Info("拍卖会已删除", zap.Uint("auction_id", id), zap.Int("reverted_assets", len(auctionAssets)))
	return nil
}

// UpdateAuctionStatus 按当前时间推进拍卖会状态（幂等；finished时兜底结拍全部成员拍品）
func (s *auctionService) UpdateAuctionStatus(ctx context.Context, id uint) error {
	auction, err := s.GetAuction(ctx, id)
	if err != nil {
		return err
	}
	if auction.Status == model.AuctionStatusCancelled {
		return nil
	}

	now := s.now()
	var desired model.AuctionStatus
	switch {
	case now.Before(auction.RegistrationEndAt):
		desired = model.AuctionStatusRegistration
	case now.Before(auction.StartAt):
		desired = model.AuctionStatusUpcoming
	case now.Before(auction.EndAt):
		desired = model.AuctionStatusActive
	default:
		desired = model.AuctionStatusFinished
	}

	if desired != auction.Status {
		if err := s.db.WithContext(ctx).Model(auction).Update("status", desired).Error; err != nil {
			return err
		}
		if err := s.notifier.Publish(ctx, utils.EventAuctionStatusChanged, auction.ID); err != nil {
			utils.Logger.Error("发布状态变更事件失败", zap.Uint("auction_id", auction.ID), zap.Error(err))
		}
		utils.Logger.Info("拍卖会状态已推进",
			zap.Uint("auction_id", auction.ID),
			zap.String("from", string(auction.Status)),
			zap.String("to", string(desired)))
	}

	// finished兜底：逐件结拍（FinalizeAsset自身幂等，已结拍为no-op）
	if desired == model.AuctionStatusFinished {
		var auctionAssets []model.AuctionAsset
		if err := s.db.WithContext(ctx).Where("auction_id = ?", id).Find(&auctionAssets).Error; err != nil {
			return err
		}
		for _, aa := range auctionAssets {
			if err := s.finalizer.FinalizeAsset(ctx, aa.ID); err != nil {
				utils.Logger.Error("兜底结拍失败", zap.Uint("auction_asset_id", aa.ID), zap.Error(err))
			}
		}
	}

	return nil
}

// RestoreSchedules 服务重启后恢复未结束拍卖会的状态流转任务
func (s *auctionService) RestoreSchedules(ctx context.Context) error {
	var auctions []model.Auction
	if err := s.db.WithContext(ctx).
		Where("status NOT IN ?", []model.AuctionStatus{model.AuctionStatusFinished, model.AuctionStatusCancelled}).
		Find(&auctions).Error; err != nil {
		return err
	}
	for i := range auctions {
		s.scheduleTransitions(&auctions[i])
	}
	utils.Logger.Info("已恢复拍卖会排期任务", zap.Int("count", len(auctions)))
	return nil
}
