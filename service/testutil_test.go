package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heidiie13/api-auction-system/dao"
	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq int64

// newTestDB 每个测试独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb_%d?mode=memory&cache=shared&_loc=auto", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 单连接串行访问，规避sqlite共享缓存的表锁
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, dao.AutoMigrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestAssetService(db *gorm.DB) (*assetService, *utils.MemoryNotifier) {
	notifier := utils.NewMemoryNotifier()
	return &assetService{db: db, locker: utils.NewLocalLocker(), notifier: notifier}, notifier
}

func newTestBidService(db *gorm.DB) (*bidService, *utils.MemoryNotifier) {
	notifier := utils.NewMemoryNotifier()
	return &bidService{
		db:        db,
		locker:    utils.NewLocalLocker(),
		scheduler: utils.NewTimerScheduler(),
		notifier:  notifier,
		now:       time.Now,
	}, notifier
}

func newTestAuctionService(db *gorm.DB, finalizer AssetFinalizer) (*auctionService, *utils.MemoryNotifier) {
	notifier := utils.NewMemoryNotifier()
	return &auctionService{
		db:        db,
		locker:    utils.NewLocalLocker(),
		scheduler: utils.NewTimerScheduler(),
		notifier:  notifier,
		finalizer: finalizer,
		now:       time.Now,
	}, notifier
}

func newTestContractService(db *gorm.DB) (*contractService, *utils.MemoryNotifier) {
	notifier := utils.NewMemoryNotifier()
	return &contractService{db: db, notifier: notifier}, notifier
}

// seedAppraisedAsset 造一件鉴定通过、待上拍的拍品
func seedAppraisedAsset(t *testing.T, db *gorm.DB, category, value string, sellerID uint) *model.Asset {
	t.Helper()
	asset := model.Asset{
		Name:           fmt.Sprintf("%s拍品", category),
		Category:       category,
		Quantity:       1,
		SellerID:       sellerID,
		Status:         model.AssetStatusPending,
		AppraiseStatus: model.AppraisalStatusSuccessful,
		AppraisedValue: decimal.NullDecimal{Decimal: dec(value), Valid: true},
	}
	require.NoError(t, db.Create(&asset).Error)
	return &asset
}

// bidFixture 竞价测试现场：一场拍卖会 + 一件起拍价10000的vehicles拍品
type bidFixture struct {
	auction      model.Auction
	auctionAsset model.AuctionAsset
	asset        model.Asset
}

// seedBidContext 直接落库构造竞价现场（本件竞价窗口为 [now-10min, now+1h)）
func seedBidContext(t *testing.T, db *gorm.DB, status model.AuctionStatus) *bidFixture {
	t.Helper()
	now := time.Now()

	asset := model.Asset{
		Name:           "老爷车",
		Category:       "vehicles",
		Quantity:       1,
		SellerID:       1,
		Status:         model.AssetStatusInAuction,
		AppraiseStatus: model.AppraisalStatusSuccessful,
		AppraisedValue: decimal.NullDecimal{Decimal: dec("10000"), Valid: true},
	}
	require.NoError(t, db.Create(&asset).Error)

	auction := model.Auction{
		Name:                "车辆专场",
		Category:            "vehicles",
		TimePeriod:          model.TimePeriodMorning,
		RegistrationStartAt: now.Add(-48 * time.Hour),
		RegistrationEndAt:   now.Add(-24 * time.Hour),
		StartAt:             now.Add(-10 * time.Minute),
		EndAt:               now.Add(time.Hour),
		Status:              status,
	}
	require.NoError(t, db.Create(&auction).Error)

	auctionAsset := model.AuctionAsset{
		AuctionID:     auction.ID,
		AssetID:       asset.ID,
		StartAt:       auction.StartAt,
		EndAt:         auction.EndAt,
		StartingPrice: dec("10000"),
		CurrentPrice:  dec("10000"),
	}
	require.NoError(t, db.Create(&auctionAsset).Error)

	return &bidFixture{auction: auction, auctionAsset: auctionAsset, asset: asset}
}

// seedPaidEntry 为用户落一条已付报名费和已付保证金（竞价资格齐备）
func seedPaidEntry(t *testing.T, db *gorm.DB, userID uint, f *bidFixture) {
	t.Helper()
	regFee := model.RegistrationFee{
		UserID:        userID,
		AuctionID:     f.auction.ID,
		Amount:        dec("100"),
		PaymentStatus: model.PaymentStatusPaid,
	}
	require.NoError(t, db.Create(&regFee).Error)

	deposit := model.AssetDeposit{
		UserID:         userID,
		AuctionAssetID: f.auctionAsset.ID,
		Percentage:     dec("10"),
		Amount:         dec("1000"),
		PaymentStatus:  model.PaymentStatusPaid,
	}
	require.NoError(t, db.Create(&deposit).Error)
}
