package service

import (
	"context"
	"testing"
	"time"

	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateAuctionDates(t *testing.T) {
	regDate := time.Date(2027, 1, 10, 0, 0, 0, 0, time.Local)

	tests := []struct {
		name       string
		period     model.TimePeriod
		assetCount int
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:       "上午场3件",
			period:     model.TimePeriodMorning,
			assetCount: 3,
			wantStart:  time.Date(2027, 1, 26, 9, 0, 0, 0, time.Local),
			wantEnd:    time.Date(2027, 1, 26, 11, 50, 0, 0, time.Local),
		},
		{
			name:       "上午场1件",
			period:     model.TimePeriodMorning,
			assetCount: 1,
			wantStart:  time.Date(2027, 1, 26, 9, 0, 0, 0, time.Local),
			wantEnd:    time.Date(2027, 1, 26, 9, 50, 0, 0, time.Local),
		},
		{
			name:       "下午场2件",
			period:     model.TimePeriodAfternoon,
			assetCount: 2,
			wantStart:  time.Date(2027, 1, 26, 14, 0, 0, 0, time.Local),
			wantEnd:    time.Date(2027, 1, 26, 15, 50, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			regStart, regEnd, startAt, endAt := calculateAuctionDates(regDate, tt.period, tt.assetCount)
			assert.Equal(t, time.Date(2027, 1, 10, 9, 0, 0, 0, time.Local), regStart)
			assert.Equal(t, time.Date(2027, 1, 23, 17, 0, 0, 0, time.Local), regEnd)
			assert.Equal(t, tt.wantStart, startAt)
			assert.Equal(t, tt.wantEnd, endAt)
		})
	}
}

func TestCreateAuctionSelectsEligibleAssets(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, notifier := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	// 4件合格vehicles（超过单场上限3），外加品类不符与鉴定不过的干扰项
	values := map[uint]string{}
	for _, v := range []string{"10000", "20000", "30000", "40000"} {
		a := seedAppraisedAsset(t, db, "vehicles", v, 1)
		values[a.ID] = v
	}
	seedAppraisedAsset(t, db, "jewelry", "8000", 1)
	require.NoError(t, db.Create(&model.Asset{
		Name: "事故车", Category: "vehicles", Quantity: 1, SellerID: 1,
		Status: model.AssetStatusPending, AppraiseStatus: model.AppraisalStatusFailed,
	}).Error)

	auction, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name:                  "车辆专场",
		Category:              "vehicles",
		TimePeriod:            model.TimePeriodMorning,
		RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)
	assert.Equal(t, model.AuctionStatusRegistration, auction.Status)
	assert.Equal(t, time.Date(2027, 1, 26, 9, 0, 0, 0, time.Local), auction.StartAt)
	assert.Equal(t, time.Date(2027, 1, 26, 11, 50, 0, 0, time.Local), auction.EndAt)

	auctionAssets, err := svc.ListAuctionAssets(ctx, auction.ID)
	require.NoError(t, err)
	require.Len(t, auctionAssets, 3)

	for i, aa := range auctionAssets {
		// 起拍价=当前价=入场时鉴定估值
		want, ok := values[aa.AssetID]
		require.True(t, ok, "选中了不合格拍品 %d", aa.AssetID)
		assert.True(t, aa.StartingPrice.Equal(dec(want)))
		assert.True(t, aa.CurrentPrice.Equal(dec(want)))

		// 逐件绑定连续时段
		assert.Equal(t, morningSlotStart(i), aa.StartAt)

		var asset model.Asset
		require.NoError(t, db.First(&asset, aa.AssetID).Error)
		assert.Equal(t, model.AssetStatusInAuction, asset.Status)
	}

	// 未选中的1件vehicles仍然待上拍
	var pending int64
	require.NoError(t, db.Model(&model.Asset{}).
		Where("category = ? AND status = ?", "vehicles", model.AssetStatusPending).
		Count(&pending).Error)
	assert.EqualValues(t, 1, pending)

	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, utils.EventAuctionCreated, events[0].Type)
}

func morningSlotStart(i int) time.Time {
	hours := []int{9, 10, 11}
	return time.Date(2027, 1, 26, hours[i], 0, 0, 0, time.Local)
}

func TestCreateAuctionValidationAndEligibility(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	_, err := svc.CreateAuction(ctx, CreateAuctionReq{Category: "vehicles", TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	_, err = svc.CreateAuction(ctx, CreateAuctionReq{Name: "x", Category: "vehicles", TimePeriod: "evening", RegistrationStartDate: "2027-01-10"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	_, err = svc.CreateAuction(ctx, CreateAuctionReq{Name: "x", Category: "vehicles", TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "01/10/2027"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	// 品类下没有合格拍品
	_, err = svc.CreateAuction(ctx, CreateAuctionReq{Name: "x", Category: "vehicles", TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10"})
	assert.Equal(t, utils.ErrKindExhausted, utils.KindOf(err))
}

func TestCreateAuctionSlotConflict(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	seedAppraisedAsset(t, db, "jewelry", "8000", 2)
	seedAppraisedAsset(t, db, "art", "5000", 3)

	_, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	// 同一开拍日同场次：时段重叠
	_, err = svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "珠宝专场", Category: "jewelry",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	assert.Equal(t, utils.ErrKindConflict, utils.KindOf(err))

	// 同一开拍日不同场次：不重叠，可排
	_, err = svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "珠宝专场", Category: "jewelry",
		TimePeriod: model.TimePeriodAfternoon, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	// 另一天：不重叠
	_, err = svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "书画专场", Category: "art",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-11",
	})
	require.NoError(t, err)
}

func TestDeleteAuctionRevertsAssets(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	auction, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	var auctionAsset model.AuctionAsset
	require.NoError(t, db.First(&auctionAsset, "auction_id = ?", auction.ID).Error)
	require.NoError(t, db.Create(&model.RegistrationFee{
		UserID: 2, AuctionID: auction.ID, Amount: dec("100"), PaymentStatus: model.PaymentStatusPaid,
	}).Error)

	require.NoError(t, svc.DeleteAuction(ctx, auction.ID))

	// 拍品回退待上拍
	var asset model.Asset
	require.NoError(t, db.First(&asset, auctionAsset.AssetID).Error)
	assert.Equal(t, model.AssetStatusPending, asset.Status)

	// 成员记录级联清理
	var count int64
	db.Model(&model.AuctionAsset{}).Where("auction_id = ?", auction.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&model.RegistrationFee{}).Where("auction_id = ?", auction.ID).Count(&count)
	assert.Zero(t, count)

	_, err = svc.GetAuction(ctx, auction.ID)
	assert.Equal(t, utils.ErrKindNotFound, utils.KindOf(err))
}

func TestDeleteAuctionAfterStartRejected(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	auction, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	svc.now = func() time.Time { return auction.StartAt.Add(time.Minute) }
	err = svc.DeleteAuction(ctx, auction.ID)
	assert.Equal(t, utils.ErrKindConflict, utils.KindOf(err))
}

func TestUpdateAuctionStatusProgression(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, notifier := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	auction, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	statusAt := func(now time.Time) model.AuctionStatus {
		svc.now = func() time.Time { return now }
		require.NoError(t, svc.UpdateAuctionStatus(ctx, auction.ID))
		got, err := svc.GetAuction(ctx, auction.ID)
		require.NoError(t, err)
		return got.Status
	}

	// 报名期内推进为no-op
	assert.Equal(t, model.AuctionStatusRegistration, statusAt(auction.RegistrationEndAt.Add(-time.Hour)))
	// 报名截止 -> 待开拍
	assert.Equal(t, model.AuctionStatusUpcoming, statusAt(auction.RegistrationEndAt.Add(time.Minute)))
	// 开拍 -> 竞价中
	assert.Equal(t, model.AuctionStatusActive, statusAt(auction.StartAt.Add(time.Minute)))
	// 结束 -> finished，且兜底结拍无人出价的拍品（流拍回退）
	assert.Equal(t, model.AuctionStatusFinished, statusAt(auction.EndAt.Add(time.Minute)))

	var asset model.Asset
	require.NoError(t, db.First(&asset, "category = ?", "vehicles").Error)
	assert.Equal(t, model.AssetStatusPending, asset.Status)

	// 每次实际变更各发一条状态事件（创建事件1 + 状态变更3 + 结拍1）
	var statusEvents int
	for _, e := range notifier.Events() {
		if e.Type == utils.EventAuctionStatusChanged {
			statusEvents++
		}
	}
	assert.Equal(t, 3, statusEvents)
}

func TestUpdateAuctionStatusCancelledIsNoop(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	auction, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(auction).Update("status", model.AuctionStatusCancelled).Error)

	svc.now = func() time.Time { return auction.EndAt.Add(time.Hour) }
	require.NoError(t, svc.UpdateAuctionStatus(ctx, auction.ID))

	got, err := svc.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuctionStatusCancelled, got.Status)
}

func TestRestoreSchedulesReArmsPendingAuctions(t *testing.T) {
	db := newTestDB(t)
	bidSvc, _ := newTestBidService(db)
	svc, _ := newTestAuctionService(db, bidSvc)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	seedAppraisedAsset(t, db, "jewelry", "8000", 2)

	_, err := svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "车辆专场", Category: "vehicles",
		TimePeriod: model.TimePeriodMorning, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)
	_, err = svc.CreateAuction(ctx, CreateAuctionReq{
		Name: "珠宝专场", Category: "jewelry",
		TimePeriod: model.TimePeriodAfternoon, RegistrationStartDate: "2027-01-10",
	})
	require.NoError(t, err)

	// 模拟重启：换一个空调度器再恢复
	fresh := utils.NewTimerScheduler()
	svc.scheduler = fresh
	require.NoError(t, svc.RestoreSchedules(ctx))
	assert.Equal(t, 6, fresh.Pending()) // 每场3个流转任务
}
