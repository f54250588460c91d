package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAssetValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	_, err := svc.CreateAsset(ctx, CreateAssetReq{Category: "art"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	_, err = svc.CreateAsset(ctx, CreateAssetReq{Name: "青花瓷瓶"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "青花瓷瓶", Category: "art", SellerID: 1})
	require.NoError(t, err)
	assert.Equal(t, model.AssetStatusPending, asset.Status)
	assert.Equal(t, model.AppraisalStatusNotAppraised, asset.AppraiseStatus)
	assert.Equal(t, uint(1), asset.Quantity) // 数量缺省为1
}

func TestSubmitForAppraisalAssignsFirstFreeAppraiser(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)
	require.NoError(t, db.Create(&model.Appraiser{UserID: 12, Status: model.AppraiserStatusActive}).Error)

	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "青花瓷瓶", Category: "art", SellerID: 1})
	require.NoError(t, err)

	asset, err = svc.SubmitForAppraisal(ctx, asset.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppraisalStatusUnderway, asset.AppraiseStatus)
	require.NotNil(t, asset.AppraiserID)
	assert.Equal(t, uint(11), *asset.AppraiserID) // 取user_id最小的空闲鉴定师

	// 被指派的鉴定师置忙
	var appraiser model.Appraiser
	require.NoError(t, db.First(&appraiser, "user_id = ?", 11).Error)
	assert.Equal(t, model.AppraiserStatusInactive, appraiser.Status)

	// 重复送鉴
	_, err = svc.SubmitForAppraisal(ctx, asset.ID)
	assert.Equal(t, utils.ErrKindConflict, utils.KindOf(err))
}

// rendezvousLocker 让两个调用方都越过锁前校验后才放行加锁，
// 用于逼出“校验-加锁”间隙里的并发竞争
type rendezvousLocker struct {
	inner   *utils.LocalLocker
	barrier *sync.WaitGroup
}

func (l *rendezvousLocker) Acquire(ctx context.Context, key string, expire time.Duration) (utils.Unlocker, error) {
	l.barrier.Done()
	l.barrier.Wait()
	return l.inner.Acquire(ctx, key, expire)
}

func TestSubmitForAppraisalConcurrentSingleAssignment(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var barrier sync.WaitGroup
	barrier.Add(2)
	svc := &assetService{
		db:       db,
		locker:   &rendezvousLocker{inner: utils.NewLocalLocker(), barrier: &barrier},
		notifier: utils.NewMemoryNotifier(),
	}

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)
	require.NoError(t, db.Create(&model.Appraiser{UserID: 12, Status: model.AppraiserStatusActive}).Error)

	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "青花瓷瓶", Category: "art", SellerID: 1})
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := svc.SubmitForAppraisal(ctx, asset.ID)
			errs <- err
		}()
	}

	var okCount, conflictCount int
	for i := 0; i < 2; i++ {
		err := <-errs
		if err == nil {
			okCount++
		} else if utils.KindOf(err) == utils.ErrKindConflict {
			conflictCount++
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// 两次并发送鉴只能成功一次，另一次在临界区内复核时被拒
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, conflictCount)

	// 只占用一名鉴定师，另一名仍空闲
	var busy int64
	require.NoError(t, db.Model(&model.Appraiser{}).
		Where("status = ?", model.AppraiserStatusInactive).Count(&busy).Error)
	assert.EqualValues(t, 1, busy)

	var reloaded model.Asset
	require.NoError(t, db.First(&reloaded, asset.ID).Error)
	require.NotNil(t, reloaded.AppraiserID)
	assert.Equal(t, uint(11), *reloaded.AppraiserID)
}

func TestSubmitForAppraisalNoFreeAppraiser(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusInactive}).Error)

	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "青花瓷瓶", Category: "art", SellerID: 1})
	require.NoError(t, err)

	_, err = svc.SubmitForAppraisal(ctx, asset.ID)
	assert.Equal(t, utils.ErrKindExhausted, utils.KindOf(err))

	// 指派失败不得污染拍品状态
	var reloaded model.Asset
	require.NoError(t, db.First(&reloaded, asset.ID).Error)
	assert.Equal(t, model.AppraisalStatusNotAppraised, reloaded.AppraiseStatus)
}

func TestRecordAppraisalSuccessful(t *testing.T) {
	db := newTestDB(t)
	svc, notifier := newTestAssetService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)
	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "老爷车", Category: "vehicles", SellerID: 1})
	require.NoError(t, err)
	_, err = svc.SubmitForAppraisal(ctx, asset.ID)
	require.NoError(t, err)

	value := dec("10000")
	asset, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{
		AssetID:        asset.ID,
		Outcome:        AppraisalOutcomeSuccessful,
		AppraisedValue: &value,
	})
	require.NoError(t, err)
	assert.Equal(t, model.AppraisalStatusSuccessful, asset.AppraiseStatus)
	require.True(t, asset.AppraisedValue.Valid)
	assert.True(t, asset.AppraisedValue.Decimal.Equal(value))
	assert.NotNil(t, asset.AppraisalAt)

	// 鉴定师回到空闲池
	var appraiser model.Appraiser
	require.NoError(t, db.First(&appraiser, "user_id = ?", 11).Error)
	assert.Equal(t, model.AppraiserStatusActive, appraiser.Status)

	// 鉴定完成事件
	events := notifier.Events()
	require.Len(t, events, 1)
	assert.Equal(t, utils.EventAssetAppraised, events[0].Type)
	assert.Equal(t, asset.ID, events[0].EntityID)
}

func TestRecordAppraisalFailedClearsValue(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)
	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "仿品字画", Category: "art", SellerID: 1})
	require.NoError(t, err)
	_, err = svc.SubmitForAppraisal(ctx, asset.ID)
	require.NoError(t, err)

	asset, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeFailed})
	require.NoError(t, err)
	assert.Equal(t, model.AppraisalStatusFailed, asset.AppraiseStatus)
	assert.False(t, asset.AppraisedValue.Valid)
}

func TestRecordAppraisalGuards(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)
	asset, err := svc.CreateAsset(ctx, CreateAssetReq{Name: "老爷车", Category: "vehicles", SellerID: 1})
	require.NoError(t, err)

	// 未送鉴不可录结论
	value := dec("10000")
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeSuccessful, AppraisedValue: &value})
	assert.Equal(t, utils.ErrKindPrecondition, utils.KindOf(err))

	_, err = svc.SubmitForAppraisal(ctx, asset.ID)
	require.NoError(t, err)

	// 通过必须有正数估值
	zero := decimal.Zero
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeSuccessful, AppraisedValue: &zero})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeSuccessful})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	// 未知结论
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: "maybe"})
	assert.Equal(t, utils.ErrKindValidation, utils.KindOf(err))

	// 终态后不可改
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeSuccessful, AppraisedValue: &value})
	require.NoError(t, err)
	_, err = svc.RecordAppraisal(ctx, RecordAppraisalReq{AssetID: asset.ID, Outcome: AppraisalOutcomeFailed})
	assert.Equal(t, utils.ErrKindConflict, utils.KindOf(err))
}

func TestListAssetsFilters(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)
	ctx := context.Background()

	seedAppraisedAsset(t, db, "vehicles", "10000", 1)
	seedAppraisedAsset(t, db, "vehicles", "20000", 2)
	seedAppraisedAsset(t, db, "art", "5000", 1)

	assets, total, err := svc.ListAssets(ctx, ListAssetsReq{Category: "vehicles"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, assets, 2)

	assets, total, err = svc.ListAssets(ctx, ListAssetsReq{SellerID: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, assets, 2)

	_, err = svc.GetAsset(ctx, 9999)
	assert.Equal(t, utils.ErrKindNotFound, utils.KindOf(err))
}

func TestListAppraisers(t *testing.T) {
	db := newTestDB(t)
	svc, _ := newTestAssetService(db)

	require.NoError(t, db.Create(&model.Appraiser{UserID: 12, Status: model.AppraiserStatusInactive}).Error)
	require.NoError(t, db.Create(&model.Appraiser{UserID: 11, Status: model.AppraiserStatusActive}).Error)

	appraisers, err := svc.ListAppraisers(context.Background())
	require.NoError(t, err)
	require.Len(t, appraisers, 2)
	assert.Equal(t, uint(11), appraisers[0].UserID) // user_id升序
}
