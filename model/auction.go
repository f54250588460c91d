package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus 拍卖会状态（时间驱动的严格函数，见service层的状态推进）
type AuctionStatus string

const (
	AuctionStatusRegistration AuctionStatus = "registration" // 报名期
	AuctionStatusUpcoming     AuctionStatus = "upcoming"     // 报名截止待开拍
	AuctionStatusActive       AuctionStatus = "active"       // 竞价中
	AuctionStatusFinished     AuctionStatus = "finished"     // 已结束
	AuctionStatusCancelled    AuctionStatus = "cancelled"    // 已取消
)

// TimePeriod 场次（上午/下午）
type TimePeriod string

const (
	TimePeriodMorning   TimePeriod = "morning"
	TimePeriodAfternoon TimePeriod = "afternoon"
)

// PaymentStatus 支付状态（无支付网关，仅状态标记）
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Auction 拍卖会表
type Auction struct {
	ID                  uint          `gorm:"primaryKey;comment:拍卖会ID" json:"id"`
	Name                string        `gorm:"size:255;comment:名称" json:"name"`
	Description         string        `gorm:"type:text;comment:描述" json:"description"`
	Category            string        `gorm:"size:100;index;comment:本场品类" json:"category"`
	TimePeriod          TimePeriod    `gorm:"size:20;comment:场次(morning/afternoon)" json:"time_period"`
	RegistrationStartAt time.Time     `gorm:"comment:报名开始时间" json:"registration_start_at"`
	RegistrationEndAt   time.Time     `gorm:"comment:报名截止时间" json:"registration_end_at"`
	StartAt             time.Time     `gorm:"index;comment:开拍时间" json:"start_at"`
	EndAt               time.Time     `gorm:"index;comment:结束时间" json:"end_at"`
	Status              AuctionStatus `gorm:"size:20;default:registration;index;comment:状态" json:"status"`
	CreatedAt           time.Time     `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (a *Auction) TableName() string {
	return "auctions"
}

// AuctionAsset 拍卖会拍品表：一件拍品绑定一场拍卖会后的竞价单元
// 拍品同一时刻最多属于一场在途拍卖（由拍品status=pending的入场校验保证）
type AuctionAsset struct {
	ID            uint                `gorm:"primaryKey;comment:拍卖拍品ID" json:"id"`
	AuctionID     uint                `gorm:"index;comment:关联拍卖会ID" json:"auction_id"`
	AssetID       uint                `gorm:"index;comment:关联拍品ID" json:"asset_id"`
	StartAt       time.Time           `gorm:"comment:本件竞价开始时间" json:"start_at"`
	EndAt         time.Time           `gorm:"comment:本件竞价结束时间" json:"end_at"`
	StartingPrice decimal.Decimal     `gorm:"type:decimal(12,2);comment:起拍价(=入场时鉴定估值)" json:"starting_price"`
	CurrentPrice  decimal.Decimal     `gorm:"type:decimal(12,2);comment:当前价(单调不减)" json:"current_price"`
	FinalPrice    decimal.NullDecimal `gorm:"type:decimal(12,2);comment:成交价(结拍后一次性写入)" json:"final_price"`
	FinalizedAt   *time.Time          `gorm:"comment:结拍时间(流拍也落标记)" json:"finalized_at"`
	BidCount      uint                `gorm:"default:0;comment:出价次数" json:"bid_count"`
	CreatedAt     time.Time           `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (a *AuctionAsset) TableName() string {
	return "auction_assets"
}

// RegistrationFee 拍卖会报名费表，(user, auction)唯一
type RegistrationFee struct {
	ID            uint            `gorm:"primaryKey;comment:报名费ID" json:"id"`
	UserID        uint            `gorm:"uniqueIndex:uniq_user_auction;comment:用户ID" json:"user_id"`
	AuctionID     uint            `gorm:"uniqueIndex:uniq_user_auction;comment:拍卖会ID" json:"auction_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);comment:金额(固定报名费)" json:"amount"`
	PaymentStatus PaymentStatus   `gorm:"size:20;default:unpaid;comment:支付状态" json:"payment_status"`
	CreatedAt     time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (r *RegistrationFee) TableName() string {
	return "registration_fees"
}

// AssetDeposit 拍品保证金表，(user, auction_asset)唯一
// amount = percentage/100 × starting_price，percentage由品类配置表决定
type AssetDeposit struct {
	ID             uint            `gorm:"primaryKey;comment:保证金ID" json:"id"`
	UserID         uint            `gorm:"uniqueIndex:uniq_user_auction_asset;comment:用户ID" json:"user_id"`
	AuctionAssetID uint            `gorm:"uniqueIndex:uniq_user_auction_asset;comment:拍卖拍品ID" json:"auction_asset_id"`
	Percentage     decimal.Decimal `gorm:"type:decimal(5,2);comment:比例(%)" json:"percentage"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);comment:金额" json:"amount"`
	PaymentStatus  PaymentStatus   `gorm:"size:20;default:unpaid;comment:支付状态" json:"payment_status"`
	CreatedAt      time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (d *AssetDeposit) TableName() string {
	return "asset_deposits"
}

// Bid 出价表：任一时刻每个拍卖拍品至多一条is_current_highest=true
type Bid struct {
	ID               uint            `gorm:"primaryKey;comment:出价ID" json:"id"`
	UserID           uint            `gorm:"index;comment:出价用户ID" json:"user_id"`
	AuctionAssetID   uint            `gorm:"index;comment:拍卖拍品ID" json:"auction_asset_id"`
	Amount           decimal.Decimal `gorm:"type:decimal(12,2);comment:出价金额" json:"amount"`
	IsCurrentHighest bool            `gorm:"default:false;comment:是否当前最高价" json:"is_current_highest"`
	CreatedAt        time.Time       `gorm:"comment:出价时间" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (b *Bid) TableName() string {
	return "bids"
}
