package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserRole 用户角色（由外部身份服务下发）
type UserRole string

const (
	UserRoleUser  UserRole = "user"  // 普通用户
	UserRoleStaff UserRole = "staff" // 运营人员
	UserRoleAdmin UserRole = "admin" // 管理员
)

// User 用户表（身份认证在外部完成，这里只落库核心字段）
type User struct {
	ID        uint      `gorm:"primaryKey;comment:用户ID" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;comment:用户名" json:"username"`
	Email     string    `gorm:"size:255;comment:邮箱" json:"email"`
	Role      UserRole  `gorm:"size:20;default:user;comment:角色" json:"role"`
	CreatedAt time.Time `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt time.Time `gorm:"comment:更新时间" json:"updated_at"`
}

// AppraiserStatus 鉴定师状态
type AppraiserStatus string

const (
	AppraiserStatusActive   AppraiserStatus = "active"   // 空闲可接单
	AppraiserStatusInactive AppraiserStatus = "inactive" // 鉴定中
)

// Appraiser 鉴定师表（单件在途策略：接单即置为inactive，出结果后恢复active）
type Appraiser struct {
	UserID      uint            `gorm:"primaryKey;comment:关联用户ID" json:"user_id"`
	Experiences string          `gorm:"type:text;comment:从业经历" json:"experiences"`
	Status      AppraiserStatus `gorm:"size:50;default:active;index;comment:状态" json:"status"`
	CreatedAt   time.Time       `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"comment:更新时间" json:"updated_at"`
}

// AssetAppraisalStatus 拍品鉴定状态
type AssetAppraisalStatus string

const (
	AppraisalStatusNotAppraised AssetAppraisalStatus = "not_appraised"        // 未鉴定
	AppraisalStatusUnderway     AssetAppraisalStatus = "under_appraisal"      // 鉴定中
	AppraisalStatusSuccessful   AssetAppraisalStatus = "appraisal_successful" // 鉴定通过
	AppraisalStatusFailed       AssetAppraisalStatus = "appraisal_failed"     // 鉴定不通过
)

// Terminal 鉴定是否已出终态结果
func (s AssetAppraisalStatus) Terminal() bool {
	return s == AppraisalStatusSuccessful || s == AppraisalStatusFailed
}

// AssetStatus 拍品生命周期状态
type AssetStatus string

const (
	AssetStatusPending   AssetStatus = "pending"    // 待上拍（可再次进入拍卖）
	AssetStatusInAuction AssetStatus = "in_auction" // 已排期上拍
	AssetStatusSold      AssetStatus = "sold"       // 已成交
)

// Asset 拍品表
type Asset struct {
	ID             uint                 `gorm:"primaryKey;comment:拍品ID" json:"id"`
	Name           string               `gorm:"size:255;comment:名称" json:"name"`
	Description    string               `gorm:"type:text;comment:描述" json:"description"`
	Category       string               `gorm:"size:100;index;comment:品类" json:"category"`
	Size           string               `gorm:"size:100;comment:规格尺寸" json:"size"`
	Warehouse      string               `gorm:"size:255;comment:存放仓库" json:"warehouse"`
	Origin         string               `gorm:"size:255;comment:产地来源" json:"origin"`
	Quantity       uint                 `gorm:"default:1;comment:数量" json:"quantity"`
	Status         AssetStatus          `gorm:"size:50;default:pending;index;comment:生命周期状态" json:"status"`
	SellerID       uint                 `gorm:"index;comment:卖家用户ID" json:"seller_id"`
	WinnerID       *uint                `gorm:"comment:买受人用户ID（成交后写入）" json:"winner_id"`
	AppraiserID    *uint                `gorm:"comment:当前鉴定师用户ID" json:"appraiser_id"`
	AppraiseStatus AssetAppraisalStatus `gorm:"size:50;default:not_appraised;index;comment:鉴定状态" json:"appraise_status"`
	AppraisedValue decimal.NullDecimal  `gorm:"type:decimal(12,2);comment:鉴定估值" json:"appraised_value"`
	AppraisalAt    *time.Time           `gorm:"comment:鉴定完成时间" json:"appraisal_at"`
	CreatedAt      time.Time            `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt      time.Time            `gorm:"comment:更新时间" json:"updated_at"`
}

// TableName 表名
func (a *Asset) TableName() string {
	return "assets"
}
