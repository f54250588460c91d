package service

import "github.com/heidiie13/api-auction-system/model"

// Principal 调用方身份（由外部身份服务在请求入口下发，核心层直接信任）
type Principal struct {
	UserID        uint
	Role          model.UserRole
	Authenticated bool
}

// Action 权限动作
type Action string

const (
	ActionAssetRead       Action = "asset:read"
	ActionAssetWrite      Action = "asset:write"       // 拍品创建/送鉴（卖家本人）
	ActionAppraisalRecord Action = "appraisal:record"  // 录入鉴定结论
	ActionAuctionManage   Action = "auction:manage"    // 拍卖会创建/删除
	ActionAuctionRead     Action = "auction:read"
	ActionRegister        Action = "auction:register"  // 报名与缴费
	ActionDeposit         Action = "asset:deposit"     // 缴纳保证金
	ActionBid             Action = "bid:place"         // 出价
	ActionContractManage  Action = "contract:manage"   // 合同创建/费用税费挂接
	ActionContractPay     Action = "contract:pay"      // 合同当事方付款
	ActionCatalogManage   Action = "catalog:manage"    // 费用/税费目录维护
)

// Allow 纯函数权限判定：角色 + 动作 + 资源归属（ownerID为0表示无归属约束）。
// 替代框架式permission class组合，便于脱离请求对象单测。
func Allow(p Principal, action Action, ownerID uint) bool {
	if !p.Authenticated {
		// 公开读接口无需登录
		return action == ActionAuctionRead || action == ActionAssetRead
	}

	switch p.Role {
	case model.UserRoleAdmin:
		return true
	case model.UserRoleStaff:
		switch action {
		case ActionAuctionManage, ActionContractManage, ActionCatalogManage,
			ActionAppraisalRecord, ActionAuctionRead, ActionAssetRead:
			return true
		}
		return false
	case model.UserRoleUser:
		switch action {
		case ActionAuctionRead, ActionAssetRead, ActionRegister, ActionDeposit, ActionBid:
			return true
		case ActionAssetWrite, ActionContractPay:
			// 归属约束：只能操作自己名下的资源
			return ownerID == 0 || ownerID == p.UserID
		}
		return false
	}
	return false
}
