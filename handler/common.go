package handler

import (
	"net/http"
	"strconv"

	"github.com/heidiie13/api-auction-system/model"
	"github.com/heidiie13/api-auction-system/service"
	"github.com/heidiie13/api-auction-system/utils"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// PrincipalMiddleware 解析外部身份服务下发的调用方身份
// （网关完成认证后透传X-User-ID/X-User-Role，核心层直接信任）
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
		role := model.UserRole(c.GetHeader("X-User-Role"))
		if role == "" {
			role = model.UserRoleUser
		}
		c.Set(principalKey, service.Principal{
			UserID:        uint(userID),
			Role:          role,
			Authenticated: userID > 0,
		})
		c.Next()
	}
}

// currentPrincipal 取当前请求的调用方身份
func currentPrincipal(c *gin.Context) service.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(service.Principal); ok {
			return p
		}
	}
	return service.Principal{}
}

// respondOK 成功响应
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"code": 200,
		"msg":  "success",
		"data": data,
	})
}

// respondCreated 创建成功响应
func respondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"code": 201,
		"msg":  "success",
		"data": data,
	})
}

// respondError 业务错误响应（按错误分类映射HTTP状态码）
func respondError(c *gin.Context, err error) {
	status := utils.HTTPStatus(err)
	c.JSON(status, gin.H{
		"code": status,
		"msg":  err.Error(),
	})
}

// respondBadRequest 参数绑定错误响应
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code": 400,
		"msg":  err.Error(),
	})
}

// respondForbidden 权限不足响应
func respondForbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"code": 403,
		"msg":  "无权执行该操作",
	})
}

// parseIDParam 解析路径中的数字ID
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondBadRequest(c, utils.NewValidationError("非法的%s", name))
		return 0, false
	}
	return uint(id), true
}
