package handlers

import (
	"errors"
	"net/http"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/config"
	"resqnet-web/pkg/guard"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/session"
	"resqnet-web/pkg/utils"
)

// AuthHandler 认证处理器：登录、注册、登出与会话状态
type AuthHandler struct {
	config *config.Config
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{config: cfg}
}

type sessionView struct {
	session.State
	Landing string `json:"landing,omitempty"`
}

func viewOf(st session.State) sessionView {
	v := sessionView{State: st}
	if st.Authenticated {
		v.Landing = guard.LandingPath(st.Role())
	}
	return v
}

// Welcome 首页
func (h *AuthHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"app":     "ResQNet",
		"tagline": "Coordinating disaster relief between reporters and responders",
		"session": viewOf(page.Session.State()),
	})
}

// Session 当前会话状态
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, viewOf(page.Session.State()))
}

// LoginPage describes the login form. A logged-in user is sent to their landing page.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	if st := page.Session.State(); st.Authenticated {
		utils.WriteRedirect(w, r, guard.LandingPath(st.Role()))
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"form":   "login",
		"fields": []string{"email", "password"},
		"action": guard.LoginPath,
	})
}

// Login 登录：调用 API 取得凭证，建立会话后按角色跳转
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}

	var req models.UserLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	resp, err := page.API.Login(r.Context(), req)
	if err != nil {
		// 401 here means bad credentials, not an expired session
		if errors.Is(err, client.ErrUnauthenticated) {
			utils.WriteUnauthorizedResponse(w, "Invalid email or password")
			return
		}
		writeAPIError(w, r, page, err)
		return
	}

	id, err := page.Session.Login(r.Context(), resp.Token)
	if err != nil {
		if session.IsCredentialError(err) {
			obs.Logger().Error().Err(err).Msg("api issued an unusable credential")
			utils.WriteErrorResponseWithCode(w, http.StatusBadGateway, utils.CodeUpstream,
				"Login failed, please try again", "")
			return
		}
		obs.Logger().Error().Err(err).Msg("failed to persist session")
		utils.WriteInternalServerErrorResponse(w, "Could not start a session")
		return
	}

	http.Redirect(w, r, guard.LandingPath(id.Role), http.StatusSeeOther)
}

// RegisterPage describes the registration form.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"form":   "register",
		"fields": []string{"name", "email", "password", "role"},
		"roles":  []models.Role{models.RoleReporter, models.RoleResponder},
		"action": "/register",
	})
}

// Register 注册。成功后前往登录页，不自动登录
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}

	var req models.UserRegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := page.API.Register(r.Context(), req)
	if err != nil {
		writeAPIError(w, r, page, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{
		"user": user,
		"next": guard.LoginPath,
	})
}

// Logout 登出并跳转登录页
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	page, ok := currentPage(w, r)
	if !ok {
		return
	}
	if err := page.Session.Logout(r.Context()); err != nil {
		obs.Logger().Warn().Err(err).Msg("logout cleanup failed")
	}
	if !finishReload(w, r, page) {
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
	}
}
