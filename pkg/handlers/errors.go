package handlers

import (
	"context"
	"errors"
	"net/http"

	"resqnet-web/pkg/client"
	"resqnet-web/pkg/middleware"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/obs"
	"resqnet-web/pkg/utils"
)

// currentPage 获取当前请求的页面；缺失说明路由未挂会话中间件
func currentPage(w http.ResponseWriter, r *http.Request) (*middleware.Page, bool) {
	page, ok := middleware.PageFromContext(r.Context())
	if !ok {
		obs.Logger().Error().Str("path", r.URL.Path).Msg("route served without session middleware")
		utils.WriteInternalServerErrorResponse(w, "Session unavailable")
		return nil, false
	}
	return page, true
}

// finishReload turns a navigation requested by the session manager into a
// redirect. It reports whether a response was written.
func finishReload(w http.ResponseWriter, r *http.Request, page *middleware.Page) bool {
	target := page.ReloadTarget()
	if target == "" {
		return false
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
	return true
}

// writeAPIError maps a client error onto the response envelope. A rejected
// credential ends the session and sends the browser to the login page.
func writeAPIError(w http.ResponseWriter, r *http.Request, page *middleware.Page, err error) {
	log := obs.Logger()

	switch {
	case errors.Is(err, client.ErrUnauthenticated):
		log.Info().Str("path", r.URL.Path).Msg("api rejected credential, logging out")
		if lerr := page.Session.Logout(r.Context()); lerr != nil {
			log.Warn().Err(lerr).Msg("logout cleanup failed")
		}
		if !finishReload(w, r, page) {
			utils.WriteUnauthorizedResponse(w, client.Message(err))
		}
	case errors.Is(err, client.ErrValidation):
		writeValidation(w, err)
	case errors.Is(err, client.ErrForbidden):
		utils.WriteForbiddenResponse(w, client.Message(err))
	case errors.Is(err, client.ErrNotFound):
		utils.WriteNotFoundResponse(w, client.Message(err))
	case errors.Is(err, context.Canceled):
		// 客户端已断开
		log.Debug().Str("path", r.URL.Path).Msg("request cancelled by client")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("api call failed")
		utils.WriteErrorResponseWithCode(w, http.StatusBadGateway, utils.CodeUpstream, client.Message(err), "")
	}
}

// writeValidation prefers field errors, local or from the API's 400 body.
func writeValidation(w http.ResponseWriter, err error) {
	var fields models.ValidationErrors
	if errors.As(err, &fields) {
		utils.WriteValidationErrorResponse(w, fields)
		return
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		utils.WriteValidationErrorResponse(w, apiErr.Fields)
		return
	}
	utils.WriteValidationErrorResponse(w, errors.New(client.Message(err)))
}

// decodeBody parses a JSON body, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := utils.ParseJSONBody(r, v); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
