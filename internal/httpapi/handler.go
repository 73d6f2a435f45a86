package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/middleware"
	"github.com/go-chi/chi/v5"
)

// Handler serves the auth endpoints on top of an engine.
type Handler struct {
	engine *sessionguard.Engine
	logger *slog.Logger
}

// NewHandler returns the HTTP handlers for engine.
func NewHandler(engine *sessionguard.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger.With("component", "httpapi")}
}

type loginRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Device   loginDeviceFields `json:"device"`
}

// loginDeviceFields are the device hints a client may send. The source IP
// and user agent always come from the request itself.
type loginDeviceFields struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"deviceType"`
	Vendor     string `json:"vendor"`
	PushToken  string `json:"pushToken"`
}

type userResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

type deviceSummaryResponse struct {
	DeviceID     string `json:"deviceId"`
	IsNewDevice  bool   `json:"isNewDevice"`
	TotalDevices int    `json:"totalDevices"`
}

type previousDeviceResponse struct {
	DeviceID   string    `json:"deviceId"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	DeviceType string    `json:"deviceType"`
	LastSeen   time.Time `json:"lastSeen"`
}

type deviceLogoutResponse struct {
	PreviousDevice previousDeviceResponse `json:"previousDevice"`
	Message        string                 `json:"message"`
}

type loginResponse struct {
	AccessToken  string                `json:"accessToken"`
	RefreshToken string                `json:"refreshToken"`
	User         userResponse          `json:"user"`
	Device       deviceSummaryResponse `json:"device"`
	DeviceLogout *deviceLogoutResponse `json:"deviceLogout,omitempty"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeErrorBody(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "email and password are required", nil)
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password, sessionguard.DeviceInfo{
		Browser:    req.Device.Browser,
		OS:         req.Device.OS,
		DeviceType: req.Device.DeviceType,
		Vendor:     req.Device.Vendor,
		PushToken:  req.Device.PushToken,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	out := loginResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User: userResponse{
			ID:    res.User.ID,
			Email: res.User.Email,
			Name:  res.User.Name,
		},
		Device: deviceSummaryResponse{
			DeviceID:     res.DeviceInfo.DeviceID,
			IsNewDevice:  res.DeviceInfo.IsNewDevice,
			TotalDevices: res.DeviceInfo.TotalDevices,
		},
	}
	if !res.User.LastLogin.IsZero() {
		last := res.User.LastLogin
		out.User.LastLogin = &last
	}
	if n := res.DeviceLogout; n != nil {
		out.DeviceLogout = &deviceLogoutResponse{
			PreviousDevice: previousDeviceResponse{
				DeviceID:   n.PreviousDevice.DeviceID,
				Browser:    n.PreviousDevice.Browser,
				OS:         n.PreviousDevice.OS,
				DeviceType: n.PreviousDevice.DeviceType,
				LastSeen:   n.PreviousDevice.LastSeen,
			},
			Message: n.Message,
		}
	}
	writeJSON(w, r, http.StatusOK, out)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		writeErrorBody(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "refreshToken is required", nil)
		return
	}

	access, err := h.engine.RefreshAccessToken(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"accessToken": access})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}
	if err := h.engine.Logout(r.Context(), auth.SessionID, auth.UserID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"loggedOut": true})
}

type sessionResponse struct {
	UserID           string `json:"userId"`
	SessionID        string `json:"sessionId"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}

	left, err := h.engine.SessionTimeLeft(r.Context(), auth.SessionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionResponse{
		UserID:           auth.UserID,
		SessionID:        auth.SessionID,
		Email:            auth.Email,
		Name:             auth.Name,
		ExpiresInSeconds: int64(left / time.Second),
	})
}

func (h *Handler) ExtendSession(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}

	if !h.engine.ExtendSession(r.Context(), auth.SessionID) {
		writeError(w, r, h.logger, sessionguard.ErrSessionNotFound)
		return
	}
	left, err := h.engine.SessionTimeLeft(r.Context(), auth.SessionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"extended":         true,
		"expiresInSeconds": int64(left / time.Second),
	})
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}

	devices, err := h.engine.ListDevices(r.Context(), auth.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"devices": devices})
}

func (h *Handler) DeactivateDevice(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}

	changed, err := h.engine.DeactivateDevice(r.Context(), auth.UserID, chi.URLParam(r, "deviceID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"deactivated": changed})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword answers 202 whether or not the account exists.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeErrorBody(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "email is required", nil)
		return
	}

	if err := h.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, map[string]string{
		"message": "if the account exists, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.ConfirmPasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"reset": true})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	auth, ok := middleware.AuthResultFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, sessionguard.ErrTokenInvalid)
		return
	}

	var req changePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.engine.ChangePassword(r.Context(), auth.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"changed": true})
}

// Live always answers 200 while the process serves requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready answers 503 while the session store is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ready(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeErrorBody(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "session store is not ready", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
