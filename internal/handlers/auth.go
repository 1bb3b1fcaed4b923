package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/apperr"
	"github.com/caresdev/plataforma_cares/internal/hash"
	"github.com/caresdev/plataforma_cares/internal/logging"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
	"github.com/caresdev/plataforma_cares/internal/service/token"
)

const resetTokenTTL = time.Hour

type AuthHandler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *mykafka.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Name     string `json:"nome"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Photo    string `json:"fotografia"`
		Address  string `json:"morada"`
	}

	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}
	if req.Email == "" || req.Name == "" {
		return apperr.Validation("nome e email são obrigatórios")
	}
	if len(req.Password) < 6 || len(req.Password) > 100 {
		return apperr.Validation("a password deve ter entre 6 e 100 caracteres")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return err
	}

	var existing models.User
	result := h.DB.Where("email = ?", req.Email).First(&existing)
	if result.Error == nil {
		return apperr.Conflict("já existe um utilizador com este email")
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: pwHash,
		Photo:        req.Photo,
		Address:      req.Address,
		Role:         models.RoleUser,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("já existe um utilizador com este email")
		}
		return err
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return apperr.Unauthorized("credenciais inválidas")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.Unauthorized("credenciais inválidas")
	}

	accessToken, err := token.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		return err
	}
	refreshToken, err := token.SignRefreshToken(user.ID, user.Role, h.RefreshSecret)
	if err != nil {
		return err
	}
	if err := token.SaveRefreshToken(h.DB, refreshToken, user.ID, user.Role); err != nil {
		return err
	}

	c.SetCookie(token.CreateCookie("accessToken", accessToken, "/", time.Now().Add(token.AccessTTL)))
	c.SetCookie(token.CreateCookie("refreshToken", refreshToken, "/", time.Now().Add(token.RefreshTTL)))

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "user_logged_in",
		"userID": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"is_admin":      user.Role == models.RoleAdmin,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	refreshCookie, err := c.Cookie("refreshToken")
	if err != nil {
		return apperr.Validation("refresh token em falta")
	}

	result := h.DB.Model(&models.RefreshToken{}).
		Where("token = ?", refreshCookie.Value).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(token.CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(token.CreateCookie("refreshToken", "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{"message": "sessão terminada"})
}

// RecoverPassword issues a one-time reset token. The response does not
// reveal whether the e-mail exists.
func (h *AuthHandler) RecoverPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil || req.Email == "" {
		return apperr.Validation("email é obrigatório")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(http.StatusOK, echo.Map{"message": "se o email existir, será enviado um link de recuperação"})
		}
		return err
	}

	reset := models.PasswordReset{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(resetTokenTTL).Unix(),
	}
	if err := h.DB.Create(&reset).Error; err != nil {
		return err
	}

	// E-mail delivery is out of scope; the token is handed to the mailer
	// through the event stream.
	logging.FromContext(c.Request().Context()).Info("password reset issued", "userID", user.ID)
	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":   "password_reset_requested",
		"userID": user.ID,
		"token":  reset.Token,
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "se o email existir, será enviado um link de recuperação"})
}

func (h *AuthHandler) SetNewPassword(c echo.Context) error {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"novaSenha"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}
	if len(req.NewPassword) < 6 || len(req.NewPassword) > 100 {
		return apperr.Validation("a nova senha deve ter entre 6 e 100 caracteres")
	}

	var reset models.PasswordReset
	if err := h.DB.Where("token = ? AND used = ?", req.Token, false).First(&reset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("token de recuperação inválido")
		}
		return err
	}
	if time.Now().Unix() > reset.ExpiresAt {
		return apperr.Conflict("token de recuperação expirado")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).
			Update("password_hash", pwHash).Error; err != nil {
			return err
		}
		return tx.Model(&models.PasswordReset{}).Where("id = ?", reset.ID).
			Update("used", true).Error
	})
	if txErr != nil {
		return txErr
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "senha atualizada"})
}
