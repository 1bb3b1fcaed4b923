package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/apperr"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
)

type StoreHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *StoreHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "store_events", fmt.Sprint(event["storeID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// CreateStore inserts the new store as the active one. Deactivating the
// others and inserting run in one transaction, and the partial unique
// index on stores(state) rejects a second concurrent active insert; the
// loser retries against the winner's committed row.
func (h *StoreHandler) CreateStore(c echo.Context) error {
	var req struct {
		Name        string `json:"nomeLoja"`
		Description string `json:"descLoja"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperr.Validation("o nome da loja é obrigatório")
	}

	var store models.Store
	var txErr error
	for attempt := 0; attempt < 3; attempt++ {
		store = models.Store{
			Name:        req.Name,
			Description: req.Description,
			State:       models.StoreActive,
		}
		txErr = h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Store{}).
				Where("state = ?", models.StoreActive).
				Update("state", models.StoreInactive).Error; err != nil {
				return err
			}
			return tx.Create(&store).Error
		})
		if !errors.Is(txErr, gorm.ErrDuplicatedKey) {
			break
		}
	}
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{
		"type":    "store_created",
		"storeID": store.ID,
		"name":    store.Name,
	})

	c.Response().Header().Set(echo.HeaderLocation, fmt.Sprintf("/api/Lojas/%d", store.ID))
	return c.JSON(http.StatusCreated, store)
}

func (h *StoreHandler) GetStores(c echo.Context) error {
	var stores []models.Store
	if err := h.DB.Order("id ASC").Find(&stores).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stores)
}

func (h *StoreHandler) GetActiveStore(c echo.Context) error {
	var store models.Store
	if err := h.DB.Where("state = ?", models.StoreActive).First(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("não existe nenhuma loja ativa")
		}
		return err
	}
	return c.JSON(http.StatusOK, store)
}
