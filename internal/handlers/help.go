package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/apperr"
	"github.com/caresdev/plataforma_cares/internal/ledger"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
	"github.com/caresdev/plataforma_cares/internal/service/token"
	"github.com/caresdev/plataforma_cares/internal/util"
)

type HelpHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *HelpHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "help_events", fmt.Sprint(event["pedidoID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *HelpHandler) RequestHelp(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Description   string    `json:"descPedido"`
		Hours         int       `json:"nHoras"`
		People        int       `json:"nPessoas"`
		ScheduledTime time.Time `json:"horarioAjuda"`
		Photo         string    `json:"fotografiaPA"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}
	if req.Description == "" {
		return apperr.Validation("a descrição do pedido é obrigatória")
	}
	if req.Hours < 1 {
		return apperr.Validation("o número de horas deve ser pelo menos 1")
	}
	if req.People < 1 {
		return apperr.Validation("o número de pessoas deve ser pelo menos 1")
	}

	pedido := models.HelpRequest{
		Description:   req.Description,
		Hours:         req.Hours,
		People:        req.People,
		ScheduledTime: req.ScheduledTime,
		Photo:         req.Photo,
		CreatorID:     userID,
	}
	if err := h.DB.Create(&pedido).Error; err != nil {
		return err
	}

	h.publish(c, map[string]any{
		"type":      "help_requested",
		"pedidoID":  pedido.ID,
		"creatorID": userID,
	})

	return c.JSON(http.StatusOK, pedido)
}

func (h *HelpHandler) GetHelpRequests(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var pedidos []models.HelpRequest
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&pedidos).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pedidos)
}

// EnrollVolunteer signs the caller up for a help request. The head
// count lives in a counter on the request row and is taken with a
// guarded UPDATE, so two volunteers racing for the last slot cannot
// both win; the unique index on (request, user) keeps a volunteer from
// enrolling twice, and a rolled-back insert undoes the increment.
func (h *HelpHandler) EnrollVolunteer(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}

	var enrollment models.HelpEnrollment
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var pedido models.HelpRequest
		if err := tx.First(&pedido, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("pedido de ajuda não encontrado")
			}
			return err
		}
		if pedido.CreatorID == userID {
			return apperr.Conflict("não pode inscrever-se no seu próprio pedido")
		}
		if pedido.ScheduledTime.Before(time.Now()) {
			return apperr.Conflict("o horário deste pedido de ajuda já passou")
		}

		res := tx.Model(&models.HelpRequest{}).
			Where("id = ? AND enrolled < people", pedido.ID).
			Update("enrolled", gorm.Expr("enrolled + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("este pedido de ajuda já tem voluntários suficientes")
		}

		enrollment = models.HelpEnrollment{HelpRequestID: pedido.ID, UserID: userID}
		if err := tx.Create(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("já está inscrito neste pedido")
			}
			return err
		}

		// Zero-amount entry: records the join in the ledger without
		// moving Cares.
		return ledger.Apply(tx, userID, 0, nil, &pedido.ID)
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{
		"type":        "volunteer_enrolled",
		"pedidoID":    enrollment.HelpRequestID,
		"volunteerID": userID,
	})

	return c.JSON(http.StatusOK, enrollment)
}
