package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/apperr"
	"github.com/caresdev/plataforma_cares/internal/ledger"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
	"github.com/caresdev/plataforma_cares/internal/service/search"
	"github.com/caresdev/plataforma_cares/internal/service/token"
	"github.com/caresdev/plataforma_cares/internal/util"
)

// MsgInsufficientCares is the client-facing message for a failed
// acquisition; the front end matches it verbatim.
const MsgInsufficientCares = "Saldo de Cares insuficiente para adquirir este item."

type ItemHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func (h *ItemHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "item_events", fmt.Sprint(event["itemID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ItemHandler) CreateItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Name            string `json:"nome"`
		Description     string `json:"descricao"`
		CommissionCares int    `json:"comissaoCares"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("pedido inválido")
	}
	if req.Name == "" {
		return apperr.Validation("o nome do item é obrigatório")
	}
	if req.CommissionCares < 0 {
		return apperr.Validation("a comissão não pode ser negativa")
	}

	item := models.Item{
		Name:            req.Name,
		Description:     req.Description,
		CommissionCares: req.CommissionCares,
		Availability:    models.ItemAvailable,
	}

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		owner := models.ItemOwner{ItemID: item.ID, UserID: userID, Relation: "owner"}
		return tx.Create(&owner).Error
	})
	if txErr != nil {
		return txErr
	}

	if h.ES != nil {
		if err := search.IndexItem(c.Request().Context(), h.ES, h.Index, item); err != nil {
			c.Logger().Errorf("ES index error: %v", err)
		}
	}

	h.publish(c, map[string]any{
		"type":    "item_created",
		"itemID":  item.ID,
		"ownerID": userID,
	})

	return c.JSON(http.StatusCreated, item)
}

func (h *ItemHandler) GetItem(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}

	var item models.Item
	if err := h.DB.First(&item, id).Error; err != nil {
		return apperr.NotFound("item não encontrado")
	}

	var owner models.ItemOwner
	if err := h.DB.Where("item_id = ?", item.ID).First(&owner).Error; err != nil {
		return c.JSON(http.StatusOK, echo.Map{"item": item})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item, "dono": owner.UserID})
}

func (h *ItemHandler) GetItems(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Item{}).Count(&total).Error; err != nil {
		return err
	}

	var items []models.Item
	if err := h.DB.Model(&models.Item{}).Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

// AcquireItem borrows an item: the availability flip is a guarded
// UPDATE so exactly one of two concurrent acquirers wins, and the
// borrower's debit, the loan row and the flip commit or roll back
// together.
func (h *ItemHandler) AcquireItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return apperr.Validation("id inválido")
	}

	var loan models.Loan
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.First(&item, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("item não encontrado")
			}
			return err
		}

		var owner models.ItemOwner
		if err := tx.Where("item_id = ?", item.ID).First(&owner).Error; err != nil {
			return err
		}
		if owner.UserID == userID {
			return apperr.Conflict("não pode adquirir um item de que é dono")
		}

		res := tx.Model(&models.Item{}).
			Where("id = ? AND availability = ?", item.ID, models.ItemAvailable).
			Update("availability", models.ItemUnavailable)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("este item já não está disponível")
		}

		loan = models.Loan{
			ItemID:     item.ID,
			BorrowerID: userID,
			StartDate:  time.Now(),
			Status:     models.LoanPending,
		}
		if err := tx.Create(&loan).Error; err != nil {
			return err
		}

		if err := ledger.Apply(tx, userID, -item.CommissionCares, &loan.ID, nil); err != nil {
			if errors.Is(err, ledger.ErrInsufficientCares) {
				return apperr.InsufficientBalance(MsgInsufficientCares)
			}
			return err
		}
		return nil
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{
		"type":       "item_acquired",
		"itemID":     loan.ItemID,
		"loanID":     loan.ID,
		"borrowerID": userID,
	})

	return c.JSON(http.StatusOK, loan)
}

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return apperr.Validation("parâmetro q é obrigatório")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, limit := util.Calculate(page, size)

	total, items, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"total": total, "itens": items})
}
