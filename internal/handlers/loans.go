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
	"github.com/caresdev/plataforma_cares/internal/loanstate"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
	"github.com/caresdev/plataforma_cares/internal/service/token"
	"github.com/caresdev/plataforma_cares/internal/util"
)

type LoanHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *LoanHandler) publish(c echo.Context, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "loan_events", fmt.Sprint(event["loanID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *LoanHandler) loadLoan(tx *gorm.DB, c echo.Context) (*models.Loan, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, apperr.Validation("id inválido")
	}

	var loan models.Loan
	if err := tx.First(&loan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("empréstimo não encontrado")
		}
		return nil, err
	}
	return &loan, nil
}

// transition flips a loan's status with a guarded UPDATE after checking
// the transition table, so no status ever moves backwards even under
// concurrent calls.
func transition(tx *gorm.DB, loan *models.Loan, to string, updates map[string]any) error {
	if !loanstate.CanTransition(loan.Status, to) {
		return apperr.Conflict(fmt.Sprintf("transição de %s para %s não é permitida", loan.Status, to))
	}

	if updates == nil {
		updates = map[string]any{}
	}
	updates["status"] = to

	res := tx.Model(&models.Loan{}).
		Where("id = ? AND status = ?", loan.ID, loan.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict("o estado do empréstimo mudou entretanto")
	}
	loan.Status = to
	return nil
}

func (h *LoanHandler) ValidateLoan(c echo.Context) error {
	var loan *models.Loan
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = h.loadLoan(tx, c)
		if err != nil {
			return err
		}
		return transition(tx, loan, models.LoanValidated, nil)
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{"type": "loan_validated", "loanID": loan.ID})
	return c.JSON(http.StatusOK, loan)
}

// RejectLoan undoes an acquisition: the borrower's debit is refunded
// and the item goes back to available, all in one transaction so the
// ledger cannot drift from the item state.
func (h *LoanHandler) RejectLoan(c echo.Context) error {
	var loan *models.Loan
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = h.loadLoan(tx, c)
		if err != nil {
			return err
		}
		if err := transition(tx, loan, models.LoanRejected, nil); err != nil {
			return err
		}

		var item models.Item
		if err := tx.First(&item, loan.ItemID).Error; err != nil {
			return err
		}
		if err := ledger.Apply(tx, loan.BorrowerID, item.CommissionCares, &loan.ID, nil); err != nil {
			return err
		}
		return tx.Model(&models.Item{}).
			Where("id = ?", item.ID).
			Update("availability", models.ItemAvailable).Error
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{"type": "loan_rejected", "loanID": loan.ID})
	return c.JSON(http.StatusOK, loan)
}

// RegisterReturn is called by the borrower (or an admin on their
// behalf) when the item is handed back; an admin still has to confirm
// it physically through ValidateReturn.
func (h *LoanHandler) RegisterReturn(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	role, _ := c.Get("role").(string)

	var loan *models.Loan
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = h.loadLoan(tx, c)
		if err != nil {
			return err
		}
		if loan.BorrowerID != userID && role != models.RoleAdmin {
			return apperr.Forbidden("apenas o requerente pode devolver este item")
		}
		now := time.Now()
		if err := transition(tx, loan, models.LoanAwaitingReturn, map[string]any{"return_date": now}); err != nil {
			return err
		}
		loan.ReturnDate = &now
		return nil
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{"type": "loan_return_registered", "loanID": loan.ID})
	return c.JSON(http.StatusOK, loan)
}

// ValidateReturn closes the loan: the item becomes available again and
// the owner's commission, held since acquisition, is finally credited.
func (h *LoanHandler) ValidateReturn(c echo.Context) error {
	var loan *models.Loan
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = h.loadLoan(tx, c)
		if err != nil {
			return err
		}
		if err := transition(tx, loan, models.LoanReturnValidated, nil); err != nil {
			return err
		}

		var item models.Item
		if err := tx.First(&item, loan.ItemID).Error; err != nil {
			return err
		}
		var owner models.ItemOwner
		if err := tx.Where("item_id = ?", item.ID).First(&owner).Error; err != nil {
			return err
		}
		if err := ledger.Apply(tx, owner.UserID, item.CommissionCares, &loan.ID, nil); err != nil {
			return err
		}
		return tx.Model(&models.Item{}).
			Where("id = ?", item.ID).
			Update("availability", models.ItemAvailable).Error
	})
	if txErr != nil {
		return txErr
	}

	h.publish(c, map[string]any{"type": "loan_return_validated", "loanID": loan.ID})
	return c.JSON(http.StatusOK, loan)
}

func (h *LoanHandler) GetLoans(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var loans []models.Loan
	if err := h.DB.Order("id ASC").Offset(offset).Limit(limit).Find(&loans).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *LoanHandler) GetMyLoans(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var loans []models.Loan
	if err := h.DB.Where("borrower_id = ?", userID).Order("id ASC").Find(&loans).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, loans)
}
