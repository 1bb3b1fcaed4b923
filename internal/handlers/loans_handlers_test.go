package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/caresdev/plataforma_cares/internal/apperr"
	"github.com/caresdev/plataforma_cares/internal/ledger"
	"github.com/caresdev/plataforma_cares/internal/models"
	"github.com/caresdev/plataforma_cares/internal/mykafka"
)

type loanFixture struct {
	e        *echo.Echo
	items    *ItemHandler
	loans    *LoanHandler
	owner    models.User
	borrower models.User
	admin    models.User
	item     models.Item
	loan     models.Loan
}

// newLoanFixture acquires an item so every test starts from a pending
// loan with the borrower already debited.
func newLoanFixture(t *testing.T) *loanFixture {
	db := InitTestDB(t)
	e := echo.New()
	f := &loanFixture{
		e:     e,
		items: &ItemHandler{DB: db, Producer: &mykafka.Producer{}},
		loans: &LoanHandler{DB: db, Producer: &mykafka.Producer{}},
	}

	f.owner = createUser(t, db, "dono@example.com", models.RoleUser, 0)
	f.borrower = createUser(t, db, "maria@example.com", models.RoleUser, 0)
	f.admin = createUser(t, db, "admin@example.com", models.RoleAdmin, 0)
	seedTransactions(t, db, f.borrower.ID, 10)
	f.item = createItem(t, db, f.owner, 5)

	c, _ := jsonContext(t, e, http.MethodPost, fmt.Sprintf("/api/ItensEmprestimo/AdquirirItem/%d", f.item.ID), nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(f.item.ID))
	asUser(c, f.borrower)
	require.NoError(t, f.items.AcquireItem(c))

	require.NoError(t, db.Where("item_id = ?", f.item.ID).First(&f.loan).Error)
	require.Equal(t, models.LoanPending, f.loan.Status)
	return f
}

func (f *loanFixture) call(t *testing.T, handler echo.HandlerFunc, path string, caller models.User) error {
	t.Helper()
	c, _ := jsonContext(t, f.e, http.MethodPost, path, nil)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(f.loan.ID))
	asUser(c, caller)
	return handler(c)
}

func (f *loanFixture) status(t *testing.T) string {
	t.Helper()
	var loan models.Loan
	require.NoError(t, f.loans.DB.First(&loan, f.loan.ID).Error)
	return loan.Status
}

func TestLoanLifecycle(t *testing.T) {
	f := newLoanFixture(t)

	require.NoError(t, f.call(t, f.loans.ValidateLoan, "/api/Emprestimos/validar-emprestimo/", f.admin))
	require.Equal(t, models.LoanValidated, f.status(t))

	require.NoError(t, f.call(t, f.loans.RegisterReturn, "/api/Emprestimos/devolucao-item/", f.borrower))
	require.Equal(t, models.LoanAwaitingReturn, f.status(t))

	var withDate models.Loan
	require.NoError(t, f.loans.DB.First(&withDate, f.loan.ID).Error)
	require.NotNil(t, withDate.ReturnDate)

	require.NoError(t, f.call(t, f.loans.ValidateReturn, "/api/Emprestimos/validar-devolucao/", f.admin))
	require.Equal(t, models.LoanReturnValidated, f.status(t))

	// item is lendable again and the owner finally got the commission
	var item models.Item
	require.NoError(t, f.loans.DB.First(&item, f.item.ID).Error)
	require.Equal(t, models.ItemAvailable, item.Availability)

	var owner models.User
	require.NoError(t, f.loans.DB.First(&owner, f.owner.ID).Error)
	require.Equal(t, 5, owner.NumCares)

	ownerSum, err := ledger.SumForUser(f.loans.DB, f.owner.ID)
	require.NoError(t, err)
	require.Equal(t, owner.NumCares, ownerSum)

	borrowerSum, err := ledger.SumForUser(f.loans.DB, f.borrower.ID)
	require.NoError(t, err)
	require.Equal(t, 5, borrowerSum)
}

func TestRejectLoanRefundsAndRestores(t *testing.T) {
	f := newLoanFixture(t)

	require.NoError(t, f.call(t, f.loans.RejectLoan, "/api/Emprestimos/rejeitar-emprestimo/", f.admin))
	require.Equal(t, models.LoanRejected, f.status(t))

	var borrower models.User
	require.NoError(t, f.loans.DB.First(&borrower, f.borrower.ID).Error)
	require.Equal(t, 10, borrower.NumCares)

	sum, err := ledger.SumForUser(f.loans.DB, f.borrower.ID)
	require.NoError(t, err)
	require.Equal(t, borrower.NumCares, sum)

	var item models.Item
	require.NoError(t, f.loans.DB.First(&item, f.item.ID).Error)
	require.Equal(t, models.ItemAvailable, item.Availability)

	var owner models.User
	require.NoError(t, f.loans.DB.First(&owner, f.owner.ID).Error)
	require.Equal(t, 0, owner.NumCares)
}

func TestLoanTransitionsOnlyForward(t *testing.T) {
	f := newLoanFixture(t)

	// awaiting return before validation is not allowed
	err := f.call(t, f.loans.RegisterReturn, "/api/Emprestimos/devolucao-item/", f.borrower)
	ae, ok := err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, ae.Status)

	require.NoError(t, f.call(t, f.loans.ValidateLoan, "/api/Emprestimos/validar-emprestimo/", f.admin))

	// rejection is only possible from pending
	err = f.call(t, f.loans.RejectLoan, "/api/Emprestimos/rejeitar-emprestimo/", f.admin)
	ae, ok = err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, ae.Status)

	// double validation
	err = f.call(t, f.loans.ValidateLoan, "/api/Emprestimos/validar-emprestimo/", f.admin)
	ae, ok = err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, ae.Status)

	require.NoError(t, f.call(t, f.loans.RegisterReturn, "/api/Emprestimos/devolucao-item/", f.borrower))
	require.NoError(t, f.call(t, f.loans.ValidateReturn, "/api/Emprestimos/validar-devolucao/", f.admin))

	// terminal state stays terminal
	err = f.call(t, f.loans.ValidateLoan, "/api/Emprestimos/validar-emprestimo/", f.admin)
	ae, ok = err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusConflict, ae.Status)
	require.Equal(t, models.LoanReturnValidated, f.status(t))
}

func TestRegisterReturnOnlyBorrower(t *testing.T) {
	f := newLoanFixture(t)
	stranger := createUser(t, f.loans.DB, "outro@example.com", models.RoleUser, 0)

	require.NoError(t, f.call(t, f.loans.ValidateLoan, "/api/Emprestimos/validar-emprestimo/", f.admin))

	err := f.call(t, f.loans.RegisterReturn, "/api/Emprestimos/devolucao-item/", stranger)
	ae, ok := err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, ae.Status)

	// admin may register on the borrower's behalf
	require.NoError(t, f.call(t, f.loans.RegisterReturn, "/api/Emprestimos/devolucao-item/", f.admin))
	require.Equal(t, models.LoanAwaitingReturn, f.status(t))
}

func TestLoanNotFound(t *testing.T) {
	f := newLoanFixture(t)

	c, _ := jsonContext(t, f.e, http.MethodPost, "/api/Emprestimos/validar-emprestimo/999", nil)
	c.SetParamNames("id")
	c.SetParamValues("999")
	asUser(c, f.admin)

	err := f.loans.ValidateLoan(c)
	ae, ok := err.(*apperr.Error)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, ae.Status)
}
