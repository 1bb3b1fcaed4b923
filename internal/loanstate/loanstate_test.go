package loanstate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/caresdev/plataforma_cares/internal/models"
)

func TestForwardPath(t *testing.T) {
	require.True(t, CanTransition(models.LoanPending, models.LoanValidated))
	require.True(t, CanTransition(models.LoanPending, models.LoanRejected))
	require.True(t, CanTransition(models.LoanValidated, models.LoanAwaitingReturn))
	require.True(t, CanTransition(models.LoanAwaitingReturn, models.LoanReturnValidated))
}

func TestNoRegression(t *testing.T) {
	states := []string{
		models.LoanPending,
		models.LoanValidated,
		models.LoanAwaitingReturn,
		models.LoanReturnValidated,
		models.LoanRejected,
	}

	allowed := map[[2]string]bool{
		{models.LoanPending, models.LoanValidated}:              true,
		{models.LoanPending, models.LoanRejected}:               true,
		{models.LoanValidated, models.LoanAwaitingReturn}:       true,
		{models.LoanAwaitingReturn, models.LoanReturnValidated}: true,
	}

	for _, from := range states {
		for _, to := range states {
			require.Equal(t, allowed[[2]string{from, to}], CanTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	require.True(t, Terminal(models.LoanReturnValidated))
	require.True(t, Terminal(models.LoanRejected))
	require.False(t, Terminal(models.LoanPending))
	require.False(t, Terminal(models.LoanValidated))
	require.False(t, Terminal(models.LoanAwaitingReturn))
}

func TestUnknownStatus(t *testing.T) {
	require.False(t, CanTransition("bogus", models.LoanValidated))
	require.False(t, CanTransition(models.LoanPending, "bogus"))
}
