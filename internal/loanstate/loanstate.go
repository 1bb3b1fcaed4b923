// Package loanstate holds the loan lifecycle transition table. Statuses
// only move forward; anything outside the table is refused.
package loanstate

import "github.com/caresdev/plataforma_cares/internal/models"

var transitions = map[string]map[string]bool{
	models.LoanPending: {
		models.LoanValidated: true,
		models.LoanRejected:  true,
	},
	models.LoanValidated: {
		models.LoanAwaitingReturn: true,
	},
	models.LoanAwaitingReturn: {
		models.LoanReturnValidated: true,
	},
}

func CanTransition(from, to string) bool {
	return transitions[from][to]
}

func Terminal(status string) bool {
	return len(transitions[status]) == 0
}
