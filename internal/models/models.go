package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	StoreActive   = "active"
	StoreInactive = "inactive"
)

const (
	ItemAvailable   = "available"
	ItemUnavailable = "unavailable"
)

const (
	LoanPending         = "pending"
	LoanValidated       = "validated"
	LoanAwaitingReturn  = "awaiting_return"
	LoanReturnValidated = "return_validated"
	LoanRejected        = "rejected"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"not null"                 json:"nome"`
	Email        string `gorm:"unique;not null"          json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	NumCares     int    `gorm:"not null;default:0;check:num_cares >= 0" json:"numCares"`
	Photo        string `json:"fotografia"`
	Address      string `json:"morada"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type Store struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"nomeLoja"`
	Description string `json:"descLoja"`
	State       string `gorm:"not null;index"           json:"estado"`
}

type Item struct {
	ID              uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string `gorm:"not null"                 json:"nome"`
	Description     string `json:"descricao"`
	CommissionCares int    `gorm:"not null;check:commission_cares >= 0" json:"comissaoCares"`
	Availability    string `gorm:"not null;index"           json:"disponibilidade"`
}

// ItemOwner is the single "Owner" relation of an item.
type ItemOwner struct {
	ID       uint   `gorm:"primaryKey"             json:"id"`
	ItemID   uint   `gorm:"uniqueIndex;not null"   json:"item_id"`
	UserID   uint   `gorm:"index;not null"         json:"user_id"`
	Relation string `gorm:"not null;default:owner" json:"relacao"`
}

type Loan struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemID     uint       `gorm:"index;not null"           json:"item_id"`
	BorrowerID uint       `gorm:"index;not null"           json:"borrower_id"`
	StartDate  time.Time  `gorm:"not null"                 json:"dataInicio"`
	ReturnDate *time.Time `json:"dataDevolucao,omitempty"`
	Status     string     `gorm:"not null;index"           json:"estado"`
}

type HelpRequest struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"   json:"id"`
	Description   string    `gorm:"not null"                   json:"descPedido"`
	Hours         int       `gorm:"not null;check:hours >= 1"  json:"nHoras"`
	People        int       `gorm:"not null;check:people >= 1" json:"nPessoas"`
	Enrolled      int       `gorm:"not null;default:0"         json:"nInscritos"`
	ScheduledTime time.Time `gorm:"not null"                   json:"horarioAjuda"`
	Photo         string    `json:"fotografiaPA"`
	CreatorID     uint      `gorm:"index;not null"             json:"criador_id"`
}

// HelpEnrollment joins a volunteer to a help request, one row per user.
type HelpEnrollment struct {
	ID            uint `gorm:"primaryKey"                                   json:"id"`
	HelpRequestID uint `gorm:"not null;uniqueIndex:idx_enroll_request_user" json:"pedido_id"`
	UserID        uint `gorm:"not null;uniqueIndex:idx_enroll_request_user" json:"user_id"`
}

// Transaction is one signed Cares movement; the sum of a user's rows
// must always equal User.NumCares.
type Transaction struct {
	ID            uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint  `gorm:"index;not null"           json:"user_id"`
	Amount        int   `gorm:"not null"                 json:"quantia"`
	LoanID        *uint `gorm:"index"                    json:"emprestimo_id,omitempty"`
	HelpRequestID *uint `gorm:"index"                    json:"pedido_id,omitempty"`
	CreatedAt     int64 `gorm:"autoCreateTime"           json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	Role      string `gorm:"not null"        json:"role"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

// PasswordReset is a one-time recovery token sent to the user's e-mail.
type PasswordReset struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Used      bool   `gorm:"default:false"   json:"used"`
}
