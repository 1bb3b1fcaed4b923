package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/config"
	"github.com/caresdev/plataforma_cares/internal/hash"
	"github.com/caresdev/plataforma_cares/internal/models"
)

func InitTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}

	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	return db
}

func createUser(t *testing.T, db *gorm.DB, email, role string, cares int) models.User {
	t.Helper()
	pwHash, err := hash.HashPassword("password")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	user := models.User{
		Name:         "Utilizador Teste",
		Email:        email,
		PasswordHash: pwHash,
		NumCares:     cares,
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func jsonContext(t *testing.T, e *echo.Echo, method, target string, body any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(bodyBytes)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asUser(c echo.Context, u models.User) {
	c.Set("userID", u.ID)
	c.Set("role", u.Role)
}

func seedTransactions(t *testing.T, db *gorm.DB, userID uint, amounts ...int) {
	t.Helper()
	for _, a := range amounts {
		if err := db.Create(&models.Transaction{UserID: userID, Amount: a}).Error; err != nil {
			t.Fatalf("seed transaction: %v", err)
		}
	}
	if err := db.Model(&models.User{}).Where("id = ?", userID).
		Update("num_cares", gorm.Expr("num_cares + ?", sum(amounts))).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
