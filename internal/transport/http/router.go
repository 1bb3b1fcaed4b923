package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/caresdev/plataforma_cares/internal/handlers"
	"github.com/caresdev/plataforma_cares/internal/service/token"
)

type Deps struct {
	DB            *gorm.DB
	AuthHandler   *handlers.AuthHandler
	UserHandler   *handlers.UserHandler
	StoreHandler  *handlers.StoreHandler
	ItemHandler   *handlers.ItemHandler
	LoanHandler   *handlers.LoanHandler
	HelpHandler   *handlers.HelpHandler
	SearchHandler *handlers.SearchHandler
	TokenService  *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	users := api.Group("/Utilizadores")
	users.POST("/Registar", d.AuthHandler.Register)
	users.POST("/Login", d.AuthHandler.Login)
	users.POST("/Logout", d.AuthHandler.LogOut)
	users.POST("/RecuperarSenha", d.AuthHandler.RecoverPassword)
	users.POST("/NovaSenha", d.AuthHandler.SetNewPassword)
	users.GET("", d.UserHandler.GetUsers, d.TokenService.RequireUser)
	users.GET("/:id", d.UserHandler.GetUser, d.TokenService.RequireUser)

	lojas := api.Group("/Lojas")
	lojas.GET("", d.StoreHandler.GetStores)
	lojas.GET("/Ativa", d.StoreHandler.GetActiveStore)
	lojas.POST("/CriarLoja", d.StoreHandler.CreateStore, d.TokenService.RequireAdmin)

	itens := api.Group("/ItensEmprestimo")
	itens.GET("", d.ItemHandler.GetItems)
	itens.GET("/Pesquisar", d.SearchHandler.Search)
	itens.GET("/:id", d.ItemHandler.GetItem)
	itens.POST("", d.ItemHandler.CreateItem, d.TokenService.RequireUser)
	itens.POST("/AdquirirItem/:id", d.ItemHandler.AcquireItem, d.TokenService.RequireUser)

	emprestimos := api.Group("/Emprestimos")
	emprestimos.GET("", d.LoanHandler.GetLoans, d.TokenService.RequireAdmin)
	emprestimos.GET("/Meus", d.LoanHandler.GetMyLoans, d.TokenService.RequireUser)
	emprestimos.POST("/devolucao-item/:id", d.LoanHandler.RegisterReturn, d.TokenService.RequireUser)
	emprestimos.POST("/validar-emprestimo/:id", d.LoanHandler.ValidateLoan, d.TokenService.RequireAdmin)
	emprestimos.POST("/rejeitar-emprestimo/:id", d.LoanHandler.RejectLoan, d.TokenService.RequireAdmin)
	emprestimos.POST("/validar-devolucao/:id", d.LoanHandler.ValidateReturn, d.TokenService.RequireAdmin)

	pedidos := api.Group("/PedidosAjuda")
	pedidos.GET("", d.HelpHandler.GetHelpRequests)
	pedidos.POST("/Pedir", d.HelpHandler.RequestHelp, d.TokenService.RequireUser)
	pedidos.POST("/Inscrever/:id", d.HelpHandler.EnrollVolunteer, d.TokenService.RequireUser)
}
