package routes

import (
	"checkout-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterCheckoutRoutes sets up all checkout routes. limit guards the public
// submit and list endpoints.
func RegisterCheckoutRoutes(r *gin.Engine, cc *controllers.CheckoutController, limit gin.HandlerFunc) {
	api := r.Group("/api")

	api.POST("/checkout", limit, cc.SubmitCheckout)

	checkouts := api.Group("/checkouts")
	checkouts.GET("", limit, cc.ListCheckouts)
	checkouts.POST("/export", cc.ExportCheckouts)
	checkouts.POST("/import", cc.ImportCheckouts)
	checkouts.GET("/import/:id", cc.GetImportReport)
}
