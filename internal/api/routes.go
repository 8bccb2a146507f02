package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/countries", handler.GetCountries)
		api.GET("/countries/:country/states", handler.GetCountryStates)
		api.GET("/housing/:country/:year/:month", handler.GetHousingData)
		api.GET("/housing/:country/:year/:month/:finalYear/:finalMonth", handler.GetHousingDataRange)
	}
}
