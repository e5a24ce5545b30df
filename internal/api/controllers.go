package api

import (
	"net/http"

	"github.com/gpufand/gpufand/internal/controller"
	"github.com/labstack/echo/v4"
	"github.com/qdm12/reprint"
)

func registerControllerEndpoints(rest *echo.Echo) {
	group := rest.Group("/controller")

	group.GET("/", getControllers)
	group.GET("/:"+urlParamId+"/", getController)
}

// returns a snapshot of all currently active controllers
func getControllers(c echo.Context) error {
	snapshots := map[string]controller.Snapshot{}
	for entry := range controller.ControllerMap.IterBuffered() {
		snapshots[entry.Key] = entry.Val.Snapshot()
	}
	data := reprint.This(snapshots)
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}

func getController(c echo.Context) error {
	id := c.Param(urlParamId)
	item, exists := controller.ControllerMap.Get(id)
	if !exists {
		return returnNotFound(c, id)
	}
	data := reprint.This(item.Snapshot())
	return c.JSONPretty(http.StatusOK, data, indentationChar)
}
