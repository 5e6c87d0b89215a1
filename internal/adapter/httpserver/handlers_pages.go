package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type monitorPageData struct {
	WSURL    string
	FocusBed string
}

func (s *Server) registerPageRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.Redirect(http.StatusFound, "/medical/vital-signs")
	})
	s.echo.GET("/medical/vital-signs", s.handleMonitorPage)
	s.echo.GET("/medical/vital-signs/:bed_id", s.handleMonitorPage)
}

// handleMonitorPage serves the live monitor. With a bed_id the page highlights that bed;
// unknown beds still render since the page only reflects what the socket pushes.
func (s *Server) handleMonitorPage(c echo.Context) error {
	return s.renderTemplate(c, "vital_signs.html", monitorPageData{
		WSURL:    s.webSocketURL(c),
		FocusBed: c.Param("bed_id"),
	})
}
