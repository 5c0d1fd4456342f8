package httpapi

import (
	_ "embed"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-map/internal/store"
	"github.com/i474232898/weather-map/internal/viewstate"
	"github.com/i474232898/weather-map/internal/weather"
)

const sessionCookie = "wm_session"

var validate = validator.New()

//go:embed web/index.html
var indexHTML []byte

// MapSettings describes the tile layer rendered by the page.
type MapSettings struct {
	TileURL     string             `json:"tileUrl"`
	Attribution string             `json:"attribution"`
	Zoom        int                `json:"zoom"`
	Center      weather.Coordinate `json:"center"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, sessions *store.MemoryStore, mapSettings MapSettings) {
	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.Send(indexHTML)
	})

	v1 := app.Group("/api/v1")

	v1.Get("/map", func(c *fiber.Ctx) error {
		return c.JSON(mapSettings)
	})

	v1.Get("/state", func(c *fiber.Ctx) error {
		sess := sessionFor(c, sessions)
		return renderState(c, sess, mapSettings.Zoom)
	})

	v1.Put("/query", func(c *fiber.Ctx) error {
		var req queryRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		sess := sessionFor(c, sessions)
		if err := sess.Controller.SetQuery(c.UserContext(), req.Query); err != nil {
			return unavailable(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Post("/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}

		sess := sessionFor(c, sessions)
		ctl := sess.Controller
		if req.Query != nil {
			if err := ctl.SetQuery(c.UserContext(), *req.Query); err != nil {
				return unavailable(err)
			}
		}

		if err := ctl.SubmitSearch(c.UserContext()); err != nil {
			switch {
			case errors.Is(err, weather.ErrCityNotFound):
				// The alert is delivered by this response.
				sess.DrainAlerts()
				return fiber.NewError(fiber.StatusNotFound, weather.NotFoundMessage)
			case weather.IsTransport(err):
				return fiber.NewError(fiber.StatusBadGateway, "location lookup failed")
			default:
				return unavailable(err)
			}
		}

		return renderState(c, sess, mapSettings.Zoom)
	})

	v1.Post("/marker", func(c *fiber.Ctx) error {
		var req markerRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		sess := sessionFor(c, sessions)
		coord := weather.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
		if err := sess.Controller.DragEnd(c.UserContext(), coord); err != nil {
			return unavailable(err)
		}
		return renderState(c, sess, mapSettings.Zoom)
	})
}

type queryRequest struct {
	Query string `json:"query"`
}

type searchRequest struct {
	Query *string `json:"query"`
}

// markerRequest carries the marker position reported at the end of a drag.
type markerRequest struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type weatherView struct {
	weather.Display
	Raw weather.WeatherSnapshot `json:"raw"`
}

type stateResponse struct {
	Coordinate weather.Coordinate `json:"coordinate"`
	MapCenter  weather.Coordinate `json:"mapCenter"`
	Zoom       int                `json:"zoom"`
	Query      string             `json:"query"`
	Pending    bool               `json:"pending"`
	Generation uint64             `json:"generation"`
	Weather    *weatherView       `json:"weather"`
	Alerts     []string           `json:"alerts"`
}

func renderState(c *fiber.Ctx, sess *store.Session, zoom int) error {
	st, err := sess.Controller.State(c.UserContext())
	if err != nil {
		return unavailable(err)
	}

	resp := stateResponse{
		Coordinate: st.Coordinate,
		MapCenter:  st.MapCenter,
		Zoom:       zoom,
		Query:      st.Query,
		Pending:    st.Pending,
		Generation: st.Generation,
		Alerts:     sess.DrainAlerts(),
	}
	if resp.Alerts == nil {
		resp.Alerts = []string{}
	}
	if st.Snapshot != nil {
		resp.Weather = &weatherView{Display: weather.Present(*st.Snapshot), Raw: *st.Snapshot}
	}
	return c.JSON(resp)
}

// sessionFor returns the caller's session, starting a new one when the cookie
// is missing or refers to an expired session.
func sessionFor(c *fiber.Ctx, sessions *store.MemoryStore) *store.Session {
	if id := c.Cookies(sessionCookie); id != "" {
		if sess, err := sessions.Get(id); err == nil {
			return sess
		}
	}

	sess := sessions.Create()
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
		Expires:  time.Now().Add(24 * time.Hour),
	})
	return sess
}

func unavailable(err error) error {
	if errors.Is(err, viewstate.ErrStopped) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "session closed")
	}
	return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}
