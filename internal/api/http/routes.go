package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/weatherfront/weatherfront/internal/auth"
	"github.com/weatherfront/weatherfront/internal/store"
	"github.com/weatherfront/weatherfront/internal/weather"
)

var validate = validator.New()

const (
	minAutocompleteQueryLength = 2
	topSearchesLimit           = 10
	userSearchesLimit          = 20

	sessionKeyLocation = "location"
	sessionKeyWeather  = "weather_data"
	sessionKeyUserID   = "user_id"
	sessionKeyUsername = "username"
)

// Handlers bundles the dependencies the HTTP surface needs.
type Handlers struct {
	Service  *weather.Service
	Store    *store.Store
	Sessions *session.Store
	Tokens   *auth.TokenIssuer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/", h.resultsPage)
	app.Get("/city", h.cityPage)
	app.Post("/city", h.citySubmit)
	app.Get("/get-weather", h.getWeather)
	app.Get("/statistics", h.statisticsPage)

	app.Get("/register", h.registerPage)
	app.Post("/register", h.registerSubmit)
	app.Get("/login", h.loginPage)
	app.Post("/login", h.loginSubmit)
	app.Get("/logout", h.logout)

	v1 := app.Group("/api/v1")
	v1.Post("/login", h.apiLogin)
	v1.Get("/statistics", h.apiStatistics)
}

// cityPage renders the search page, or the autocomplete partial for
// HTMX requests.
func (h *Handlers) cityPage(c *fiber.Ctx) error {
	if c.Get("HX-Request") != "" {
		return h.autocomplete(c)
	}
	return c.Render("city_search", fiber.Map{
		"Username": h.currentUsername(c),
	})
}

func (h *Handlers) autocomplete(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("city"))
	if len(query) < minAutocompleteQueryLength {
		// An empty response clears the HTMX target.
		return c.SendString("")
	}

	results := h.Service.Autocomplete(c.Context(), query)
	return c.Render("partials/autocomplete", fiber.Map{
		"Results": results,
	})
}

// cityForm is the search form payload.
type cityForm struct {
	City string `form:"city" validate:"required"`
	Lat  string `form:"lat"`
	Lon  string `form:"lon"`
}

// citySubmit stores the selected location in the session and redirects
// to the weather fetch step.
func (h *Handlers) citySubmit(c *fiber.Ctx) error {
	form := cityForm{
		City: strings.TrimSpace(c.FormValue("city")),
		Lat:  c.FormValue("lat"),
		Lon:  c.FormValue("lon"),
	}
	if err := validate.Struct(form); err != nil {
		log.Printf("INFO: city form submitted with no city name")
		return c.Redirect("/city", fiber.StatusFound)
	}

	loc := weather.EncodeSessionLocation(form.City, form.Lat, form.Lon)
	encoded, err := json.Marshal(loc)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to encode location")
	}

	if err := h.sessionSet(c, sessionKeyLocation, string(encoded)); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save session")
	}
	return c.Redirect("/get-weather", fiber.StatusFound)
}

// getWeather runs the lookup pipeline: decode the session location,
// fetch and normalize the forecast, refresh the session, record
// history, then redirect to the results page. Any failure redirects
// back to the search page.
func (h *Handlers) getWeather(c *fiber.Ctx) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return c.Redirect("/city", fiber.StatusFound)
	}

	rawLocation, _ := sess.Get(sessionKeyLocation).(string)
	loc, err := h.Service.ResolveLocation(c.Context(), rawLocation)
	if err != nil {
		log.Printf("failed to parse location data from session: %v", err)
		return c.Redirect("/city", fiber.StatusFound)
	}

	bundle, err := h.Service.Forecast(c.Context(), loc)
	if err != nil {
		log.Printf("ERROR: failed to fetch weather for %q: %v", loc.DisplayName, err)
		return c.Redirect("/city", fiber.StatusFound)
	}

	weatherJSON, err := json.Marshal(bundle)
	if err != nil {
		log.Printf("ERROR: failed to encode weather bundle: %v", err)
		return c.Redirect("/city", fiber.StatusFound)
	}

	refreshed := weather.SessionLocation{
		Display: loc.DisplayName,
		Lat:     formatCoord(loc.Lat),
		Lon:     formatCoord(loc.Lon),
		Name:    loc.Name,
		Admin1:  loc.Admin1,
		Country: loc.Country,
	}
	locationJSON, _ := json.Marshal(refreshed)

	sess.Set(sessionKeyWeather, string(weatherJSON))
	sess.Set(sessionKeyLocation, string(locationJSON))
	if err := sess.Save(); err != nil {
		log.Printf("ERROR: failed to save session: %v", err)
		return c.Redirect("/city", fiber.StatusFound)
	}

	h.Service.RecordSearch(h.currentUserID(c), loc, bundle)

	return c.Redirect("/", fiber.StatusFound)
}

// resultsPage renders the forecast held in the session. A missing
// bundle renders the page empty rather than failing.
func (h *Handlers) resultsPage(c *fiber.Ctx) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return c.Render("results", fiber.Map{})
	}

	data := fiber.Map{
		"Username": h.currentUsername(c),
	}

	if rawLocation, ok := sess.Get(sessionKeyLocation).(string); ok && rawLocation != "" {
		var loc weather.SessionLocation
		if err := json.Unmarshal([]byte(rawLocation), &loc); err == nil {
			data["Location"] = loc
		}
	}

	rawWeather, _ := sess.Get(sessionKeyWeather).(string)
	if rawWeather == "" {
		log.Printf("weather data not found in session for results page")
		return c.Render("results", data)
	}

	var bundle weather.ForecastBundle
	if err := json.Unmarshal([]byte(rawWeather), &bundle); err != nil {
		log.Printf("malformed weather data in session: %v", err)
		return c.Render("results", data)
	}

	data["Weather"] = weather.Rehydrate(&bundle)
	return c.Render("results", data)
}

// statisticsPage is the auth-gated HTML statistics view.
func (h *Handlers) statisticsPage(c *fiber.Ctx) error {
	userID := h.currentUserID(c)
	if userID == nil {
		return c.Redirect("/login", fiber.StatusFound)
	}

	stats, err := h.gatherStatistics(*userID)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load statistics")
	}
	stats["Username"] = h.currentUsername(c)
	return c.Render("statistics", stats)
}

func (h *Handlers) gatherStatistics(userID int64) (fiber.Map, error) {
	top, err := h.Store.TopSearches(topSearchesLimit)
	if err != nil {
		return nil, err
	}
	mine, err := h.Store.UserSearches(userID, userSearchesLimit)
	if err != nil {
		return nil, err
	}
	totalSearches, uniqueCities, err := h.Store.Totals()
	if err != nil {
		return nil, err
	}
	return fiber.Map{
		"TopSearches":   top,
		"UserSearches":  mine,
		"TotalSearches": totalSearches,
		"UniqueCities":  uniqueCities,
	}, nil
}

// credentialsForm is shared by the register and login forms.
type credentialsForm struct {
	Username string `form:"username" json:"username" validate:"required,min=3,max=64"`
	Password string `form:"password" json:"password" validate:"required,min=8"`
}

func (h *Handlers) registerPage(c *fiber.Ctx) error {
	return c.Render("register", fiber.Map{})
}

func (h *Handlers) registerSubmit(c *fiber.Ctx) error {
	form := credentialsForm{
		Username: strings.TrimSpace(c.FormValue("username")),
		Password: c.FormValue("password"),
	}
	if err := validate.Struct(form); err != nil {
		return c.Render("register", fiber.Map{"Error": "username and a password of at least 8 characters are required"})
	}

	hash, err := auth.HashPassword(form.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to register")
	}

	userID, err := h.Store.CreateUser(form.Username, hash)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return c.Render("register", fiber.Map{"Error": "username already taken"})
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to register")
	}

	if err := h.startSession(c, userID, form.Username); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save session")
	}
	return c.Redirect("/city", fiber.StatusFound)
}

func (h *Handlers) loginPage(c *fiber.Ctx) error {
	return c.Render("login", fiber.Map{})
}

func (h *Handlers) loginSubmit(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	password := c.FormValue("password")

	user, err := h.authenticate(username, password)
	if err != nil {
		return c.Render("login", fiber.Map{"Error": "invalid username or password"})
	}

	if err := h.startSession(c, user.ID, user.Username); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to save session")
	}
	return c.Redirect("/city", fiber.StatusFound)
}

func (h *Handlers) logout(c *fiber.Ctx) error {
	if sess, err := h.Sessions.Get(c); err == nil {
		if err := sess.Destroy(); err != nil {
			log.Printf("failed to destroy session: %v", err)
		}
	}
	return c.Redirect("/city", fiber.StatusFound)
}

func (h *Handlers) authenticate(username, password string) (*store.User, error) {
	if username == "" || password == "" {
		return nil, store.ErrNotFound
	}
	user, err := h.Store.UserByUsername(username)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, store.ErrNotFound
	}
	return user, nil
}

// apiLogin exchanges credentials for a bearer token.
func (h *Handlers) apiLogin(c *fiber.Ctx) error {
	var creds credentialsForm
	if err := c.BodyParser(&creds); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed credentials")
	}
	if err := validate.Struct(creds); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	user, err := h.authenticate(creds.Username, creds.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid username or password")
	}

	token, err := h.Tokens.Mint(user.ID, user.Username)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to issue token")
	}
	return c.JSON(fiber.Map{"token": token})
}

// apiStatistics is the bearer-token JSON counterpart of the statistics
// page.
func (h *Handlers) apiStatistics(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}

	userID, err := h.Tokens.Verify(tokenString)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	top, err := h.Store.TopSearches(topSearchesLimit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load statistics")
	}
	mine, err := h.Store.UserSearches(userID, userSearchesLimit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load statistics")
	}
	totalSearches, uniqueCities, err := h.Store.Totals()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load statistics")
	}

	userSearches := make([]fiber.Map, 0, len(mine))
	for _, entry := range mine {
		userSearches = append(userSearches, fiber.Map{
			"city":        entry.City.FullDisplayName,
			"searched_at": entry.SearchedAt,
		})
	}

	topSearches := make([]fiber.Map, 0, len(top))
	for _, cc := range top {
		topSearches = append(topSearches, fiber.Map{
			"city":         cc.FullDisplayName,
			"search_count": cc.SearchCount,
		})
	}

	return c.JSON(fiber.Map{
		"top_searches":   topSearches,
		"user_searches":  userSearches,
		"total_searches": totalSearches,
		"unique_cities":  uniqueCities,
	})
}

func (h *Handlers) startSession(c *fiber.Ctx, userID int64, username string) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(sessionKeyUserID, userID)
	sess.Set(sessionKeyUsername, username)
	return sess.Save()
}

func (h *Handlers) sessionSet(c *fiber.Ctx, key, value string) error {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return err
	}
	sess.Set(key, value)
	return sess.Save()
}

func (h *Handlers) currentUserID(c *fiber.Ctx) *int64 {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return nil
	}
	if id, ok := sess.Get(sessionKeyUserID).(int64); ok {
		return &id
	}
	return nil
}

func (h *Handlers) currentUsername(c *fiber.Ctx) string {
	sess, err := h.Sessions.Get(c)
	if err != nil {
		return ""
	}
	name, _ := sess.Get(sessionKeyUsername).(string)
	return name
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
