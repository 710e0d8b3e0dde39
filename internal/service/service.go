package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/rolodex/internal/metrics"
	"gitlab.com/dirk.krummacker/rolodex/internal/model"
	"gitlab.com/dirk.krummacker/rolodex/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const serviceName = "contacts-service"

// defaultBirthdayWindow is the number of days looked ahead for upcoming birthdays.
const defaultBirthdayWindow = 30

// defaultStaleThreshold is the number of days after which a contact counts as stale.
const defaultStaleThreshold = 90

// ContactStore is the persistence the handlers work on.
type ContactStore interface {
	Create(ctx context.Context, c *model.Contact) error
	Get(ctx context.Context, id int64) (model.Contact, error)
	List(ctx context.Context, f store.Filter) ([]model.Contact, error)
	ListWithBirthDate(ctx context.Context) ([]model.Contact, error)
	ListStale(ctx context.Context, cutoff model.Date) ([]model.StaleContact, error)
	Update(ctx context.Context, c *model.Contact) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

// Service implements the REST API for contacts.
type Service struct {
	store   ContactStore
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the clock that determines today's date and the timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates the service on top of the given store.
func New(st ContactStore, log *zap.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{store: st, log: log, metrics: m, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupHttpRouter initializes the REST API router and registers all endpoints.
func (s *Service) SetupHttpRouter(requestLogging bool) *gin.Engine {
	registerValidations()
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), otelgin.Middleware(serviceName), s.metrics.Middleware())
	if requestLogging {
		router.Use(accessLog(s.log))
	} else {
		s.log.Info("Turning off HTTP request logging.")
	}
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/contacts", s.findContacts)
	router.POST("/contacts", s.createContact)
	router.GET("/contacts/upcoming-birthdays", s.findUpcomingBirthdays)
	router.GET("/contacts/stale", s.findStaleContacts)
	router.GET("/contacts/:id", s.findContactByID)
	router.PUT("/contacts/:id", s.updateContactByID)
	router.DELETE("/contacts/:id", s.deleteContactByID)
	return router
}

// health responds with OK if the database can be reached.
func (s *Service) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.log.Warn("database not reachable", zap.Error(err), zap.String("request_id", c.GetString(requestIDKey)))
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"status": "ok"})
}

// findContacts responds with a list of contacts as JSON.
//
// The URL parameters 'firstName' and 'lastName' are matched against any part of the first name
// or last name of the contact. Whether the match is case sensitive depends on the database
// collation. The URL parameter 'type' selects contacts of one type: Personal, Professional,
// Family, or Other. All given parameters must match.
//
// REST API calls:
//
//	> curl "http://localhost:8080/contacts"
//	> curl "http://localhost:8080/contacts?firstName=ri"
//	> curl "http://localhost:8080/contacts?lastName=Muster&type=Family"
func (s *Service) findContacts(c *gin.Context) {
	filter := store.Filter{
		FirstName: c.Query("firstName"),
		LastName:  c.Query("lastName"),
	}
	if typeParam := c.Query("type"); typeParam != "" {
		contactType, err := model.ParseContactType(typeParam)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid type parameter"})
			return
		}
		filter.Type = &contactType
	}
	contacts, err := s.store.List(c.Request.Context(), filter)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// findContactByID locates the contact whose ID value matches the id parameter of the request URL,
// then returns that contact as a response.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56
func (s *Service) findContactByID(c *gin.Context) {
	id, ok := parseId(c)
	if !ok {
		return
	}
	contact, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contact)
}

// createContact inserts the contact specified in the request's JSON into the database. It responds
// with the full contact data including the newly assigned id and both timestamps. An id or
// timestamps in the request are ignored.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts --request "POST" --include --header "Content-Type: application/json" --data '{"firstName": "Hans", "lastName": "Wurst", "type": "Personal", "dateOfBirth": "1969-03-02"}'
func (s *Service) createContact(c *gin.Context) {
	var request model.ContactRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}
	now := s.timestamp()
	contact := model.Contact{CreatedAtUtc: now, UpdatedAtUtc: now}
	request.ApplyTo(&contact)
	if err := s.store.Create(c.Request.Context(), &contact); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.metrics.ContactChanged("create")
	c.Header("Location", fmt.Sprintf("/contacts/%d", contact.Id))
	c.IndentedJSON(http.StatusCreated, contact)
}

// updateContactByID replaces all values of the contact whose ID value matches the id parameter
// of the request URL with the values of the request's JSON. Fields missing in the JSON are
// cleared. If the JSON contains an id, it must match the URL. The creation timestamp is kept.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "PUT" --include --header "Content-Type: application/json" --data '{"firstName": "Hans", "lastName": "Wurst", "lastContactedDate": "2025-06-01"}'
func (s *Service) updateContactByID(c *gin.Context) {
	id, ok := parseId(c)
	if !ok {
		return
	}
	var request model.ContactRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
		return
	}
	if request.Id != nil && *request.Id != id {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "id in body does not match id in URL"})
		return
	}

	ctx := c.Request.Context()
	contact, err := s.store.Get(ctx, id)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	request.ApplyTo(&contact)
	contact.UpdatedAtUtc = s.timestamp()
	// The clock may have been set back since the contact was created.
	if contact.UpdatedAtUtc.Before(contact.CreatedAtUtc) {
		contact.UpdatedAtUtc = contact.CreatedAtUtc
	}
	if err := s.store.Update(ctx, &contact); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.metrics.ContactChanged("update")
	c.Status(http.StatusNoContent)
}

// deleteContactByID deletes the contact whose ID value matches the id parameter of the request URL
// from the database.
//
// Example REST API call:
//
//	> curl http://localhost:8080/contacts/56 --request "DELETE"
func (s *Service) deleteContactByID(c *gin.Context) {
	id, ok := parseId(c)
	if !ok {
		return
	}
	if err := s.store.Delete(c.Request.Context(), id); err != nil {
		s.abortWithError(c, err)
		return
	}
	s.metrics.ContactChanged("delete")
	c.Status(http.StatusNoContent)
}

// findUpcomingBirthdays responds with all contacts whose next birthday is at most 'days' days
// away (default 30), together with the age they turn. The list is sorted by date, the nearest
// birthday first.
//
// Example REST API calls:
//
//	> curl "http://localhost:8080/contacts/upcoming-birthdays"
//	> curl "http://localhost:8080/contacts/upcoming-birthdays?days=7"
func (s *Service) findUpcomingBirthdays(c *gin.Context) {
	days, ok := parseDays(c, defaultBirthdayWindow)
	if !ok {
		return
	}
	today := model.DateOf(s.now())
	contacts, err := s.store.ListWithBirthDate(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, upcomingBirthdays(contacts, today, days))
}

// findStaleContacts responds with all contacts that were not contacted within the last 'days'
// days (default 90). Contacts that were never contacted come first, followed by the others
// in the order of their last contact, the longest ago first.
//
// Example REST API calls:
//
//	> curl "http://localhost:8080/contacts/stale"
//	> curl "http://localhost:8080/contacts/stale?days=365"
func (s *Service) findStaleContacts(c *gin.Context) {
	days, ok := parseDays(c, defaultStaleThreshold)
	if !ok {
		return
	}
	cutoff := model.DateOf(s.now()).AddDays(-days)
	contacts, err := s.store.ListStale(c.Request.Context(), cutoff)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, contacts)
}

// timestamp returns the current time in UTC with the precision the databases can store.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// abortWithError maps an error of the store to the HTTP response. Everything except a missing
// contact is a server error; it is logged together with the request id.
func (s *Service) abortWithError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "contact not found"})
		return
	}
	s.log.Error("request failed",
		zap.Error(err),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(requestIDKey)))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal server error"})
}

// parseId reads the id parameter of the request URL. An id that is not a number cannot belong
// to any contact, so the request is answered with NOT FOUND.
func parseId(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "invalid id parameter"})
		return 0, false
	}
	return id, true
}

// parseDays reads the 'days' URL parameter. Negative values are allowed.
func parseDays(c *gin.Context, defaultDays int) (int, bool) {
	daysParam := c.Query("days")
	if daysParam == "" {
		return defaultDays, true
	}
	days, err := strconv.Atoi(daysParam)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "invalid days parameter"})
		return 0, false
	}
	return days, true
}
