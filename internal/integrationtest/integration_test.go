package integrationtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/rolodex/internal/config"
	"gitlab.com/dirk.krummacker/rolodex/internal/metrics"
	"gitlab.com/dirk.krummacker/rolodex/internal/service"
	"gitlab.com/dirk.krummacker/rolodex/internal/store"
	"go.uber.org/zap"
)

// today is the date on which the tests run: February 1, 2025.
var today = time.Date(2025, time.February, 1, 12, 0, 0, 0, time.Local)

// setupRouter creates a fresh SQLite database in a temporary directory and the contacts service
// on top of it. The test is skipped if SQLite is not available, e.g. in builds without cgo.
func setupRouter(t *testing.T, now func() time.Time) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := store.Open(config.DatabaseConfig{
		Driver:       "sqlite3",
		Name:         filepath.Join(t.TempDir(), "contacts.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("sqlite3 is not available: %v", err)
	}

	require.NoError(t, store.Migrate(ctx, db))
	st, err := store.New(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := service.New(st, zap.NewNop(), metrics.New(), service.WithClock(now))
	return svc.SetupHttpRouter(false)
}

func fixedClock() func() time.Time {
	return func() time.Time { return today }
}

// serve executes a request against the router.
func serve(router *gin.Engine, method string, url string, body string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request, _ := http.NewRequest(method, url, strings.NewReader(body))
	if body != "" {
		request.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(recorder, request)
	return recorder
}

func decode(t *testing.T, recorder *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), v), recorder.Body.String())
}

// createContact posts the JSON and returns the id of the new contact.
func createContact(t *testing.T, router *gin.Engine, body string) string {
	t.Helper()
	recorder := serve(router, "POST", "/contacts", body)
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())
	var contact map[string]interface{}
	decode(t, recorder, &contact)
	return fmt.Sprintf("%.0f", contact["id"])
}

func countContacts(t *testing.T, router *gin.Engine) int {
	t.Helper()
	recorder := serve(router, "GET", "/contacts", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var contacts []map[string]interface{}
	decode(t, recorder, &contacts)
	return len(contacts)
}

// TestContactHappyPath tests a POST, GET, PUT, and DELETE with valid data.
func TestContactHappyPath(t *testing.T) {
	clock := today
	router := setupRouter(t, func() time.Time { return clock })

	// test the endpoint for creating a contact
	postRecorder := serve(router, "POST", "/contacts", `
		{
			"firstName": "Erika",
			"lastName": "Mustermann",
			"email": "erika@example.com",
			"phoneNumber": "+49 0815 4711",
			"type": "Family",
			"dateOfBirth": "1969-03-02"
		}
	`)
	assert.Equal(t, http.StatusCreated, postRecorder.Code)
	var postBody map[string]interface{}
	decode(t, postRecorder, &postBody)
	assert.Equal(t, "Erika", postBody["firstName"])
	assert.Equal(t, "Mustermann", postBody["lastName"])
	assert.Equal(t, "Family", postBody["type"])
	assert.Equal(t, "1969-03-02", postBody["dateOfBirth"])
	assert.Equal(t, postBody["createdAtUtc"], postBody["updatedAtUtc"])
	idAsFloat64 := postBody["id"]
	idAsString := fmt.Sprintf("%.0f", idAsFloat64)
	assert.Equal(t, "/contacts/"+idAsString, postRecorder.Header().Get("Location"))

	// test the endpoint for finding a contact
	getRecorder := serve(router, "GET", "/contacts/"+idAsString, "")
	assert.Equal(t, http.StatusOK, getRecorder.Code)
	var getBody map[string]interface{}
	decode(t, getRecorder, &getBody)
	assert.Equal(t, postBody, getBody)

	// test the endpoint for updating a contact one hour later
	clock = today.Add(time.Hour)
	putRecorder := serve(router, "PUT", "/contacts/"+idAsString, `
		{
			"firstName": "Rudi",
			"lastName": "Völler",
			"phoneNumber": "+49 1234567890",
			"type": 1,
			"lastContactedDate": "2025-01-31"
		}
	`)
	assert.Equal(t, http.StatusNoContent, putRecorder.Code)

	// test if a subsequent lookup of the contact returns the updated values
	getAgainRecorder := serve(router, "GET", "/contacts/"+idAsString, "")
	assert.Equal(t, http.StatusOK, getAgainRecorder.Code)
	var getAgainBody map[string]interface{}
	decode(t, getAgainRecorder, &getAgainBody)
	assert.Equal(t, idAsFloat64, getAgainBody["id"])
	assert.Equal(t, "Rudi", getAgainBody["firstName"])
	assert.Equal(t, "Völler", getAgainBody["lastName"])
	assert.Equal(t, "+49 1234567890", getAgainBody["phoneNumber"])
	assert.Equal(t, "Professional", getAgainBody["type"])
	assert.Equal(t, "2025-01-31", getAgainBody["lastContactedDate"])
	assert.NotContains(t, getAgainBody, "email")
	assert.NotContains(t, getAgainBody, "dateOfBirth")
	assert.Equal(t, postBody["createdAtUtc"], getAgainBody["createdAtUtc"])
	assert.Equal(t, clock.UTC().Format(time.RFC3339Nano), getAgainBody["updatedAtUtc"])

	// test the endpoint for deleting a contact
	deleteRecorder := serve(router, "DELETE", "/contacts/"+idAsString, "")
	assert.Equal(t, http.StatusNoContent, deleteRecorder.Code)

	// test if a final lookup of the contact will correctly not find it
	getFinalRecorder := serve(router, "GET", "/contacts/"+idAsString, "")
	assert.Equal(t, http.StatusNotFound, getFinalRecorder.Code)

	// a second delete does not find the contact either
	deleteAgainRecorder := serve(router, "DELETE", "/contacts/"+idAsString, "")
	assert.Equal(t, http.StatusNotFound, deleteAgainRecorder.Code)
}

// TestCreateContactInvalidBody tests a POST with different forms of invalid request body data.
// None of them may create a contact.
func TestCreateContactInvalidBody(t *testing.T) {
	invalidRequestBodies := []string{
		"",
		"not JSON",
		"{}",
		`{"firstName": "", "lastName": "Mustermann"}`,
		`{"firstName": "Erika", "lastName": " "}`,
		`{"firstName": "Erika", "lastName": "Mustermann", "type": 7}`,
		`{"firstName": "Erika", "lastName": "Mustermann", "lastContactedDate": "yesterday"}`,
		`{
			"firstName": "Erika"
			"lastName": "Mustermann"
		}`, // commas missing
	}

	router := setupRouter(t, fixedClock())
	createContact(t, router, `{"firstName": "Max", "lastName": "Mustermann"}`)
	for _, body := range invalidRequestBodies {
		recorder := serve(router, "POST", "/contacts", body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}
	assert.Equal(t, 1, countContacts(t, router))
}

// TestUpdateContactInvalidId tests a PUT with an id that does not exist and one that is not a
// number.
func TestUpdateContactInvalidId(t *testing.T) {
	router := setupRouter(t, fixedClock())
	body := `{"firstName": "Rudi", "lastName": "Völler"}`

	assert.Equal(t, http.StatusNotFound, serve(router, "PUT", "/contacts/9999", body).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, "PUT", "/contacts/abc", body).Code)
	assert.Equal(t, 0, countContacts(t, router))
}

// TestUpdateContactInvalidBody tests a PUT with a valid id but an invalid request body. The
// contact must stay unchanged.
func TestUpdateContactInvalidBody(t *testing.T) {
	router := setupRouter(t, fixedClock())
	id := createContact(t, router, `{"firstName": "Erika", "lastName": "Mustermann"}`)

	invalidRequestBodies := []string{
		"",
		"not JSON",
		`{"lastName": "Völler"}`,
		fmt.Sprintf(`{"id": %s1, "firstName": "Rudi", "lastName": "Völler"}`, id),
	}
	for _, body := range invalidRequestBodies {
		recorder := serve(router, "PUT", "/contacts/"+id, body)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "request body: "+body)
	}

	var contact map[string]interface{}
	decode(t, serve(router, "GET", "/contacts/"+id, ""), &contact)
	assert.Equal(t, "Erika", contact["firstName"])
}

// TestUpdateContactWithMatchingId tests a PUT whose body repeats the id of the URL.
func TestUpdateContactWithMatchingId(t *testing.T) {
	router := setupRouter(t, fixedClock())
	id := createContact(t, router, `{"firstName": "Erika", "lastName": "Mustermann"}`)

	body := fmt.Sprintf(`{"id": %s, "firstName": "Erika", "lastName": "Musterfrau"}`, id)
	assert.Equal(t, http.StatusNoContent, serve(router, "PUT", "/contacts/"+id, body).Code)
	assert.Equal(t, http.StatusNoContent, serve(router, "PUT", "/contacts/"+id, body).Code)
}

// TestFindContactsFiltered creates several contacts and verifies that the name filters match
// any part of the names and that the type filter matches exactly.
func TestFindContactsFiltered(t *testing.T) {
	router := setupRouter(t, fixedClock())
	erika := createContact(t, router, `{"firstName": "Erika", "lastName": "Mustermann", "type": "Family"}`)
	max := createContact(t, router, `{"firstName": "Max", "lastName": "Mustermann", "type": "Personal"}`)
	marie := createContact(t, router, `{"firstName": "Marie", "lastName": "Curie"}`)

	tests := []struct {
		url      string
		expected []string
	}{
		{"/contacts", []string{erika, max, marie}},
		{"/contacts?firstName=ri", []string{erika, marie}},
		{"/contacts?lastName=Muster", []string{erika, max}},
		{"/contacts?lastName=Muster&firstName=a", []string{erika, max}},
		{"/contacts?lastName=Muster&type=Personal", []string{max}},
		{"/contacts?type=0", []string{max}},
		{"/contacts?type=Other", []string{}},
		{"/contacts?firstName=xyz", []string{}},
	}
	for _, test := range tests {
		recorder := serve(router, "GET", test.url, "")
		require.Equal(t, http.StatusOK, recorder.Code, test.url)
		var contacts []map[string]interface{}
		decode(t, recorder, &contacts)
		ids := make([]string, 0, len(contacts))
		for _, contact := range contacts {
			ids = append(ids, fmt.Sprintf("%.0f", contact["id"]))
		}
		assert.Equal(t, test.expected, ids, test.url)
	}

	assert.Equal(t, http.StatusBadRequest, serve(router, "GET", "/contacts?type=Friend", "").Code)
}

// TestUpcomingBirthdays verifies the birthday window relative to February 1, 2025, including a
// leap day birthday in a non-leap year.
func TestUpcomingBirthdays(t *testing.T) {
	router := setupRouter(t, fixedClock())
	createContact(t, router, `{"firstName": "Leap", "lastName": "Day", "dateOfBirth": "2000-02-29"}`)
	createContact(t, router, `{"firstName": "Passed", "lastName": "Already", "dateOfBirth": "1980-01-27"}`)
	birthdayChild := createContact(t, router, `{"firstName": "Birthday", "lastName": "Child", "dateOfBirth": "1974-02-01"}`)
	createContact(t, router, `{"firstName": "No", "lastName": "Birthday"}`)

	recorder := serve(router, "GET", "/contacts/upcoming-birthdays", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var upcoming []map[string]interface{}
	decode(t, recorder, &upcoming)
	require.Equal(t, 2, len(upcoming))
	assert.Equal(t, "Birthday", upcoming[0]["firstName"])
	assert.Equal(t, "2025-02-01", upcoming[0]["nextBirthday"])
	assert.Equal(t, 51.0, upcoming[0]["upcomingAge"])
	assert.Equal(t, "Leap", upcoming[1]["firstName"])
	assert.Equal(t, "2025-02-28", upcoming[1]["nextBirthday"])
	assert.Equal(t, 25.0, upcoming[1]["upcomingAge"])

	recorder = serve(router, "GET", "/contacts/upcoming-birthdays?days=0", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	decode(t, recorder, &upcoming)
	require.Equal(t, 1, len(upcoming))
	assert.Equal(t, birthdayChild, fmt.Sprintf("%.0f", upcoming[0]["id"]))

	recorder = serve(router, "GET", "/contacts/upcoming-birthdays?days=-1", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, "[]", recorder.Body.String())
}

// TestStaleContacts verifies that contacts never contacted come first, followed by those
// contacted before the cutoff, the longest ago first.
func TestStaleContacts(t *testing.T) {
	router := setupRouter(t, fixedClock())
	contactedLongAgo := createContact(t, router, `{"firstName": "Long", "lastName": "Ago", "lastContactedDate": "2024-10-24"}`)
	neverContacted := createContact(t, router, `{"firstName": "Never", "lastName": "Contacted"}`)
	createContact(t, router, `{"firstName": "Recently", "lastName": "Contacted", "lastContactedDate": "2025-01-30"}`)
	contactedEvenLonger := createContact(t, router, `{"firstName": "Even", "lastName": "Longer", "lastContactedDate": "2023-05-05"}`)

	recorder := serve(router, "GET", "/contacts/stale", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var stale []map[string]interface{}
	decode(t, recorder, &stale)
	require.Equal(t, 3, len(stale))
	assert.Equal(t, neverContacted, fmt.Sprintf("%.0f", stale[0]["id"]))
	assert.Nil(t, stale[0]["lastContactedDate"])
	assert.Equal(t, contactedEvenLonger, fmt.Sprintf("%.0f", stale[1]["id"]))
	assert.Equal(t, contactedLongAgo, fmt.Sprintf("%.0f", stale[2]["id"]))
	assert.Equal(t, "2024-10-24", stale[2]["lastContactedDate"])

	// a contact exactly at the cutoff is not stale
	recorder = serve(router, "GET", "/contacts/stale?days=100", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	decode(t, recorder, &stale)
	require.Equal(t, 2, len(stale))
	assert.Equal(t, neverContacted, fmt.Sprintf("%.0f", stale[0]["id"]))
	assert.Equal(t, contactedEvenLonger, fmt.Sprintf("%.0f", stale[1]["id"]))
}

// TestHealth checks the health endpoint against a reachable database.
func TestHealth(t *testing.T) {
	router := setupRouter(t, fixedClock())
	recorder := serve(router, "GET", "/health", "")
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.JSONEq(t, `{"status": "ok"}`, recorder.Body.String())
}
