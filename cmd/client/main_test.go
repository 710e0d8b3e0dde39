package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/dirk.krummacker/rolodex/internal/model"
)

// fakeService answers like the contacts service and counts the requests per route.
type fakeService struct {
	mu     sync.Mutex
	nextId int64
	calls  map[string]int
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	route := r.Method + " " + r.URL.Path
	if strings.HasPrefix(r.URL.Path, "/contacts/") && r.URL.Path[len("/contacts/")] >= '0' && r.URL.Path[len("/contacts/")] <= '9' {
		route = r.Method + " /contacts/:id"
	}
	f.calls[route]++
	switch route {
	case "POST /contacts":
		var request model.ContactRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil || request.FirstName == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.nextId++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": %d, "firstName": %q, "lastName": %q}`, f.nextId, request.FirstName, request.LastName)
	case "PUT /contacts/:id", "DELETE /contacts/:id":
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Write([]byte("[]"))
	}
}

func TestBenchmarkRound(t *testing.T) {
	fake := &fakeService{calls: map[string]int{}}
	server := httptest.NewServer(fake)
	defer server.Close()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--url", server.URL, "--sizes", "3,2", "--queries", "4", "--seed", "1"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, 5, fake.calls["POST /contacts"])
	assert.Equal(t, 5, fake.calls["PUT /contacts/:id"])
	assert.Equal(t, 5, fake.calls["GET /contacts/:id"])
	assert.Equal(t, 5, fake.calls["DELETE /contacts/:id"])
	assert.Equal(t, 8, fake.calls["GET /contacts"])
	assert.Equal(t, 8, fake.calls["GET /contacts/upcoming-birthdays"])
	assert.Equal(t, 8, fake.calls["GET /contacts/stale"])
	assert.Contains(t, out.String(), "BIRTHDAY")
	assert.Contains(t, out.String(), "\n         3")
	assert.Contains(t, out.String(), "\n         2")
}

// TestBenchmarkUnexpectedStatus expects the run to stop when the service answers with an error.
func TestBenchmarkUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--url", server.URL, "--sizes", "1"})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "500")
}

func TestRandomContact(t *testing.T) {
	b := &benchmark{rng: rand.New(rand.NewSource(1))}
	today := model.DateOf(time.Now())
	for i := 0; i < 100; i++ {
		contact := b.randomContact()
		assert.NotEmpty(t, contact.FirstName)
		assert.NotEmpty(t, contact.LastName)
		require.NotNil(t, contact.DateOfBirth)
		require.NotNil(t, contact.LastContactedDate)
		assert.False(t, contact.DateOfBirth.After(today))
		assert.False(t, contact.LastContactedDate.After(today))
	}
}
