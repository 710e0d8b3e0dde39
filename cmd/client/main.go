package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/rolodex/internal/model"
)

// Usage example on the command line:
// > go run main.go --url=http://localhost:8080 --sizes=1000,5000 --queries=20
//
// The client measures the average duration in microseconds of the REST calls against a running
// contacts service. Besides the single contact calls it times the filtered list and the two
// reports, whose cost grows with the number of stored contacts.
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var baseURL string
	var sizes []int
	var queries int
	var seed int64
	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Measures the response times of the contacts service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &benchmark{
				baseURL: baseURL,
				http:    &http.Client{Timeout: 30 * time.Second},
				rng:     rand.New(rand.NewSource(seed)),
				out:     cmd.OutOrStdout(),
			}
			return b.run(sizes, queries)
		},
	}
	cmd.Flags().StringVar(&baseURL, "url", "http://localhost:8080", "the base URL of the contacts service")
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{1000, 5000, 10000, 50000, 100000}, "the numbers of contacts per round")
	cmd.Flags().IntVar(&queries, "queries", 20, "the number of list and report calls per round")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "the seed for the generated contacts")
	return cmd
}

// benchmark sends the requests of all rounds and prints one line of averages per round.
type benchmark struct {
	baseURL string
	http    *http.Client
	rng     *rand.Rand
	out     io.Writer
}

var firstNames = []string{"Marcus", "Gaius", "Julia", "Livia", "Octavia", "Titus", "Claudia", "Servius"}
var lastNames = []string{"Antonius", "Julius", "Cornelius", "Valerius", "Aemilius", "Fabius"}
var contactTypes = []model.ContactType{model.Personal, model.Professional, model.Family, model.Other}

func (b *benchmark) run(sizes []int, queries int) error {
	fmt.Fprintln(b.out)
	fmt.Fprintln(b.out, "  Elements      POST       PUT       GET  FILTERED  BIRTHDAY     STALE    DELETE ")
	fmt.Fprintln(b.out, "---------------------------------------------------------------------------------")
	for _, loops := range sizes {
		if loops <= 0 {
			continue
		}
		if err := b.round(loops, queries); err != nil {
			return err
		}
		fmt.Fprintln(b.out)
	}
	return nil
}

func (b *benchmark) round(loops int, queries int) error {
	fmt.Fprintf(b.out, "%10d", loops)

	// POST requests
	ids := make([]int64, 0, loops)
	var duration time.Duration
	for i := 0; i < loops; i++ {
		contact, d, err := b.create(b.randomContact())
		if err != nil {
			return err
		}
		ids = append(ids, contact.Id)
		duration += d
	}
	b.printAverage(duration, loops)

	// PUT requests
	if err := b.inRandomOrder(ids, func(id int64) (time.Duration, error) {
		body, err := json.Marshal(b.randomContact())
		if err != nil {
			return 0, err
		}
		return b.send(http.MethodPut, fmt.Sprintf("/contacts/%d", id), body, http.StatusNoContent)
	}); err != nil {
		return err
	}

	// GET requests
	if err := b.inRandomOrder(ids, func(id int64) (time.Duration, error) {
		return b.send(http.MethodGet, fmt.Sprintf("/contacts/%d", id), nil, http.StatusOK)
	}); err != nil {
		return err
	}

	// list and report requests
	for _, path := range []string{
		"/contacts?lastName=ius&type=Family",
		"/contacts/upcoming-birthdays?days=30",
		"/contacts/stale?days=90",
	} {
		if err := b.repeat(path, queries); err != nil {
			return err
		}
	}

	// DELETE requests
	return b.inRandomOrder(ids, func(id int64) (time.Duration, error) {
		return b.send(http.MethodDelete, fmt.Sprintf("/contacts/%d", id), nil, http.StatusNoContent)
	})
}

// randomContact returns a contact request with dates spread over the year, so that the reports
// find some of the contacts.
func (b *benchmark) randomContact() model.ContactRequest {
	today := model.DateOf(time.Now())
	contactType := contactTypes[b.rng.Intn(len(contactTypes))]
	birthDate := today.AddDays(-b.rng.Intn(80 * 365))
	lastContacted := today.AddDays(-b.rng.Intn(365))
	phone := fmt.Sprintf("+39 %03d %03d %03d", b.rng.Intn(1000), b.rng.Intn(1000), b.rng.Intn(1000))
	return model.ContactRequest{
		FirstName:         firstNames[b.rng.Intn(len(firstNames))],
		LastName:          lastNames[b.rng.Intn(len(lastNames))],
		PhoneNumber:       &phone,
		Type:              &contactType,
		DateOfBirth:       &birthDate,
		LastContactedDate: &lastContacted,
	}
}

func (b *benchmark) create(request model.ContactRequest) (model.Contact, time.Duration, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return model.Contact{}, 0, err
	}
	var contact model.Contact
	resBody, duration, err := b.sendRequest(http.MethodPost, "/contacts", body, http.StatusCreated)
	if err != nil {
		return contact, 0, err
	}
	if err := json.Unmarshal(resBody, &contact); err != nil {
		return contact, 0, fmt.Errorf("could not unmarshal JSON: %w", err)
	}
	return contact, duration, nil
}

func (b *benchmark) inRandomOrder(ids []int64, f func(id int64) (time.Duration, error)) error {
	shuffled := append([]int64(nil), ids...)
	b.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	var duration time.Duration
	for _, id := range shuffled {
		d, err := f(id)
		if err != nil {
			return err
		}
		duration += d
	}
	b.printAverage(duration, len(shuffled))
	return nil
}

func (b *benchmark) repeat(path string, queries int) error {
	var duration time.Duration
	for i := 0; i < queries; i++ {
		d, err := b.send(http.MethodGet, path, nil, http.StatusOK)
		if err != nil {
			return err
		}
		duration += d
	}
	b.printAverage(duration, queries)
	return nil
}

func (b *benchmark) printAverage(duration time.Duration, calls int) {
	if calls == 0 {
		fmt.Fprintf(b.out, "%10s", "-")
		return
	}
	fmt.Fprintf(b.out, "%10d", duration.Microseconds()/int64(calls))
}

func (b *benchmark) send(method string, path string, body []byte, expectedStatus int) (time.Duration, error) {
	_, duration, err := b.sendRequest(method, path, body, expectedStatus)
	return duration, err
}

func (b *benchmark) sendRequest(method string, path string, body []byte, expectedStatus int) ([]byte, time.Duration, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, b.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	before := time.Now()
	res, err := b.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("error making http request: %w", err)
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("could not read response body: %w", err)
	}
	duration := time.Since(before)
	if res.StatusCode != expectedStatus {
		return nil, 0, fmt.Errorf("%s %s answered %s: %s", method, path, res.Status, resBody)
	}
	return resBody, duration, nil
}
