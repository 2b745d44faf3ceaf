package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := marshalJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// unmarshalJSON unmarshals JSON to a struct
func unmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submissionOutcome is the classified result of a single contact post.
type submissionOutcome struct {
	result     string
	operatorID *int64
}

// submitContacts submits contacts concurrently using worker pools and
// records which operator each assigned contact landed on.
func submitContacts(ctx context.Context, config *Config, submissions []Submission, stats *Stats) (map[int64]int, error) {
	log.Printf("📤 Submitting %d contacts with %d workers...", len(submissions), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/contacts"

	// Counters for statistics
	var (
		assigned   int64
		unassigned int64
		transient  int64
		failed     int64
		submitted  int64
	)

	// Per-operator assignment tally, guarded by its own mutex.
	assignedByOperator := make(map[int64]int)
	var tallyMu sync.Mutex

	// Progress reporting; lastReport holds unix nanos and is shared by all
	// workers, the CAS lets exactly one of them win each interval.
	var lastReport atomic.Int64
	reportInterval := 1 * time.Second

	// Create worker pool
	submissionChan := make(chan Submission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for submission := range submissionChan {
				select {
				case <-ctx.Done():
					return
				default:
					outcome := submitSingleContact(ctx, client, url, submission)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch outcome.result {
					case "assigned":
						atomic.AddInt64(&assigned, 1)
						if outcome.operatorID != nil {
							tallyMu.Lock()
							assignedByOperator[*outcome.operatorID]++
							tallyMu.Unlock()
						}
					case "unassigned":
						atomic.AddInt64(&unassigned, 1)
					case "transient":
						atomic.AddInt64(&transient, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					// Progress reporting
					if prev := lastReport.Load(); time.Now().UnixNano()-prev >= int64(reportInterval) &&
						lastReport.CompareAndSwap(prev, time.Now().UnixNano()) {
						total := atomic.LoadInt64(&submitted)
						asg := atomic.LoadInt64(&assigned)
						un := atomic.LoadInt64(&unassigned)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("📊 Progress: %d/%d submitted (assigned: %d, unassigned: %d, failed: %d)",
								total, len(submissions), asg, un, fail)
						} else {
							fmt.Printf("\r📤 Submitted: %d/%d (assigned: %d, unassigned: %d, failed: %d)",
								total, len(submissions), asg, un, fail)
						}
					}
				}
			}
		}(i)
	}

	// Send submissions to workers
	go func() {
		defer close(submissionChan)
		for _, submission := range submissions {
			select {
			case <-ctx.Done():
				return
			case submissionChan <- submission:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.ContactsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.ContactsAssigned = int(atomic.LoadInt64(&assigned))
	stats.ContactsUnassigned = int(atomic.LoadInt64(&unassigned))
	stats.ContactsTransient = int(atomic.LoadInt64(&transient))
	stats.ContactsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Contact submission completed:
   Assigned: %d
   Unassigned: %d
   Transient: %d
   Failed: %d
`, stats.ContactsAssigned, stats.ContactsUnassigned, stats.ContactsTransient, stats.ContactsFailed)

	return assignedByOperator, nil
}

// submitSingleContact submits a single contact and classifies the result
func submitSingleContact(ctx context.Context, client *HTTPClient, url string, submission Submission) submissionOutcome {
	resp, err := client.Post(ctx, url, submission)
	if err != nil {
		return submissionOutcome{result: "failed"}
	}

	// Read response body
	body, err := readResponseBody(resp)
	if err != nil {
		return submissionOutcome{result: "failed"}
	}

	// Parse response based on status code
	switch resp.StatusCode {
	case StatusOK:
		var result AssignmentResponse
		if err := unmarshalJSON(body, &result); err != nil {
			return submissionOutcome{result: "failed"}
		}
		if result.Assigned {
			return submissionOutcome{result: "assigned", operatorID: result.OperatorID}
		}
		return submissionOutcome{result: "unassigned"}
	case StatusServiceUnavailable:
		// Retry budget exhausted under contention
		return submissionOutcome{result: "transient"}
	default:
		// Error
		return submissionOutcome{result: "failed"}
	}
}
