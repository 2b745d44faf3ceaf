package loadtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/dispatch/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete routing load test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting dispatch load test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("operators", config.NumOperators),
		logger.Int("sources", config.NumSources),
		logger.Int("contacts", config.NumContacts),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate and seed the topology
	topo := generateTopology(ctx, config)
	if err := seedTopology(ctx, config, topo, stats); err != nil {
		return fmt.Errorf("topology seeding failed: %w", err)
	}

	// Step 3: Generate contact submissions
	submissions := generateSubmissions(ctx, config, topo, stats)

	// Step 4: Submit contacts concurrently
	assignedByOperator, err := submitContacts(ctx, config, submissions, stats)
	if err != nil {
		return fmt.Errorf("contact submission failed: %w", err)
	}

	// Step 5: Let the service settle before reading state back
	logger.Get().Info(ctx, "waiting for the service to settle")
	time.Sleep(SettleDelay)

	// Step 6: Read service state back
	serviceStats, err := fetchServiceStats(ctx, config)
	if err != nil {
		return fmt.Errorf("stats retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(ctx, config, topo, assignedByOperator, serviceStats, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save submissions to file
	if err := saveSubmissionsToFile(ctx, config, submissions); err != nil {
		logger.Get().Warn(ctx, "failed to save submissions to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "load test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// seedTopology creates the operators, sources and edges through the
// administrative API and records the server-assigned identifiers.
func seedTopology(ctx context.Context, config *Config, topo *Topology, stats *Stats) error {
	logger.Get().Info(ctx, "seeding topology")

	client := newHTTPClient(config.Timeout)

	// Operators
	for _, spec := range topo.Operators {
		var created struct {
			ID int64 `json:"id"`
		}
		if err := postJSON(ctx, client, config.BaseURL+"/operators", spec, &created); err != nil {
			return fmt.Errorf("failed to create operator %q: %w", spec.Name, err)
		}
		topo.OperatorIDs = append(topo.OperatorIDs, created.ID)
		topo.CapacityByOperator[created.ID] = spec.MaxActiveLeads
		topo.ActiveByOperator[created.ID] = spec.Active
	}
	stats.OperatorsCreated = len(topo.OperatorIDs)

	// Sources
	for i := 0; i < config.NumSources; i++ {
		var created struct {
			ID int64 `json:"id"`
		}
		payload := map[string]string{"name": "source_" + strconv.Itoa(i)}
		if err := postJSON(ctx, client, config.BaseURL+"/sources", payload, &created); err != nil {
			return fmt.Errorf("failed to create source %d: %w", i, err)
		}
		topo.SourceIDs = append(topo.SourceIDs, created.ID)
	}
	stats.SourcesCreated = len(topo.SourceIDs)

	// Edges
	for _, edge := range topo.Edges {
		payload := map[string]interface{}{
			"operator_id": topo.OperatorIDs[edge.OperatorIndex],
			"weight":      edge.Weight,
		}
		url := config.BaseURL + "/sources/" + strconv.FormatInt(topo.SourceIDs[edge.SourceIndex], 10) + "/operators"
		if err := postJSON(ctx, client, url, payload, nil); err != nil {
			return fmt.Errorf("failed to attach operator to source: %w", err)
		}
		stats.EdgesCreated++
	}

	logger.Get().Info(ctx, "topology seeded",
		logger.Int("operators", stats.OperatorsCreated),
		logger.Int("sources", stats.SourcesCreated),
		logger.Int("edges", stats.EdgesCreated))
	return nil
}

// postJSON posts a payload and decodes a 200 response into out when non-nil.
func postJSON(ctx context.Context, client *HTTPClient, url string, payload, out interface{}) error {
	resp, err := client.Post(ctx, url, payload)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	return unmarshalJSON(body, out)
}

// serviceStats is the subset of the /stats payload the verifier consumes.
type serviceStats struct {
	TotalContacts int `json:"total_contacts"`
	Assigned      int `json:"assigned"`
	Unassigned    int `json:"unassigned"`
}

// fetchServiceStats reads contact totals back from the service.
func fetchServiceStats(ctx context.Context, config *Config) (*serviceStats, error) {
	client := newHTTPClient(config.Timeout)

	resp, err := client.Get(ctx, config.BaseURL+"/stats")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stats: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("stats request failed with status: %d", resp.StatusCode)
	}

	var stats serviceStats
	if err := unmarshalJSON(body, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats response: %w", err)
	}
	return &stats, nil
}

// saveSubmissionsToFile saves the generated submissions to a JSON file.
func saveSubmissionsToFile(ctx context.Context, config *Config, submissions []Submission) error {
	if len(submissions) == 0 {
		return fmt.Errorf("no submissions to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "submissions_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Write submissions to file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, submission := range submissions {
		jsonData, err := marshalJSON(submission)
		if err != nil {
			return fmt.Errorf("failed to marshal submission %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write submission %d: %w", i, err)
		}

		// Add comma except for last submission
		if i < len(submissions)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "submissions saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, contactsPerSecond float64

	if stats.ContactsSubmitted > 0 {
		successRate = float64(stats.ContactsAssigned+stats.ContactsUnassigned) / float64(stats.ContactsSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		contactsPerSecond = float64(stats.ContactsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("operatorsCreated", stats.OperatorsCreated),
		logger.Int("sourcesCreated", stats.SourcesCreated),
		logger.Int("edgesCreated", stats.EdgesCreated),
		logger.Int("contactsGenerated", stats.ContactsGenerated),
		logger.Int("contactsSubmitted", stats.ContactsSubmitted),
		logger.Int("contactsAssigned", stats.ContactsAssigned),
		logger.Int("contactsUnassigned", stats.ContactsUnassigned),
		logger.Int("contactsTransient", stats.ContactsTransient),
		logger.Int("contactsFailed", stats.ContactsFailed),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("contactsPerSecond", contactsPerSecond))
}
