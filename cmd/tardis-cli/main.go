// Command tardis-cli is a small terminal client for the download service.
//
//	tardis-cli -exchange binance -symbols BTC-USDT,ETH-USDT \
//	    -start-date 2024-01-01 -end-date 2024-01-02
//	tardis-cli -job-id 123
//	tardis-cli -list-jobs -limit 20
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type client struct {
	baseURL  string
	username string
	apiToken string
	hc       *http.Client
}

type jobView struct {
	ID           int64      `json:"id"`
	Status       string     `json:"status"`
	Exchange     string     `json:"exchange"`
	Symbols      []string   `json:"symbols"`
	StartDate    string     `json:"start_date"`
	EndDate      string     `json:"end_date"`
	CreatedBy    string     `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage string     `json:"error_message"`
}

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8000", "API base URL")
		apiToken   = flag.String("api-token", "", "API token, if the service requires one")
		exchange   = flag.String("exchange", "", "exchange name (e.g. binance)")
		symbols    = flag.String("symbols", "", "comma-separated trading symbols (e.g. BTC-USDT,ETH-USDT)")
		dataTypes  = flag.String("data-types", "trades", "comma-separated data types")
		startDate  = flag.String("start-date", "", "start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "", "end date (YYYY-MM-DD)")
		outputPath = flag.String("output-path", "", "custom output path")
		jobID      = flag.Int64("job-id", 0, "show the status of a specific job")
		listJobs   = flag.Bool("list-jobs", false, "list recent jobs")
		limit      = flag.Int("limit", 20, "number of jobs to list")
	)
	flag.Parse()

	username := os.Getenv("USER")
	if username == "" {
		username = "unknown"
	}
	c := &client{
		baseURL:  strings.TrimRight(*baseURL, "/"),
		username: username,
		apiToken: *apiToken,
		hc:       &http.Client{Timeout: 30 * time.Second},
	}

	var err error
	switch {
	case *jobID > 0:
		err = c.showJob(*jobID)
	case *listJobs:
		err = c.listJobs(*limit)
	case *exchange != "" && *symbols != "" && *startDate != "" && *endDate != "":
		err = c.submit(*exchange, *symbols, *dataTypes, *startDate, *endDate, *outputPath)
	default:
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (c *client) submit(exchange, symbols, dataTypes, startDate, endDate, outputPath string) error {
	payload := map[string]any{
		"exchange":   exchange,
		"symbols":    splitList(symbols),
		"data_types": splitList(dataTypes),
		"start_date": startDate,
		"end_date":   endDate,
	}
	if outputPath != "" {
		payload["output_path"] = outputPath
	}

	var resp struct {
		JobID   int64  `json:"job_id"`
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := c.do(http.MethodPost, "/download", nil, payload, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Message)
	fmt.Println("Job ID:", resp.JobID)
	fmt.Printf("Check status with: %s -job-id %d\n", os.Args[0], resp.JobID)
	return nil
}

func (c *client) showJob(id int64) error {
	var j jobView
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil, nil, &j); err != nil {
		return err
	}

	fmt.Printf("Job %d - %s\n", j.ID, strings.ToUpper(j.Status))
	fmt.Println("Exchange:", j.Exchange)
	fmt.Println("Symbols:", strings.Join(j.Symbols, ", "))
	fmt.Printf("Date range: %s to %s\n", j.StartDate, j.EndDate)
	fmt.Println("Created:", j.CreatedAt.Format(time.RFC3339), "by", j.CreatedBy)
	if j.StartedAt != nil {
		fmt.Println("Started:", j.StartedAt.Format(time.RFC3339))
	}
	if j.CompletedAt != nil {
		fmt.Println("Completed:", j.CompletedAt.Format(time.RFC3339))
	}
	if j.ErrorMessage != "" {
		fmt.Println("Error:", j.ErrorMessage)
	}
	return nil
}

func (c *client) listJobs(limit int) error {
	var resp struct {
		Jobs  []jobView `json:"jobs"`
		Total int       `json:"total"`
	}
	query := url.Values{"limit": {fmt.Sprint(limit)}}
	if err := c.do(http.MethodGet, "/jobs", query, nil, &resp); err != nil {
		return err
	}

	if len(resp.Jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	fmt.Printf("Recent jobs (%d):\n", resp.Total)
	for _, j := range resp.Jobs {
		symbols := strings.Join(j.Symbols, ", ")
		if len(j.Symbols) > 2 {
			symbols = fmt.Sprintf("%s (+%d more)", strings.Join(j.Symbols[:2], ", "), len(j.Symbols)-2)
		}
		fmt.Printf("  %d | %-9s | %s | %s | by %s\n", j.ID, j.Status, j.Exchange, symbols, j.CreatedBy)
	}
	return nil
}

func (c *client) do(method, path string, query url.Values, payload, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("X-Username", c.username)
	if c.apiToken != "" {
		req.Header.Set("X-API-Token", c.apiToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
