// Benchmark tool for testing Harrier against labeled claims data.
//
// Usage:
//   go run cmd/benchmark/main.go -csv /path/to/claims.csv -url http://localhost:8080
//
// This tool:
//  1. Reads claims data (with anomaly labels in an is_anomalous column)
//  2. Sends the claims to Harrier in batches for triage
//  3. Compares Harrier's routing (audit/approved) with the actual labels
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledClaim represents a row from the claims dataset.
type LabeledClaim struct {
	ClaimID       string
	MemberID      string
	ProviderID    string
	ProcedureCode string
	DiagnosisCode string
	Cost          int64
	DateOfService string
	ClaimType     string
	IsAnomalous   bool
}

// TriageResponse is the Harrier API response format.
type TriageResponse struct {
	BatchID  string `json:"batchId"`
	Received int    `json:"received"`
	Approved int    `json:"approved"`
	Audited  int    `json:"audited"`
	Claims   []struct {
		ClaimID      string `json:"claim_id"`
		AnomalyScore int    `json:"anomaly_score"`
		FinalRouting string `json:"final_routing"`
	} `json:"claims"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // Anomalous claim routed to audit
	FalsePositives int64 // Clean claim routed to audit
	TrueNegatives  int64 // Clean claim approved
	FalseNegatives int64 // Anomalous claim approved (missed!)

	TotalProcessed   int64
	TotalAnomalous   int64
	TotalClean       int64
	TotalErrors      int64
	TotalBatches     int64
	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled claims CSV file")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum claims to process (0 = all)")
	batchSize := flag.Int("batch", 50, "Claims per triage batch")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each batch result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: benchmark -csv /path/to/claims.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║          HARRIER BENCHMARK - Claims Anomaly Triage            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Harrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Batch Size:  %d\n", *batchSize)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Read labeled claims
	fmt.Printf("\nReading claims data from %s...\n", *csvPath)
	claims, err := readClaimsCSV(*csvPath, *limit)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d claims\n", len(claims))

	anomalousCount := 0
	for _, c := range claims {
		if c.IsAnomalous {
			anomalousCount++
		}
	}
	fmt.Printf("  - Anomalous: %d (%.2f%%)\n", anomalousCount, 100*float64(anomalousCount)/float64(len(claims)))
	fmt.Printf("  - Clean:     %d (%.2f%%)\n", len(claims)-anomalousCount, 100*float64(len(claims)-anomalousCount)/float64(len(claims)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(claims, *baseURL, *tenantID, *batchSize, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readClaimsCSV(path string, limit int) ([]LabeledClaim, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(col)] = i
	}

	var claims []LabeledClaim

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		cost, _ := strconv.ParseInt(record[colIndex["cost"]], 10, 64)

		c := LabeledClaim{
			ClaimID:       record[colIndex["claim_id"]],
			MemberID:      record[colIndex["member_id"]],
			ProviderID:    record[colIndex["provider_id"]],
			ProcedureCode: record[colIndex["procedure_code"]],
			DiagnosisCode: record[colIndex["diagnosis_code"]],
			Cost:          cost,
			DateOfService: record[colIndex["date_of_service"]],
			ClaimType:     record[colIndex["claim_type"]],
			IsAnomalous:   record[colIndex["is_anomalous"]] == "1",
		}

		claims = append(claims, c)

		if limit > 0 && len(claims) >= limit {
			break
		}
	}

	return claims, nil
}

func runBenchmark(claims []LabeledClaim, baseURL, tenantID string, batchSize, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel of batches
	work := make(chan []LabeledClaim, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 30 * time.Second}

			for batch := range work {
				start := time.Now()
				result, err := triageBatch(client, baseURL, tenantID, batch)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalBatches, 1)
				atomic.AddInt64(&metrics.TotalProcessed, int64(len(batch)))

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, int64(len(batch)))
					if verbose {
						fmt.Printf("ERROR: batch of %d -> %v\n", len(batch), err)
					}
					continue
				}

				// Index routing by claim ID
				routing := make(map[string]string, len(result.Claims))
				for _, rc := range result.Claims {
					routing[rc.ClaimID] = rc.FinalRouting
				}

				for _, c := range batch {
					if c.IsAnomalous {
						atomic.AddInt64(&metrics.TotalAnomalous, 1)
					} else {
						atomic.AddInt64(&metrics.TotalClean, 1)
					}

					predicted := routing[c.ClaimID] == "audit"
					actual := c.IsAnomalous

					if predicted && actual {
						atomic.AddInt64(&metrics.TruePositives, 1)
					} else if predicted && !actual {
						atomic.AddInt64(&metrics.FalsePositives, 1)
					} else if !predicted && !actual {
						atomic.AddInt64(&metrics.TrueNegatives, 1)
					} else { // !predicted && actual
						atomic.AddInt64(&metrics.FalseNegatives, 1)
					}
				}

				if verbose {
					fmt.Printf("✓ batch %s | Claims: %3d | Approved: %3d | Audited: %3d | %dms\n",
						result.BatchID[:8],
						result.Received,
						result.Approved,
						result.Audited,
						elapsed,
					)
				}
			}
		}()
	}

	// Send work in batches
	for i := 0; i < len(claims); i += batchSize {
		end := i + batchSize
		if end > len(claims) {
			end = len(claims)
		}
		work <- claims[i:end]
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func triageBatch(client *http.Client, baseURL, tenantID string, batch []LabeledClaim) (*TriageResponse, error) {
	// Build request matching Harrier's expected format
	records := make([]map[string]any, 0, len(batch))
	for _, c := range batch {
		records = append(records, map[string]any{
			"claim_id":        c.ClaimID,
			"member_id":       c.MemberID,
			"provider_id":     c.ProviderID,
			"procedure_code":  c.ProcedureCode,
			"diagnosis_code":  c.DiagnosisCode,
			"cost":            c.Cost,
			"date_of_service": c.DateOfService,
			"claim_type":      c.ClaimType,
		})
	}

	body, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/triage", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result TriageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Batches:    %d\n", m.TotalBatches)
	fmt.Printf("   Total Anomalous:  %d\n", m.TotalAnomalous)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   audit     approved")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  A  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of audited claims, how many were actual anomalies)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of anomalies, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct routing)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalAnomalous > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalAnomalous) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalAnomalous) * 100
		fmt.Printf("   Anomalies Caught:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalAnomalous, detectionRate)
		fmt.Printf("   Anomalies Missed:  %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalAnomalous, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Audits:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalBatches > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalBatches)
		cps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Batch Latency: %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:        %.2f claims/sec\n", cps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most anomalies")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some anomalies")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant anomalies being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most anomalies are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - audits are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many unnecessary audits")
	} else {
		fmt.Println("   ❌ Very low precision - mostly unnecessary audits")
	}

	fmt.Println()
}
