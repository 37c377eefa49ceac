package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

var levels = []domain.RiskLevel{domain.RiskGreen, domain.RiskYellow, domain.RiskRed}

// Matrix counts expected against predicted risk levels.
type Matrix struct {
	mu     sync.Mutex
	counts map[domain.RiskLevel]map[domain.RiskLevel]int

	Errors           int64
	ProcessingTimeMs int64
}

// NewMatrix returns an empty confusion matrix.
func NewMatrix() *Matrix {
	counts := make(map[domain.RiskLevel]map[domain.RiskLevel]int, len(levels))
	for _, l := range levels {
		counts[l] = make(map[domain.RiskLevel]int, len(levels))
	}
	return &Matrix{counts: counts}
}

// Add records one scored case.
func (m *Matrix) Add(expected, predicted domain.RiskLevel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.counts[expected]; ok {
		row[predicted]++
	}
}

// Count returns the cell for expected/predicted.
func (m *Matrix) Count(expected, predicted domain.RiskLevel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[expected][predicted]
}

// Total is the number of scored cases.
func (m *Matrix) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, row := range m.counts {
		for _, n := range row {
			total += n
		}
	}
	return total
}

// Accuracy is the share of cases on the diagonal.
func (m *Matrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	correct := 0
	for _, l := range levels {
		correct += m.Count(l, l)
	}
	return float64(correct) / float64(total)
}

// Recall is the share of expected level cases predicted as that level.
func (m *Matrix) Recall(level domain.RiskLevel) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	row := 0
	for _, n := range m.counts[level] {
		row += n
	}
	if row == 0 {
		return 0
	}
	return float64(m.counts[level][level]) / float64(row)
}

// Precision is the share of level predictions that were expected at that level.
func (m *Matrix) Precision(level domain.RiskLevel) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := 0
	for _, row := range m.counts {
		col += row[level]
	}
	if col == 0 {
		return 0
	}
	return float64(m.counts[level][level]) / float64(col)
}

// run scores every case with a pool of workers.
func run(ctx context.Context, cases []Case, scorer Scorer, numWorkers int, verbose io.Writer) *Matrix {
	if numWorkers < 1 {
		numWorkers = 1
	}
	m := NewMatrix()

	work := make(chan Case, 100)
	var wg sync.WaitGroup
	var out sync.Mutex

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				start := time.Now()
				predicted, err := scorer.Score(ctx, c)
				atomic.AddInt64(&m.ProcessingTimeMs, time.Since(start).Milliseconds())

				if err != nil {
					atomic.AddInt64(&m.Errors, 1)
					if verbose != nil {
						out.Lock()
						fmt.Fprintf(verbose, "ERROR line %d: %v\n", c.Line, err)
						out.Unlock()
					}
					continue
				}
				m.Add(c.Expected, predicted)

				if verbose != nil {
					mark := "ok  "
					if predicted != c.Expected {
						mark = "MISS"
					}
					out.Lock()
					fmt.Fprintf(verbose, "%s line %-4d | %-30s | expected %-6s | got %-6s\n",
						mark, c.Line, c.Request.ClaimType, c.Expected, predicted)
					out.Unlock()
				}
			}
		}()
	}

	for _, c := range cases {
		work <- c
	}
	close(work)
	wg.Wait()

	return m
}

func printResults(w io.Writer, m *Matrix, duration time.Duration) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "RESULTS")
	fmt.Fprintf(w, "   Scored:  %d\n", m.Total())
	fmt.Fprintf(w, "   Errors:  %d\n", m.Errors)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "CONFUSION MATRIX (rows: expected, columns: predicted)")
	fmt.Fprintf(w, "   %-8s", "")
	for _, p := range levels {
		fmt.Fprintf(w, " %8s", p)
	}
	fmt.Fprintln(w)
	for _, e := range levels {
		fmt.Fprintf(w, "   %-8s", e)
		for _, p := range levels {
			fmt.Fprintf(w, " %8d", m.Count(e, p))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "PER LEVEL")
	for _, l := range levels {
		fmt.Fprintf(w, "   %-8s precision %.4f  recall %.4f\n", l, m.Precision(l), m.Recall(l))
	}
	fmt.Fprintf(w, "\n   Accuracy: %.4f\n", m.Accuracy())

	fmt.Fprintln(w)
	fmt.Fprintf(w, "   Duration: %v\n", duration.Round(time.Millisecond))
	if processed := int64(m.Total()) + m.Errors; processed > 0 {
		fmt.Fprintf(w, "   Avg Latency: %.2f ms\n", float64(m.ProcessingTimeMs)/float64(processed))
	}
	fmt.Fprintln(w)
}
