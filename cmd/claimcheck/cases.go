package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// Case is one labelled claim from the input CSV.
type Case struct {
	Line     int
	Request  domain.ClaimRequest
	Expected domain.RiskLevel
}

var columns = []string{"category", "description", "incident_days_ago", "photos", "documents", "expected_level"}

// readCases parses the labelled CSV. incident_days_ago may be empty to
// leave the incident date out. Malformed rows are reported, not skipped.
func readCases(r io.Reader, now time.Time) ([]Case, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range columns {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var cases []Case
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		c, err := parseCase(record, colIndex, now)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c.Line = line
		cases = append(cases, c)
	}

	return cases, nil
}

func parseCase(record []string, colIndex map[string]int, now time.Time) (Case, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[colIndex[name]])
	}

	expected, err := parseLevel(field("expected_level"))
	if err != nil {
		return Case{}, err
	}
	photos, err := parseCount(field("photos"), "photos")
	if err != nil {
		return Case{}, err
	}
	documents, err := parseCount(field("documents"), "documents")
	if err != nil {
		return Case{}, err
	}

	req := domain.ClaimRequest{
		ClaimType:   field("category"),
		Description: field("description"),
		Location:    "claimcheck",
		Photos:      attachments("photo", ".jpg", photos),
		Documents:   attachments("document", ".pdf", documents),
	}
	if days := field("incident_days_ago"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil {
			return Case{}, fmt.Errorf("incident_days_ago %q is not a number", days)
		}
		req.IncidentDate = now.AddDate(0, 0, -n).UTC().Format(time.DateOnly)
	}

	return Case{Request: req, Expected: expected}, nil
}

func parseLevel(s string) (domain.RiskLevel, error) {
	for _, level := range []domain.RiskLevel{domain.RiskGreen, domain.RiskYellow, domain.RiskRed} {
		if strings.EqualFold(s, string(level)) {
			return level, nil
		}
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

func parseCount(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s %q is not a count", name, s)
	}
	return n, nil
}

func attachments(prefix, ext string, n int) []domain.Attachment {
	out := make([]domain.Attachment, n)
	for i := range out {
		name := fmt.Sprintf("%s-%d%s", prefix, i+1, ext)
		out[i] = domain.Attachment{Name: name, URL: "claimcheck://" + name}
	}
	return out
}
