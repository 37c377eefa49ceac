package rules

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/opensource-finance/claimguard/internal/domain"
)

// General rule flags.
const (
	FlagMissingDate      = "The date of the incident was not provided."
	FlagFutureDate       = "The incident date is set in the future."
	FlagMissingPhotos    = "No photos were uploaded to substantiate the claim."
	FlagMissingDocuments = "No supporting documents (e.g., police report) were provided."
	FlagVagueDescription = "The incident description is very brief and may lack detail."
)

const generalPrefix = "General: "

const day = 24 * time.Hour

// FlagReportingDelay formats the long-delay flag.
func FlagReportingDelay(days int) string {
	return fmt.Sprintf("Claim filed %d days after the incident.", days)
}

// applyGeneral runs the rules every category shares, in fixed order.
func (e *Engine) applyGeneral(claim *domain.ClaimRecord, now time.Time) (int, []string) {
	cfg := e.cfg
	score := 0
	var flags []string
	flag := func(s string) {
		if cfg.PrefixFlags {
			s = generalPrefix + s
		}
		flags = append(flags, s)
	}

	incident := claim.IncidentDetails.IncidentDate
	if incident != nil {
		// Negative deltas belong to the future-date rule, never to a delay band.
		if days, ok := reportingDelay(claim.CreatedAt, *incident); ok {
			switch {
			case days > cfg.LongDelayDays:
				score += cfg.LongDelayScore
				flag(FlagReportingDelay(days))
			case days > cfg.ModerateDelayDays:
				score += cfg.ModerateDelayScore
			}
		}
	} else {
		score += cfg.MissingDateScore
		flag(FlagMissingDate)
	}

	if incident != nil && isFutureDated(*incident, claim.IncidentDetails.Zone(), claim.CreatedAt, now) {
		score += cfg.FutureDateScore
		flag(FlagFutureDate)
	}

	if len(claim.Evidence.Photos) == 0 {
		score += cfg.MissingPhotosScore
		flag(FlagMissingPhotos)
	}
	if len(claim.Evidence.Documents) == 0 {
		score += cfg.MissingDocumentsScore
		flag(FlagMissingDocuments)
	}

	if utf8.RuneCountInString(claim.IncidentDetails.Description) < cfg.MinDescriptionLength {
		score += cfg.VagueDescriptionScore
		flag(FlagVagueDescription)
	}

	return score, flags
}

// reportingDelay returns the whole days between incident and filing,
// truncated toward zero. ok is false when the incident follows the filing.
func reportingDelay(createdAt, incident time.Time) (int, bool) {
	if createdAt.Before(incident) {
		return 0, false
	}
	return int(createdAt.Sub(incident) / day), true
}

// latestOffset is the furthest-ahead UTC offset in use (UTC+14).
const latestOffset = 14 * time.Hour

// isFutureDated reports whether the incident is after the current time or
// after the claim's own filing time. A date-only incident is compared as a
// calendar day against the claimant's local date, so a claim filed on the
// day of the incident is never future-dated. Without a zone the most
// lenient local date on Earth is used.
func isFutureDated(incident time.Time, loc *time.Location, createdAt, now time.Time) bool {
	if isFuture(incident, loc, now) {
		return true
	}
	return !createdAt.IsZero() && isFuture(incident, loc, createdAt)
}

func isFuture(incident time.Time, loc *time.Location, ref time.Time) bool {
	if !isDateOnly(incident) {
		return incident.After(ref)
	}
	var local time.Time
	if loc != nil {
		local = ref.In(loc)
	} else {
		local = ref.UTC().Add(latestOffset)
	}
	y, m, d := local.Date()
	return incident.After(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// isDateOnly reports whether t is a bare calendar date as stored by
// ClaimRequest.ToClaim: midnight UTC.
func isDateOnly(t time.Time) bool {
	t = t.UTC()
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
