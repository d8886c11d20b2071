package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-inbox/core"
)

// MaxPage keeps the row offset of any accepted page within an int.
const MaxPage = math.MaxInt / core.MaxPerPage

// Listing parameter names accepted by ParseListFilter.
const (
	ParamProviderID  = "provider_id"
	ParamDirection   = "direction"
	ParamFrom        = "from"
	ParamTo          = "to"
	ParamType        = "type"
	ParamStatus      = "status"
	ParamErrorCode   = "error_code"
	ParamErrorReason = "error_reason"
	ParamCreatedAt   = "created_at"
	ParamCreatedFrom = "created_from"
	ParamCreatedTo   = "created_to"
	ParamPage        = "page"
	ParamPerPage     = "per_page"
)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseListFilter reads listing filters from query parameters. Every invalid
// parameter is reported in one validation error keyed by parameter name.
func ParseListFilter(values url.Values) (core.MessageFilter, error) {
	filter := core.MessageFilter{
		ProviderID:  strings.TrimSpace(values.Get(ParamProviderID)),
		Direction:   core.Direction(strings.TrimSpace(values.Get(ParamDirection))),
		From:        strings.TrimSpace(values.Get(ParamFrom)),
		To:          strings.TrimSpace(values.Get(ParamTo)),
		Type:        strings.TrimSpace(values.Get(ParamType)),
		Status:      core.MessageStatus(strings.TrimSpace(values.Get(ParamStatus))),
		ErrorCode:   strings.TrimSpace(values.Get(ParamErrorCode)),
		ErrorReason: strings.TrimSpace(values.Get(ParamErrorReason)),
	}
	fields := map[string][]string{}
	if filter.Direction != "" && !filter.Direction.Valid() {
		fields[ParamDirection] = append(fields[ParamDirection], "The selected direction is invalid.")
	}

	parseDate := func(name string) *time.Time {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
		fields[name] = append(fields[name], "The "+name+" is not a valid date.")
		return nil
	}
	filter.CreatedOn = parseDate(ParamCreatedAt)
	filter.CreatedFrom = parseDate(ParamCreatedFrom)
	filter.CreatedTo = parseDate(ParamCreatedTo)

	parseInt := func(name string) int {
		raw := strings.TrimSpace(values.Get(name))
		if raw == "" {
			return 0
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			fields[name] = append(fields[name], "The "+name+" must be a positive integer.")
			return 0
		}
		return parsed
	}
	filter.Page = parseInt(ParamPage)
	filter.PerPage = parseInt(ParamPerPage)
	if filter.Page > MaxPage {
		fields[ParamPage] = append(fields[ParamPage], "The page is too large.")
		filter.Page = 0
	}

	if len(fields) > 0 {
		return core.MessageFilter{}, core.NewFieldValidationError("query: invalid message filters", fields)
	}
	return filter, nil
}
