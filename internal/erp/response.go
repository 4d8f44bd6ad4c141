package erp

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// The structured decoder drops PE_FEC_ULT_SERV under some ERP locales and
// configurations. When the field comes back empty we scan the raw envelope
// for it before concluding the date is unset.
var lastServicePattern = regexp.MustCompile(`<PE_FEC_ULT_SERV[^>]*>([^<]*)</PE_FEC_ULT_SERV>`)

func parseServiceDates(resp dateLookupResponse, raw []byte) (ServiceDates, error) {
	lastService := strings.TrimSpace(resp.LastServiceDate)
	if lastService == "" {
		if m := lastServicePattern.FindSubmatch(raw); m != nil {
			lastService = strings.TrimSpace(string(m[1]))
		}
	}

	last, err := normalizeDate(lastService)
	if err != nil {
		return ServiceDates{}, fmt.Errorf("last-service date: %w", err)
	}
	invoice, err := normalizeDate(strings.TrimSpace(resp.InvoiceDate))
	if err != nil {
		return ServiceDates{}, fmt.Errorf("invoice date: %w", err)
	}
	return ServiceDates{LastService: last, Invoice: invoice}, nil
}

// normalizeDate maps the ERP unset sentinels (empty string, all-zero date)
// to nil and parses everything else as a plain date.
func normalizeDate(s string) (*time.Time, error) {
	if s == "" || s == "0000-00-00" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", s, err)
	}
	return &t, nil
}
