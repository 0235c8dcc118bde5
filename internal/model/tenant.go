// Package model defines the entities read and produced by the scoring engine.
package model

import "time"

// DateLayout is the canonical run-date format used for natural keys.
const DateLayout = "2006-01-02"

// Tenant is an independently scheduled customer account.
type Tenant struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Active bool   `json:"active" yaml:"active"`
}

// PublishingAccount is a content-publishing account owned by a tenant.
type PublishingAccount struct {
	ID          string `json:"id" yaml:"id"`
	TenantID    string `json:"tenant_id" yaml:"tenant_id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Active      bool   `json:"active" yaml:"active"`
}

// PublishedContent is one piece of content an account published for a keyword.
type PublishedContent struct {
	ID          string    `json:"id" yaml:"id"`
	AccountID   string    `json:"account_id" yaml:"account_id"`
	KeywordID   string    `json:"keyword_id" yaml:"keyword_id"`
	TenantID    string    `json:"tenant_id" yaml:"tenant_id"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	Status      string    `json:"status" yaml:"status"`
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD run date.
func ParseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
