// Package model defines shared data structures for the discovery service.
package model

import "time"

// Posting is a single item scraped from a listing page, before matching.
type Posting struct {
	Title string `json:"title"`
	Link  string `json:"link"` // source-relative path, e.g. "/project/logo-123"
}

// Listing is a posting that matched a subscriber's keywords and was recorded
// on their behalf. (Link, OwnerID) is unique.
type Listing struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	OwnerID      string    `json:"ownerId"`
	DiscoveredAt time.Time `json:"discoveredAt"` // UTC, set at persistence time
}

// Subscriber mirrors the users row relevant to discovery.
type Subscriber struct {
	ID           string
	Username     string
	Keywords     []string
	ChatID       string // Telegram chat id; empty until the user links the bot
	IsSubscriber bool   // eligibility flag gating the worker
}

// Job is everything a discovery loop needs to run on behalf of one subscriber.
type Job struct {
	Pages    int
	Keywords []string
	Token    string // Telegram bot token
	ChatID   string
	OwnerID  string
}

// CycleStats summarises one discovery cycle.
type CycleStats struct {
	CycleID     string        `json:"cycleId"`
	Pages       int           `json:"pages"`
	Scanned     int           `json:"scanned"`
	Matched     int           `json:"matched"`
	Duplicates  int           `json:"duplicates"`
	Recorded    int           `json:"recorded"`
	Notified    int           `json:"notified"`
	NotifyFails int           `json:"notifyFailures"`
	StoreErrors int           `json:"storeErrors"`
	Duration    time.Duration `json:"duration"`
}
