package models

import "errors"

// ErrorDisallowedByRobots is the error value surfaced to callers when
// robots.txt denies access to the product page.
const ErrorDisallowedByRobots = "disallowed_by_robots"

var (
	ErrDisallowedByRobots = errors.New(ErrorDisallowedByRobots)

	ErrInvalidURL = errors.New("invalid product url")

	ErrFetchFailed = errors.New("fetch failed")

	// ErrBotChallenge is returned when the page is an anti-bot interstitial.
	ErrBotChallenge = errors.New("bot challenge detected")

	ErrNotFound = errors.New("not found")

	ErrPersistence = errors.New("persistence failed")

	ErrCrawlTimeout = errors.New("crawl job did not finish in time")

	ErrCrawlFailed = errors.New("crawl job failed")
)
