// Package processor converts source-specific webhook payloads into canonical
// candidate records and scores title similarity for deduplication. It holds
// no mutable state and is safe for concurrent use.
package processor

import (
	"fmt"
	"strings"

	"github.com/portfoliokit/ingest-service/internal/ingest/domain"
)

// MaxNameLength is the hard cap on a candidate record's name.
const MaxNameLength = 50

// PushEvent is the subset of a source-control push payload the processor
// cares about.
type PushEvent struct {
	Repository Repository `json:"repository"`
	Ref        string     `json:"ref"`
}

// Repository describes the repository a push event belongs to.
type Repository struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Description     string `json:"description"`
	HTMLURL         string `json:"html_url"`
	StargazersCount int    `json:"stargazers_count"`
}

// Article is a single entry from an article-feed payload.
type Article struct {
	Title          string   `json:"title"`
	Link           string   `json:"link"`
	Categories     []string `json:"categories"`
	ContentSnippet string   `json:"contentSnippet"`
}

// ValidatePushEvent reports whether a push event has the fields required for
// processing. Used by the endpoint to short-circuit before calling
// ProcessPushEvent. Whitespace-only fields count as missing, since the name
// is trimmed before storage.
func ValidatePushEvent(ev *PushEvent) bool {
	return ev != nil &&
		strings.TrimSpace(ev.Repository.Name) != "" &&
		strings.TrimSpace(ev.Repository.HTMLURL) != ""
}

// ValidateArticle reports whether an article has the fields required for
// processing. Whitespace-only fields count as missing.
func ValidateArticle(a *Article) bool {
	return a != nil &&
		strings.TrimSpace(a.Title) != "" &&
		strings.TrimSpace(a.Link) != ""
}

// ProcessPushEvent normalizes a push event into a candidate record. Tags
// combine the fixed "github" tag with the branch name parsed out of the ref
// string; nested branch names like "feature/x" are kept whole.
func ProcessPushEvent(ev *PushEvent) (*domain.CandidateRecord, error) {
	if !ValidatePushEvent(ev) {
		return nil, fmt.Errorf("%w: push event requires repository name and url", domain.ErrValidation)
	}

	tags := []string{"github"}
	if branch, ok := strings.CutPrefix(ev.Ref, "refs/heads/"); ok && branch != "" {
		tags = append(tags, branch)
	}

	return &domain.CandidateRecord{
		Name:        TruncateName(ev.Repository.Name),
		SourceType:  string(domain.SourceGitHub),
		URL:         ev.Repository.HTMLURL,
		Description: ev.Repository.Description,
		Tags:        tags,
	}, nil
}

// ProcessArticle normalizes an article-feed entry into a candidate record.
// Category labels are lower-cased and appended to the fixed source tags.
func ProcessArticle(a *Article) (*domain.CandidateRecord, error) {
	if !ValidateArticle(a) {
		return nil, fmt.Errorf("%w: article requires title and link", domain.ErrValidation)
	}

	tags := []string{"article", string(domain.SourceMedium)}
	for _, category := range a.Categories {
		if category = strings.TrimSpace(category); category != "" {
			tags = append(tags, strings.ToLower(category))
		}
	}

	return &domain.CandidateRecord{
		Name:        TruncateName(a.Title),
		SourceType:  string(domain.SourceMedium),
		URL:         a.Link,
		Description: a.ContentSnippet,
		Tags:        tags,
	}, nil
}

// ProcessGenericItem maps a generic webhook item onto a candidate record
// with tag and kind pass-through.
func ProcessGenericItem(item *domain.WebhookItem) (*domain.CandidateRecord, error) {
	if item == nil || strings.TrimSpace(item.Title) == "" {
		return nil, fmt.Errorf("%w: item requires a title", domain.ErrValidation)
	}

	tags := append([]string{}, item.Tags...)
	if item.Kind != "" {
		tags = append(tags, item.Kind)
	}

	return &domain.CandidateRecord{
		Name:        TruncateName(item.Title),
		SourceType:  string(domain.SourceCustom),
		URL:         item.URL,
		Description: item.Description,
		Tags:        tags,
	}, nil
}

// TruncateName caps a name at MaxNameLength runes, preferring to cut at the
// last word boundary when one exists past the halfway point.
func TruncateName(name string) string {
	name = strings.TrimSpace(name)
	runes := []rune(name)
	if len(runes) <= MaxNameLength {
		return name
	}

	cut := string(runes[:MaxNameLength])
	if idx := strings.LastIndex(cut, " "); idx > MaxNameLength/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
