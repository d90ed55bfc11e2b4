package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// EventPullRequest and EventPullRequestTarget are the two trigger
	// variants the pipeline accepts. Both start runs; only the target
	// variant is allowed to comment on the pull request afterwards.
	EventPullRequest       = "pull_request"
	EventPullRequestTarget = "pull_request_target"

	// SignatureHeader carries the HMAC of the delivery body.
	SignatureHeader = "X-Hub-Signature-256"
	// EventHeader names the delivery's event type.
	EventHeader = "X-GitHub-Event"
)

// ErrUnsupportedEvent indicates a delivery that is not a pull-request event.
var ErrUnsupportedEvent = errors.New("github: unsupported event")

// PullRequestEvent is the subset of the webhook payload the pipeline needs.
type PullRequestEvent struct {
	Event  string `json:"-"`
	Action string `json:"action"`
	Number int    `json:"number"`

	PullRequest struct {
		Head struct {
			SHA string `json:"sha"`
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`

	Repository struct {
		FullName string `json:"full_name"`
		CloneURL string `json:"clone_url"`
	} `json:"repository"`
}

// Triggering reports whether the delivery's action should start a run.
func (e PullRequestEvent) Triggering() bool {
	switch e.Action {
	case "opened", "synchronize", "reopened":
		return true
	default:
		return false
	}
}

// OwnerRepo splits the repository full name.
func (e PullRequestEvent) OwnerRepo() (string, string, error) {
	parts := strings.SplitN(e.Repository.FullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("github: malformed repository name %q", e.Repository.FullName)
	}
	return parts[0], parts[1], nil
}

// ParsePullRequestEvent decodes a pull_request / pull_request_target payload.
func ParsePullRequestEvent(event string, payload []byte) (PullRequestEvent, error) {
	if event != EventPullRequest && event != EventPullRequestTarget {
		return PullRequestEvent{}, ErrUnsupportedEvent
	}
	var ev PullRequestEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return PullRequestEvent{}, fmt.Errorf("github: decode event: %w", err)
	}
	ev.Event = event
	if ev.Repository.CloneURL == "" {
		return PullRequestEvent{}, fmt.Errorf("github: event missing repository clone URL")
	}
	return ev, nil
}

// ValidateSignature checks the sha256 HMAC GitHub computes over the delivery
// body.
func ValidateSignature(payload, secret []byte, provided string) error {
	provided = strings.TrimPrefix(provided, "sha256=")
	if provided == "" {
		return errors.New("github: missing webhook signature")
	}
	hasher := hmac.New(sha256.New, secret)
	hasher.Write(payload)
	expected := hex.EncodeToString(hasher.Sum(nil))
	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return errors.New("github: invalid webhook signature")
	}
	return nil
}
