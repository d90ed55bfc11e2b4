package github

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

const prPayload = `{
	"action": "synchronize",
	"number": 7,
	"pull_request": {"head": {"sha": "abc123", "ref": "feature/eea"}},
	"repository": {"full_name": "HERMES-SOC/processing-lambda", "clone_url": "https://github.com/HERMES-SOC/processing-lambda.git"}
}`

func TestParsePullRequestEvent(t *testing.T) {
	ev, err := ParsePullRequestEvent(EventPullRequest, []byte(prPayload))
	require.NoError(t, err)
	require.Equal(t, EventPullRequest, ev.Event)
	require.Equal(t, "synchronize", ev.Action)
	require.Equal(t, 7, ev.Number)
	require.Equal(t, "abc123", ev.PullRequest.Head.SHA)
	require.Equal(t, "HERMES-SOC/processing-lambda", ev.Repository.FullName)
	require.True(t, ev.Triggering())

	owner, repo, err := ev.OwnerRepo()
	require.NoError(t, err)
	require.Equal(t, "HERMES-SOC", owner)
	require.Equal(t, "processing-lambda", repo)
}

func TestParsePullRequestEventUnsupported(t *testing.T) {
	_, err := ParsePullRequestEvent("push", []byte(prPayload))
	require.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestParsePullRequestEventMissingCloneURL(t *testing.T) {
	_, err := ParsePullRequestEvent(EventPullRequestTarget, []byte(`{"action":"opened"}`))
	require.Error(t, err)
}

func TestTriggering(t *testing.T) {
	for _, action := range []string{"opened", "synchronize", "reopened"} {
		require.True(t, PullRequestEvent{Action: action}.Triggering(), action)
	}
	for _, action := range []string{"closed", "labeled", "edited", ""} {
		require.False(t, PullRequestEvent{Action: action}.Triggering(), action)
	}
}

func TestValidateSignature(t *testing.T) {
	payload := []byte(prPayload)
	secret := []byte("hunter2")
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, ValidateSignature(payload, secret, signature))
	require.Error(t, ValidateSignature(payload, secret, ""))
	require.Error(t, ValidateSignature(payload, secret, "sha256=deadbeef"))
	require.Error(t, ValidateSignature(payload, []byte("wrong"), signature))
	require.Error(t, ValidateSignature(append(payload, 'x'), secret, signature))
}
