package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigalert/discovery-service/internal/config"
	"gigalert/discovery-service/internal/logger"
	"gigalert/discovery-service/internal/model"
	"gigalert/discovery-service/internal/subscriber"
)

func testApp(token string) *app {
	return &app{
		cfg: &config.Config{Pages: 10, TelegramToken: token, ListingBaseURL: "https://example.com"},
		log: logger.NewNop(),
	}
}

func TestScanJob_FlagsSkipDirectory(t *testing.T) {
	job, err := scanJob(context.Background(), testApp("t"), scanOptions{
		owner:    "7",
		keywords: []string{"logo"},
		chatID:   "42",
		pages:    3,
	})
	require.NoError(t, err)
	assert.Equal(t, model.Job{Pages: 3, Keywords: []string{"logo"}, Token: "t", ChatID: "42", OwnerID: "7"}, job)
}

func TestScanJob_UnknownOwnerWithoutDatabase(t *testing.T) {
	_, err := scanJob(context.Background(), testApp("t"), scanOptions{owner: "7"})
	require.ErrorIs(t, err, subscriber.ErrSubscriberNotFound)
}

func TestScanJob_TokenRequiredUnlessDryRun(t *testing.T) {
	opts := scanOptions{owner: "7", keywords: []string{"logo"}, chatID: "42"}
	_, err := scanJob(context.Background(), testApp(""), opts)
	require.Error(t, err)

	opts.dryRun = true
	opts.chatID = ""
	job, err := scanJob(context.Background(), testApp(""), opts)
	require.NoError(t, err)
	assert.Equal(t, 10, job.Pages)
}

func TestPrintNotifier(t *testing.T) {
	var buf bytes.Buffer
	p := &printNotifier{out: &buf, baseURL: "https://example.com"}

	require.NoError(t, p.NotifyListing(context.Background(), "", "", model.Listing{Title: "Need a logo", Link: "/p/1"}))
	assert.Contains(t, buf.String(), "Need a logo")
	assert.Contains(t, buf.String(), "https://example.com/p/1")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "purge", "migrate", "scan"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
