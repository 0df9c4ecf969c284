package main

import (
	"bytes"
	"testing"

	"github.com/ea-integrations/process-sync/internal/bootstrap"
	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobArg(t *testing.T) {
	single := &bootstrap.App{Jobs: []domain.Job{{Name: "default", RootProcessID: "root"}}}
	several := &bootstrap.App{Jobs: []domain.Job{{Name: "a"}, {Name: "b"}}}

	job, err := jobArg(single, nil)
	require.NoError(t, err)
	assert.Equal(t, "default", job.Name)

	_, err = jobArg(several, nil)
	assert.Error(t, err)

	job, err = jobArg(several, []string{"b"})
	require.NoError(t, err)
	assert.Equal(t, "b", job.Name)

	_, err = jobArg(several, []string{"c"})
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestListJobs(t *testing.T) {
	app := &bootstrap.App{Jobs: []domain.Job{
		{Name: "processworld", RootProcessID: "root-1", MaxDepth: 4, Schedule: "@daily"},
		{Name: "finance", RootProcessID: "fin-1", MaxDepth: 2, AttachLinks: true},
	}}

	var buf bytes.Buffer
	require.NoError(t, ListJobs(app, &buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "SCHEDULE")
	assert.Regexp(t, `^processworld\s+root-1\s+4\s+false\s+@daily$`, string(lines[1]))
	assert.Regexp(t, `^finance\s+fin-1\s+2\s+true\s+-$`, string(lines[2]))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &domain.RunSummary{RunID: "r1", Job: "default", Status: domain.RunStatusFailed, Error: "boom"})
	assert.Contains(t, buf.String(), "status=failed")
	assert.Contains(t, buf.String(), "error: boom")
}
