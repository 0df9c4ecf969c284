package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDefaults = domain.Job{
	Name:          DefaultJobName,
	RootProcessID: "env-root",
	RootDiagramID: "env-diagram",
	MaxDepth:      4,
	Schedule:      "0 0 2 * * *",
}

func TestParseJobs(t *testing.T) {
	t.Setenv("PLAN_ROOT", "root-from-env")

	src := []byte(`
job "processworld" {
  root_process_id = env.PLAN_ROOT
  max_depth       = 3
  attach_links    = true
}

job "finance" {
  root_process_id = "fin-1"
  root_diagram_id = "fin-diagram"
  schedule        = ""
}
`)

	jobs, err := ParseJobs(src, "jobs.hcl", testDefaults)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, domain.Job{
		Name:          "processworld",
		RootProcessID: "root-from-env",
		RootDiagramID: "env-diagram",
		MaxDepth:      3,
		AttachLinks:   true,
		Schedule:      "0 0 2 * * *",
	}, jobs[0])

	assert.Equal(t, domain.Job{
		Name:          "finance",
		RootProcessID: "fin-1",
		RootDiagramID: "fin-diagram",
		MaxDepth:      4,
	}, jobs[1])
}

func TestParseJobs_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "syntax", src: `job "a" {`, want: "failed to parse"},
		{name: "missing root", src: `job "a" { max_depth = 2 }`, want: "failed to decode"},
		{name: "empty root", src: `job "a" { root_process_id = "  " }`, want: "root_process_id is required"},
		{name: "unknown attribute", src: `job "a" {
  root_process_id = "r"
  depth = 2
}`, want: "failed to decode"},
		{name: "duplicate", src: `
job "a" { root_process_id = "r" }
job "a" { root_process_id = "s" }
`, want: "defined twice"},
		{name: "depth", src: `job "a" {
  root_process_id = "r"
  max_depth = 0
}`, want: "max_depth must be positive"},
		{name: "no jobs", src: ``, want: "defines no job"},
		{name: "unknown env", src: `job "a" { root_process_id = env.PROCESS_SYNC_TEST_UNSET_VAR }`, want: "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJobs([]byte(tt.src), "jobs.hcl", testDefaults)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfigJobs(t *testing.T) {
	cfg := &Config{
		Celonis: CelonisConfig{RootProcessID: "root-1", RootDiagramID: "diag-1"},
		Sync:    SyncConfig{MaxDepth: 5, AttachLinks: true, Schedule: "@daily"},
	}

	t.Run("default job without a file", func(t *testing.T) {
		jobs, err := cfg.Jobs()
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, domain.Job{
			Name:          DefaultJobName,
			RootProcessID: "root-1",
			RootDiagramID: "diag-1",
			MaxDepth:      5,
			AttachLinks:   true,
			Schedule:      "@daily",
		}, jobs[0])
	})

	t.Run("jobs file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jobs.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`job "sales" { root_process_id = "sales-1" }`), 0o600))

		c := *cfg
		c.Sync.JobsFile = path
		jobs, err := c.Jobs()
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "sales", jobs[0].Name)
		assert.Equal(t, "sales-1", jobs[0].RootProcessID)
		assert.Equal(t, 5, jobs[0].MaxDepth)
		assert.True(t, jobs[0].AttachLinks)
	})

	t.Run("missing file", func(t *testing.T) {
		c := *cfg
		c.Sync.JobsFile = filepath.Join(t.TempDir(), "missing.hcl")
		_, err := c.Jobs()
		assert.ErrorContains(t, err, "failed to read jobs file")
	})
}

func TestFindJob(t *testing.T) {
	jobs := []domain.Job{{Name: "a"}, {Name: "b"}}

	job, err := FindJob(jobs, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", job.Name)

	_, err = FindJob(jobs, "c")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestParseYAMLJobs(t *testing.T) {
	t.Setenv("PLAN_ROOT", "root-from-env")

	src := []byte(`
jobs:
  - name: processworld
    root_process_id: ${PLAN_ROOT}
    max_depth: 3
  - name: finance
    root_process_id: fin-1
    attach_links: true
    schedule: "@weekly"
`)
	jobs, err := ParseYAMLJobs(src, "jobs.yaml", testDefaults)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "root-from-env", jobs[0].RootProcessID)
	assert.Equal(t, 3, jobs[0].MaxDepth)
	assert.Equal(t, "env-diagram", jobs[0].RootDiagramID)
	assert.Equal(t, "0 0 2 * * *", jobs[0].Schedule)

	assert.Equal(t, 4, jobs[1].MaxDepth)
	assert.True(t, jobs[1].AttachLinks)
	assert.Equal(t, "@weekly", jobs[1].Schedule)

	t.Run("unknown field", func(t *testing.T) {
		_, err := ParseYAMLJobs([]byte("jobs:\n  - name: a\n    root_process_id: r\n    depth: 2\n"), "jobs.yaml", testDefaults)
		assert.ErrorContains(t, err, "failed to decode")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := ParseYAMLJobs(nil, "jobs.yaml", testDefaults)
		assert.ErrorContains(t, err, "defines no job")
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := ParseYAMLJobs([]byte("jobs:\n  - root_process_id: r\n"), "jobs.yaml", testDefaults)
		assert.ErrorContains(t, err, "without a name")
	})
}

func TestConfigJobs_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs:\n  - name: sales\n    root_process_id: sales-1\n"), 0o600))

	cfg := &Config{Sync: SyncConfig{MaxDepth: 2, JobsFile: path}}
	jobs, err := cfg.Jobs()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "sales", jobs[0].Name)
	assert.Equal(t, 2, jobs[0].MaxDepth)
}
