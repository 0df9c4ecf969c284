package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ea-integrations/process-sync/internal/process_sync/domain"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// DefaultJobName names the job derived from the environment when no job
// file is configured.
const DefaultJobName = "default"

type jobsFile struct {
	Jobs []*jobBlock `hcl:"job,block" yaml:"jobs"`
}

type jobBlock struct {
	Name          string  `hcl:"name,label" yaml:"name"`
	RootProcessID string  `hcl:"root_process_id" yaml:"root_process_id"`
	RootDiagramID *string `hcl:"root_diagram_id,optional" yaml:"root_diagram_id"`
	MaxDepth      *int    `hcl:"max_depth,optional" yaml:"max_depth"`
	Schedule      *string `hcl:"schedule,optional" yaml:"schedule"`
	AttachLinks   *bool   `hcl:"attach_links,optional" yaml:"attach_links"`
}

// DefaultJob is the job described by the environment alone.
func (c *Config) DefaultJob() domain.Job {
	return domain.Job{
		Name:          DefaultJobName,
		RootProcessID: c.Celonis.RootProcessID,
		RootDiagramID: c.Celonis.RootDiagramID,
		MaxDepth:      c.Sync.MaxDepth,
		AttachLinks:   c.Sync.AttachLinks,
		Schedule:      c.Sync.Schedule,
	}
}

// Jobs returns the configured jobs: the entries of SYNC_JOBS_FILE, or the
// single default job. Files ending in .yaml or .yml are read as YAML,
// anything else as HCL.
func (c *Config) Jobs() ([]domain.Job, error) {
	if c.Sync.JobsFile == "" {
		return []domain.Job{c.DefaultJob()}, nil
	}
	src, err := os.ReadFile(c.Sync.JobsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(c.Sync.JobsFile)) {
	case ".yaml", ".yml":
		return ParseYAMLJobs(src, c.Sync.JobsFile, c.DefaultJob())
	default:
		return ParseJobs(src, c.Sync.JobsFile, c.DefaultJob())
	}
}

// ParseJobs decodes job blocks from HCL source. Expressions can read the
// process environment through env, e.g. env.ROOT_PROCESS_ID. Attributes a
// block leaves out are taken from defaults.
func ParseJobs(src []byte, filename string, defaults domain.Job) ([]domain.Job, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse jobs file %s: %w", filename, diags)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envObject()},
	}
	var parsed jobsFile
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode jobs file %s: %w", filename, diags)
	}
	return resolveJobs(parsed.Jobs, filename, defaults)
}

// ParseYAMLJobs decodes a YAML job list. ${VAR} references are expanded from
// the process environment before decoding.
//
//	jobs:
//	  - name: processworld
//	    root_process_id: ${ROOT_PROCESS_ID}
//	    max_depth: 4
func ParseYAMLJobs(src []byte, filename string, defaults domain.Job) ([]domain.Job, error) {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(src)))))
	dec.KnownFields(true)

	var parsed jobsFile
	if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode jobs file %s: %w", filename, err)
	}
	return resolveJobs(parsed.Jobs, filename, defaults)
}

func resolveJobs(blocks []*jobBlock, filename string, defaults domain.Job) ([]domain.Job, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("jobs file %s defines no job", filename)
	}

	seen := make(map[string]bool, len(blocks))
	jobs := make([]domain.Job, 0, len(blocks))
	for _, b := range blocks {
		if b == nil || strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("jobs file %s has a job without a name", filename)
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("job %q is defined twice", b.Name)
		}
		seen[b.Name] = true

		job := domain.Job{
			Name:          b.Name,
			RootProcessID: b.RootProcessID,
			RootDiagramID: defaults.RootDiagramID,
			MaxDepth:      defaults.MaxDepth,
			AttachLinks:   defaults.AttachLinks,
			Schedule:      defaults.Schedule,
		}
		if b.RootDiagramID != nil {
			job.RootDiagramID = *b.RootDiagramID
		}
		if b.MaxDepth != nil {
			job.MaxDepth = *b.MaxDepth
		}
		if b.Schedule != nil {
			job.Schedule = *b.Schedule
		}
		if b.AttachLinks != nil {
			job.AttachLinks = *b.AttachLinks
		}

		if strings.TrimSpace(job.RootProcessID) == "" {
			return nil, fmt.Errorf("job %q: root_process_id is required", job.Name)
		}
		if job.MaxDepth < 1 {
			return nil, fmt.Errorf("job %q: max_depth must be positive", job.Name)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// FindJob returns the job called name.
func FindJob(jobs []domain.Job, name string) (domain.Job, error) {
	for _, j := range jobs {
		if j.Name == name {
			return j, nil
		}
	}
	return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, name)
}

func envObject() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" || !hclIdentifier(key) {
			continue
		}
		vars[key] = cty.StringVal(value)
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

// hclIdentifier reports whether key can be used as env.<key>.
func hclIdentifier(key string) bool {
	for i, r := range key {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && ((r >= '0' && r <= '9') || r == '-'):
		default:
			return false
		}
	}
	return true
}
