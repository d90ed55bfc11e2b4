// Package pipeline loads the per-repository validation definition. The file
// is optional: a repository without one is validated with the defaults that
// reproduce the original processing-lambda workflow.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/HERMES-SOC/swsoc-processing-lambda/internal/imagespec"
)

// FileName is looked up at the root of the tree under validation.
const FileName = "lambdavet.yml"

const (
	defaultFixture      = "lambda_function/tests/test_data/test_sns_event.json"
	defaultOutputDir    = "/test_data/"
	defaultArtifactName = "processed-files"
	defaultHostPort     = 9000
	// The runtime interface emulator always listens here inside the container.
	ContainerPort = 8080
)

// Definition describes one repository's validation pipeline.
type Definition struct {
	Image        imagespec.Spec    `yaml:"image"`
	Mission      string            `yaml:"mission"`
	UseTestData  *bool             `yaml:"use_test_data"`
	Env          map[string]string `yaml:"env"`
	Fixture      string            `yaml:"fixture"`
	OutputDir    string            `yaml:"output_dir"`
	HostPort     int               `yaml:"host_port"`
	ArtifactName string            `yaml:"artifact_name"`
}

// Load reads the pipeline definition from dir, falling back to defaults when
// the file does not exist.
func Load(dir string) (Definition, error) {
	var def Definition
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return def.WithDefaults(), nil
		}
		return Definition{}, fmt.Errorf("read %s: %w", FileName, err)
	}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("parse %s: %w", FileName, err)
	}
	def = def.WithDefaults()
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	return def, nil
}

// WithDefaults fills unset fields with the original workflow's values.
func (d Definition) WithDefaults() Definition {
	d.Image = d.Image.WithDefaults()
	if strings.TrimSpace(d.Mission) == "" {
		d.Mission = "swsoc"
	}
	if d.UseTestData == nil {
		v := true
		d.UseTestData = &v
	}
	if strings.TrimSpace(d.Fixture) == "" {
		d.Fixture = defaultFixture
	}
	if strings.TrimSpace(d.OutputDir) == "" {
		d.OutputDir = defaultOutputDir
	}
	if d.HostPort == 0 {
		d.HostPort = defaultHostPort
	}
	if strings.TrimSpace(d.ArtifactName) == "" {
		d.ArtifactName = defaultArtifactName
	}
	return d
}

// Validate rejects definitions the pipeline cannot execute.
func (d Definition) Validate() error {
	if err := d.Image.Validate(); err != nil {
		return fmt.Errorf("image: %w", err)
	}
	if strings.Contains(d.Fixture, "..") || filepath.IsAbs(d.Fixture) {
		return fmt.Errorf("fixture path %q must be relative to the repository", d.Fixture)
	}
	if !strings.HasPrefix(d.OutputDir, "/") {
		return fmt.Errorf("output dir %q must be absolute inside the container", d.OutputDir)
	}
	if d.HostPort < 0 || d.HostPort > 65535 {
		return fmt.Errorf("host port %d out of range", d.HostPort)
	}
	return nil
}

// ContainerEnv renders the environment passed to the validation container:
// the test-data switch, the mission identifier, then any extra variables in
// stable order.
func (d Definition) ContainerEnv() []string {
	useTestData := d.UseTestData == nil || *d.UseTestData
	env := []string{
		fmt.Sprintf("USE_INSTRUMENT_TEST_DATA=%s", pythonBool(useTestData)),
		fmt.Sprintf("SWXSOC_MISSION=%s", d.Mission),
	}
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, d.Env[k]))
	}
	return env
}

// pythonBool matches the literal the handler's os.getenv checks expect.
func pythonBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
