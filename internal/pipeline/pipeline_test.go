package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	def, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "lambda_function/tests/test_data/test_sns_event.json", def.Fixture)
	require.Equal(t, "/test_data/", def.OutputDir)
	require.Equal(t, 9000, def.HostPort)
	require.Equal(t, "processed-files", def.ArtifactName)
	require.Equal(t, "swsoc", def.Mission)
	require.NotNil(t, def.UseTestData)
	require.True(t, *def.UseTestData)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
mission: hermes
use_test_data: false
fixture: events/sample.json
output_dir: /out/
host_port: 9100
artifact_name: files
image:
  handler: app.process
env:
  EXTRA: "1"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	def, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "hermes", def.Mission)
	require.Equal(t, "events/sample.json", def.Fixture)
	require.Equal(t, "/out/", def.OutputDir)
	require.Equal(t, 9100, def.HostPort)
	require.Equal(t, "files", def.ArtifactName)
	require.Equal(t, "app.process", def.Image.Handler)
	require.NotNil(t, def.UseTestData)
	require.False(t, *def.UseTestData)
}

func TestLoadRejectsInvalidDefinition(t *testing.T) {
	cases := map[string]string{
		"escaping fixture": "fixture: ../../secrets.json\n",
		"relative output":  "output_dir: test_data/\n",
		"bad host port":    "host_port: 70000\n",
		"bad handler":      "image:\n  handler: nodot\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
			_, err := Load(dir)
			require.Error(t, err)
		})
	}
}

func TestContainerEnv(t *testing.T) {
	falseVal := false
	def := Definition{
		Mission:     "hermes",
		UseTestData: &falseVal,
		Env:         map[string]string{"B_VAR": "2", "A_VAR": "1"},
	}
	require.Equal(t, []string{
		"USE_INSTRUMENT_TEST_DATA=False",
		"SWXSOC_MISSION=hermes",
		"A_VAR=1",
		"B_VAR=2",
	}, def.ContainerEnv())
}

func TestContainerEnvDefaultsToTestData(t *testing.T) {
	def := Definition{}.WithDefaults()
	env := def.ContainerEnv()
	require.Contains(t, env, "USE_INSTRUMENT_TEST_DATA=True")
	require.Contains(t, env, "SWXSOC_MISSION=swsoc")
}
