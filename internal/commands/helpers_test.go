package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/config"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/internal/schema"
	"github.com/SocialFinanceDigitalLabs/liia-tools-sub000/pkg/types"
)

func TestConfigDir(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	assert.Equal(t, ".", configDir(cmd))

	cmd.Flags().String(ConfigFlag, "", "")
	require.NoError(t, cmd.Flags().Set(ConfigFlag, "/proj"))
	assert.Equal(t, "/proj", configDir(cmd))
}

func TestListInputs_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	files, err := listInputs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
}

func TestListInputs_Dir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.xml", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))

	files, err := listInputs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xml"), filepath.Join(dir, "b.csv")}, files)
}

func TestListInputs_Missing(t *testing.T) {
	_, err := listInputs("/nonexistent/path/xyzzy")
	assert.Error(t, err)
}

func TestStarterConfigParses(t *testing.T) {
	cfg, err := config.Parse([]byte(starterConfig("bar", []string{"ssda903", "cin"})), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "BAR", cfg.Authority)
	assert.Equal(t, []string{"ssda903", "cin"}, cfg.Datasets)
	assert.Equal(t, types.CombineEager, cfg.CombineMode)
}

func TestRunInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, runInit(dir, "", []string{"ssda903", "pnw"}, false))

	assert.DirExists(t, filepath.Join(dir, "source", "ssda903"))
	assert.DirExists(t, filepath.Join(dir, "source", "pnw"))
	assert.DirExists(t, filepath.Join(dir, "output"))
	assert.FileExists(t, filepath.Join(dir, ".env"))

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "source"), cfg.Source)
	assert.Equal(t, filepath.Join(dir, "output", "archive"), cfg.Archive)

	// refuses to overwrite without --force
	assert.Error(t, runInit(dir, "", nil, false))
	assert.NoError(t, runInit(dir, "", nil, true))
}

func TestRunClean(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	csv := "CHILD,DECOM,RNE,LS,CIN,PLACE,PLACE_PROVIDER,DEC,REC,REASON_PLACE_CHANGE,HOME_POST,PL_POST,URN\n" +
		"101,15/01/2023,P,C2,N1,U1,PR1,,,,E20 1LP,e1 6an,SC123456\n"
	require.NoError(t, os.WriteFile(filepath.Join(in, "SSDA903_2023_episodes.csv"), []byte(csv), 0o644))

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	require.NoError(t, runClean(cmd, "ssda903", in, out, 0, ""))
	assert.FileExists(t, filepath.Join(out, "SSDA903_2023_episodes_episodes.csv"))
	assert.FileExists(t, filepath.Join(out, "SSDA903_2023_episodes_errors.csv"))

	assert.Error(t, runClean(cmd, "nope", in, out, 0, ""))
}

func TestDescribeColumn(t *testing.T) {
	minV, maxV := 0.0, 1.0
	c := &schema.Column{Key: "FTE", Numeric: &schema.Numeric{Type: "float", MinValue: &minV, MaxValue: &maxV}, CanBeBlank: true}
	assert.Equal(t, "float range=[0,1]", describeColumn(c))
	assert.Equal(t, "", bound(nil))
	assert.Equal(t, " (autumn)", termSuffix("autumn"))
}

func TestNewWatchCmd_Defaults(t *testing.T) {
	cmd := NewWatchCmd()
	f := cmd.Flags().Lookup("interval")
	require.NotNil(t, f)
	assert.Equal(t, (30 * time.Second).String(), f.DefValue)
}
