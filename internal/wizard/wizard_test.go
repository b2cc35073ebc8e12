package wizard

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonctl/addonctl/internal/config"
)

func TestValidateClusterName(t *testing.T) {
	assert.NoError(t, validateClusterName("prod"))
	assert.NoError(t, validateClusterName("my-cluster-01"))
	assert.ErrorIs(t, validateClusterName(""), errClusterNameRequired)
	assert.ErrorIs(t, validateClusterName("   "), errClusterNameRequired)
	assert.ErrorIs(t, validateClusterName("-leading"), errClusterNameInvalid)
	assert.ErrorIs(t, validateClusterName("Upper"), errClusterNameInvalid)
	assert.ErrorIs(t, validateClusterName(strings.Repeat("a", 41)), errClusterNameInvalid)
}

func TestValidateAccountID(t *testing.T) {
	assert.NoError(t, validateAccountID(""))
	assert.NoError(t, validateAccountID("123456789012"))
	assert.ErrorIs(t, validateAccountID("12345"), errAccountIDInvalid)
	assert.ErrorIs(t, validateAccountID("12345678901a"), errAccountIDInvalid)
}

func TestAddonTableMatchesCatalog(t *testing.T) {
	for _, a := range Addons {
		assert.True(t, supportedAddon(a.Key), "wizard offers %q but no catalog exists", a.Key)
	}
}

func TestBuildConfig(t *testing.T) {
	result := &Result{
		ClusterName:   " prod ",
		Region:        "eu-central-1",
		AccountID:     "123456789012",
		EnabledAddons: []string{"keda", "karpenter"},
		Namespace:     "platform",
		UploadReports: true,
		ReportBucket:  "reports",
		ReportPrefix:  "addonctl",
		Concurrency:   4,
	}

	cfg := BuildConfig(result)
	assert.Equal(t, "prod", cfg.Cluster.Name)
	assert.Equal(t, "eu-central-1", cfg.Cluster.Region)
	assert.Equal(t, "platform", cfg.Cluster.Namespace)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "reports", cfg.Report.Bucket)

	// Add-on order follows the wizard table, not selection order.
	require.Len(t, cfg.Addons, 2)
	assert.Equal(t, "karpenter", cfg.Addons[0].Name)
	assert.Equal(t, "keda", cfg.Addons[1].Name)

	require.NoError(t, cfg.Validate())
}

func TestBuildConfigDefaults(t *testing.T) {
	cfg := BuildConfig(&Result{ClusterName: "dev", Region: "us-east-1"})
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Empty(t, cfg.Addons)
	assert.Empty(t, cfg.Report.Bucket)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "addons.yaml")

	cfg := BuildConfig(&Result{
		ClusterName:   "prod",
		Region:        "eu-central-1",
		EnabledAddons: []string{"karpenter"},
		Concurrency:   1,
	})
	require.NoError(t, WriteConfig(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "# addonctl cluster add-on configuration"))

	loaded, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", loaded.Cluster.Name)
	require.Len(t, loaded.Addons, 1)
	assert.Equal(t, "karpenter", loaded.Addons[0].Name)
}

func TestFileExistsAndConfirmOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "missing.yaml")))

	orig := confirmOverwrite
	defer func() { confirmOverwrite = orig }()
	confirmOverwrite = func(string) (bool, error) { return true, nil }

	ok, err := ConfirmOverwrite(path)
	require.NoError(t, err)
	assert.True(t, ok)
}
