package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrej220/rdeploy/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
project:
  name: dev_project
  front_apps: [slider, blurb]
database:
  name: db_name
  user: db_user
environments:
  develop:
    host: rdtone
    user: deploy
    branch: develop
  staging:
    host: 10.0.0.5
    port: 2222
    user: deploy
    key_path: ~/.ssh/staging
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func load(t *testing.T, body string) (*config.File, error) {
	t.Helper()
	store, err := config.NewStore(config.FileStore, &config.FileConfig{Path: writeConfig(t, body)})
	require.NoError(t, err)
	return config.Load(store)
}

func TestLoadAppliesDefaults(t *testing.T) {
	f, err := load(t, sampleYAML)
	require.NoError(t, err)

	p := f.Project
	assert.Equal(t, "/opt/dev_project", p.RootDir)
	assert.Equal(t, "/opt/dev_project/project", p.AppDir)
	assert.Equal(t, "/opt/.virtualenvs/dev_project", p.Venv)
	assert.Equal(t, "gunicorn_dev_project", p.Service)
	assert.Equal(t, config.DefaultRequirements, p.Requirements)
	assert.Equal(t, config.DefaultBackupDir, p.BackupDir)
	assert.Equal(t, "dev_project_front", p.FrontAppLabel)

	dev, err := f.Environment("develop")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, dev.Port)
	assert.Equal(t, config.DefaultKeyPath, dev.KeyPath)
	assert.Equal(t, "develop", dev.Branch)

	stg, err := f.Environment("staging")
	require.NoError(t, err)
	assert.Equal(t, 2222, stg.Port)
	assert.Equal(t, "", stg.Branch)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "no environments",
			body: "project:\n  name: p\n",
		},
		{
			name: "bad project name",
			body: "project:\n  name: 'my project'\nenvironments:\n  dev:\n    host: h1\n    user: u\n",
		},
		{
			name: "relative app dir",
			body: "project:\n  name: p\n  app_dir: srv/app\nenvironments:\n  dev:\n    host: h1\n    user: u\n",
		},
		{
			name: "missing host",
			body: "project:\n  name: p\nenvironments:\n  dev:\n    user: u\n",
		},
		{
			name: "port out of range",
			body: "project:\n  name: p\nenvironments:\n  dev:\n    host: h1\n    user: u\n    port: 70000\n",
		},
		{
			name: "db user missing",
			body: "project:\n  name: p\ndatabase:\n  name: db\nenvironments:\n  dev:\n    host: h1\n    user: u\n",
		},
		{
			name: "kafka topic missing",
			body: "project:\n  name: p\nenvironments:\n  dev:\n    host: h1\n    user: u\nreport:\n  kafka:\n    brokers: ['localhost:9092']\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.body)
			assert.Error(t, err)
		})
	}
}

func TestEnvironmentUnknown(t *testing.T) {
	f, err := load(t, sampleYAML)
	require.NoError(t, err)

	_, err = f.Environment("prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "develop, staging")
	assert.Equal(t, []string{"develop", "staging"}, f.EnvironmentNames())
}

func TestParseStoreType(t *testing.T) {
	st, err := config.ParseStoreType("mongo")
	require.NoError(t, err)
	assert.Equal(t, config.MongoStore, st)

	st, err = config.ParseStoreType("")
	require.NoError(t, err)
	assert.Equal(t, config.FileStore, st)

	_, err = config.ParseStoreType("etcd")
	assert.ErrorIs(t, err, config.ErrInvalidStoreType)

	_, err = config.NewStore(config.FileStore, &config.MongoConfig{})
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := map[string]string{
		"/etc/key":        "/etc/key",
		"%h/.ssh/id_rsa":  home + "/.ssh/id_rsa",
		"~/.ssh/id_rsa":   filepath.Join(home, ".ssh/id_rsa"),
		"~":               home,
		"relative/id_rsa": "relative/id_rsa",
	}
	for in, want := range tests {
		got, err := config.ExpandPath(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestCopy(t *testing.T) {
	src, err := config.NewStore(config.FileStore, &config.FileConfig{Path: writeConfig(t, sampleYAML)})
	require.NoError(t, err)
	dstPath := filepath.Join(t.TempDir(), "copy.yaml")
	dst, err := config.NewStore(config.FileStore, &config.FileConfig{Path: dstPath})
	require.NoError(t, err)

	checked, err := config.Copy(src, dst)
	require.NoError(t, err)
	assert.Equal(t, "/opt/dev_project/project", checked.Project.AppDir)

	raw := &config.File{}
	require.NoError(t, dst.Load(raw))
	assert.Empty(t, raw.Project.AppDir, "derived defaults are not written")
	assert.Equal(t, 2222, raw.Environments["staging"].Port)
	assert.Equal(t, "~/.ssh/staging", raw.Environments["staging"].KeyPath)

	copied, err := config.Load(dst)
	require.NoError(t, err)
	assert.Equal(t, checked.Project, copied.Project)
	assert.Equal(t, checked.Environments, copied.Environments)
}

func TestCopyRejectsInvalid(t *testing.T) {
	src, err := config.NewStore(config.FileStore, &config.FileConfig{Path: writeConfig(t, "project:\n  name: dev_project\n")})
	require.NoError(t, err)
	dstPath := filepath.Join(t.TempDir(), "copy.yaml")
	dst, err := config.NewStore(config.FileStore, &config.FileConfig{Path: dstPath})
	require.NoError(t, err)

	_, err = config.Copy(src, dst)
	assert.ErrorContains(t, err, "config validation failed")
	_, statErr := os.Stat(dstPath)
	assert.True(t, os.IsNotExist(statErr))
}
