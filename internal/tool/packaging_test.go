package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePackageJSON(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0644))
}

const extensionManifest = `{"name": "demo-ext", "version": "1.2.3", "scripts": {"package": "vsce package"}}`

func TestFindPackaging(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		dir := t.TempDir()
		writePackageJSON(t, dir, `{"name": "app", "version": "1.0.0", "scripts": {"build": "tsc"}}`)

		_, ok := FindPackaging(dir)
		assert.False(t, ok)
	})

	t.Run("root without artifact", func(t *testing.T) {
		dir := t.TempDir()
		writePackageJSON(t, dir, extensionManifest)

		pkg, ok := FindPackaging(dir)
		require.True(t, ok)
		assert.Equal(t, Packaging{Dir: ".", Name: "demo-ext", Version: "1.2.3"}, pkg)
		assert.Equal(t, "npm run package", pkg.PackageCommand())
	})

	t.Run("sub package with vsix", func(t *testing.T) {
		dir := t.TempDir()
		writePackageJSON(t, filepath.Join(dir, "packages", "extension"), extensionManifest)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "packages", "extension", "demo-ext-1.2.3.vsix"), nil, 0644))

		pkg, ok := FindPackaging(dir)
		require.True(t, ok)
		assert.Equal(t, "packages/extension", pkg.Dir)
		assert.Equal(t, "packages/extension/demo-ext-1.2.3.vsix", pkg.Artifact)
		assert.Equal(t, "code --install-extension packages/extension/demo-ext-1.2.3.vsix", pkg.InstallCommand())
		assert.Equal(t, "cd packages/extension && npm run package", pkg.PackageCommand())
	})

	t.Run("scoped tarball", func(t *testing.T) {
		dir := t.TempDir()
		writePackageJSON(t, dir, `{"name": "@acme/tool", "version": "0.1.0", "scripts": {"package": "npm pack"}}`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "acme-tool-0.1.0.tgz"), nil, 0644))

		pkg, ok := FindPackaging(dir)
		require.True(t, ok)
		assert.Equal(t, "acme-tool-0.1.0.tgz", pkg.Artifact)
		assert.Equal(t, "npm install acme-tool-0.1.0.tgz", pkg.InstallCommand())
	})

	t.Run("invalid json is skipped", func(t *testing.T) {
		dir := t.TempDir()
		writePackageJSON(t, dir, `{not json`)
		writePackageJSON(t, filepath.Join(dir, "extension"), extensionManifest)

		pkg, ok := FindPackaging(dir)
		require.True(t, ok)
		assert.Equal(t, "extension", pkg.Dir)
	})
}

func TestShellToolRecover(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir, extensionManifest)
	failed := Result{ExitCode: intPtr(1)}
	shell := NewShellTool()

	plan := func(text string) Plan {
		p, ok := shell.Match(text)
		require.True(t, ok)
		return p
	}

	t.Run("bare install rebuilds the package", func(t *testing.T) {
		rec, ok := shell.Recover(ExecContext{Dir: dir}, plan("npm   install"), failed)
		require.True(t, ok)
		assert.Equal(t, "npm run package", rec.NextCommandText)
	})

	for _, text := range []string{"npm i", "pnpm install", "yarn install", "yarn"} {
		t.Run(text, func(t *testing.T) {
			_, ok := shell.Recover(ExecContext{Dir: dir}, plan(text), failed)
			assert.True(t, ok)
		})
	}

	for _, text := range []string{"npm install lodash", "npm ci", "npm install --force", "make"} {
		t.Run("declines "+text, func(t *testing.T) {
			_, ok := shell.Recover(ExecContext{Dir: dir}, plan(text), failed)
			assert.False(t, ok)
		})
	}

	t.Run("no packaging script", func(t *testing.T) {
		_, ok := shell.Recover(ExecContext{Dir: t.TempDir()}, plan("npm install"), failed)
		assert.False(t, ok)
	})

	t.Run("existing artifact is installed directly", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "demo-ext-1.2.3.vsix"), nil, 0644))
		rec, ok := shell.Recover(ExecContext{Dir: dir}, plan("npm install"), failed)
		require.True(t, ok)
		assert.Equal(t, "code --install-extension demo-ext-1.2.3.vsix", rec.NextCommandText)
		assert.Contains(t, rec.Reason, "demo-ext-1.2.3.vsix")
	})
}
