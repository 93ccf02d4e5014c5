package classifiers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/detective/internal/classify"
)

func writeFile(t *testing.T, dir, rel, content string) *classify.FileItem {
	t.Helper()
	abs := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return classify.NewFileItem(abs, rel, abs)
}

func TestFiletype(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewFiletype()

	tests := []struct {
		rel  string
		want []string
	}{
		{"conf.d/settings.json", []string{"ext:json"}},
		{"overlay/etc/app.tar.gz", []string{"ext:gz"}},
		{"Makefile", nil},
	}
	for _, tt := range tests {
		it := writeFile(t, dir, tt.rel, "x")
		require.NoError(t, classify.Do(c, it))
		assert.Equal(t, tt.want, it.TagsWithType("ext"), tt.rel)
	}
}

func TestFiletype_SkipsDirectories(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	abs := filepath.Join(dir, "overlay.d")
	require.NoError(t, os.Mkdir(abs, 0o755))

	it := classify.NewFileItem(abs, "overlay.d", abs)
	require.NoError(t, classify.Do(NewFiletype(), it))
	assert.False(t, it.HasTagType("ext"))
}

func TestShebang(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewShebang()

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"plain interpreter", "#!/bin/sh\necho hi\n", []string{"shebang:/bin/sh"}},
		{"interpreter with flag", "#!/bin/bash -e\nset -x\n", []string{"shebang:/bin/bash"}},
		{"env style", "#!/usr/bin/env python3\nprint(1)\n", []string{"shebang:/usr/bin/env python3"}},
		{"bare env", "#!/usr/bin/env\n", []string{"shebang:/usr/bin/env"}},
		{"no shebang", "hello\nworld\n", nil},
		{"no newline", "#!/bin/sh", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			it := writeFile(t, dir, filepath.Join("t", tt.name), tt.content)
			require.NoError(t, classify.Do(c, it))
			assert.Equal(t, tt.want, it.TagsWithType("shebang"))
		})
	}
}

func TestShebang_NotUTF8(t *testing.T) {
	t.Parallel()
	it := writeFile(t, t.TempDir(), "bin/blob", "\xff\xfe\xfd\n#!/bin/sh\n")
	require.NoError(t, classify.Do(NewShebang(), it))
	assert.True(t, it.HasTag("not-utf8"))
	assert.False(t, it.HasTagType("shebang"))
}

func TestIgnore(t *testing.T) {
	t.Parallel()
	c := NewIgnore()

	cached := classify.NewFileItem("x", "overlay/usr/lib/__pycache__/m.pyc", "/app/overlay/usr/lib/__pycache__/m.pyc")
	git := classify.NewFileItem("x", ".git/config", "/app/.git/config")
	plain := classify.NewFileItem("x", "overlay/etc/gitconfig", "/app/overlay/etc/gitconfig")

	for _, it := range []*classify.FileItem{cached, git, plain} {
		require.NoError(t, classify.Do(c, it))
	}
	assert.Equal(t, []string{"ignore:__pycache__"}, cached.TagsWithType("ignore"))
	assert.Equal(t, []string{"ignore:.git"}, git.TagsWithType("ignore"))
	assert.Empty(t, plain.TagsWithType("ignore"))
}

func TestPlanPackage(t *testing.T) {
	t.Parallel()
	c := NewPlanPackage()
	direct := classify.NewPackageItem("vim", []string{"plan/main"})
	included := classify.NewPackageItem("bash", []string{"plan/main", "/turnkey/fab/common/plans/turnkey/base"})
	file := classify.NewFileItem("plan/main", "plan/main", "/app/plan/main")

	for _, it := range []classify.Item{direct, included, file} {
		require.NoError(t, classify.Do(c, it))
	}
	assert.True(t, direct.HasTag("plan:appliance"))
	assert.True(t, included.HasTag("plan:common"))
	assert.False(t, file.HasTagType("plan"))
}

func TestRegisterDefaults(t *testing.T) {
	t.Parallel()
	reg := classify.NewRegistry()
	RegisterDefaults(reg)

	cs, err := reg.Weighted()
	require.NoError(t, err)
	require.NotEmpty(t, cs)
	assert.Equal(t, "IgnoreClassifier", cs[0].Name())
	assert.Equal(t, "FiletypeClassifier", cs[1].Name())
	assert.Equal(t, "ShebangClassifier", cs[2].Name())

	dir := t.TempDir()
	items := map[string]*classify.FileItem{
		"Makefile":   writeFile(t, dir, "Makefile", "include $(FAB_PATH)/common/mk/turnkey.mk\n"),
		"confd":      writeFile(t, dir, "conf.d/main", "#!/bin/sh -ex\n"),
		"plan":       writeFile(t, dir, "plan/main", "vim\n"),
		"firstboot":  writeFile(t, dir, "overlay/usr/lib/inithooks/firstboot.d/40app", "#!/bin/bash\n"),
		"inithooks":  writeFile(t, dir, "overlay/usr/lib/inithooks/bin/app.py", "#!/usr/bin/python3\n"),
		"readme":     writeFile(t, dir, "README.rst", "App\n===\n"),
		"changelog":  writeFile(t, dir, "changelog", "turnkey-app-18.0\n"),
		"removelist": writeFile(t, dir, "removelist", "/usr/share/doc\n"),
	}
	for _, it := range items {
		require.NoError(t, classify.Run(context.Background(), it, cs))
	}

	assert.True(t, items["Makefile"].HasTag("appliance-makefile"))
	assert.True(t, items["confd"].HasTag("appliance-conf.d"))
	assert.True(t, items["confd"].HasTag("shebang:/bin/sh"))
	assert.True(t, items["plan"].HasTag("appliance-plan"))
	assert.True(t, items["firstboot"].HasTag("appliance-overlay"))
	assert.True(t, items["firstboot"].HasTag("appliance-inithook-firstboot"))
	assert.True(t, items["inithooks"].HasTag("appliance-inithook-bin"))
	assert.True(t, items["inithooks"].HasTag("ext:py"))
	assert.True(t, items["readme"].HasTag("appliance-readme"))
	assert.True(t, items["readme"].HasTag("ext:rst"))
	assert.True(t, items["changelog"].HasTag("appliance-readme"))
	assert.True(t, items["removelist"].HasTag("appliance-removelist"))

	assert.Equal(t, map[string][]string{
		"ApplianceMakefileClassifier": {"appliance-makefile"},
	}, items["Makefile"].TagsByClassifier())
}
