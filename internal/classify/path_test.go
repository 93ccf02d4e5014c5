package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classifyRel(t *testing.T, c Classifier, rel string) *FileItem {
	t.Helper()
	it := NewFileItem(rel, rel, "/appliance/"+rel)
	require.NoError(t, Do(c, it))
	return it
}

func TestExactPath(t *testing.T) {
	t.Parallel()
	c := NewExactPath("FooConf", "etc/foo.conf", "foo-conf", "config")

	hit := classifyRel(t, c, "etc/foo.conf")
	assert.Equal(t, map[string][]string{"FooConf": {"config", "foo-conf"}}, hit.TagsByClassifier())

	for _, rel := range []string{"etc/foo.conf.bak", "./etc/foo.conf", "etc//foo.conf", "ETC/foo.conf"} {
		miss := classifyRel(t, c, rel)
		assert.Empty(t, miss.TagsByClassifier(), rel)
	}
}

func TestExactPath_TagsNotAliased(t *testing.T) {
	t.Parallel()
	c := NewExactPath("Makefile", "Makefile", "appliance-makefile")

	first := classifyRel(t, c, "Makefile")
	c.Tags[0] = "mutated-config"
	second := classifyRel(t, c, "Makefile")

	assert.True(t, first.HasTag("appliance-makefile"))
	assert.False(t, first.HasTag("mutated-config"))
	assert.True(t, second.HasTag("mutated-config"))
}

func TestExactPath_IgnoresPackages(t *testing.T) {
	t.Parallel()
	c := NewExactPath("Vim", "vim", "x")
	pkg := NewPackageItem("vim", []string{"plan/main"})

	assert.False(t, c.Accepts(pkg))
	require.NoError(t, Do(c, pkg))
	assert.Empty(t, pkg.TagsByClassifier())
}

func TestSubdir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		recursive bool
		rel       string
		want      bool
	}{
		{"direct child", false, "etc/init.d/foo", true},
		{"nested child", false, "etc/init.d/sub/foo", false},
		{"the dir itself", false, "etc/init.d", false},
		{"sibling prefix", false, "etc/init.dx/foo", false},
		{"dotdot back into dir", false, "etc/init.d/sub/../foo", false},
		{"dotdot from elsewhere", false, "etc/x/../init.d/foo", false},
		{"recursive direct", true, "etc/init.d/foo", true},
		{"recursive nested", true, "etc/init.d/sub/foo", true},
		{"recursive dir itself", true, "etc/init.d", true},
		{"recursive sibling prefix", true, "etc/init.dx/foo", false},
		{"recursive unrelated", true, "usr/etc/init.d/foo", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewSubdir("InitD", "etc/init.d", tt.recursive, "init-script")
			it := classifyRel(t, c, tt.rel)
			assert.Equal(t, tt.want, it.HasTag("init-script"))
		})
	}
}

func TestSubdir_TopLevel(t *testing.T) {
	t.Parallel()
	// conf.d entries sit directly under the appliance root.
	c := NewSubdir("ConfD", "conf.d", false, "appliance-conf.d")
	assert.True(t, classifyRel(t, c, "conf.d/main").HasTag("appliance-conf.d"))
	assert.False(t, classifyRel(t, c, "conf.d").HasTag("appliance-conf.d"))

	overlay := NewSubdir("Overlay", "overlay/", true, "appliance-overlay")
	assert.True(t, classifyRel(t, overlay, "overlay/etc/motd").HasTag("appliance-overlay"))
	assert.False(t, classifyRel(t, overlay, "overlayfs/etc/motd").HasTag("appliance-overlay"))
}

func TestSubdir_DotDotNotResolved(t *testing.T) {
	t.Parallel()
	c := NewSubdir("Overlay", "overlay", true, "appliance-overlay")
	// Segments are compared literally.
	assert.True(t, classifyRel(t, c, "overlay/../plan/main").HasTag("appliance-overlay"))

	plan := NewSubdir("Plan", "plan", false, "appliance-plan")
	assert.False(t, classifyRel(t, plan, "overlay/../plan/main").HasTag("appliance-plan"))
	assert.True(t, classifyRel(t, plan, "plan/main").HasTag("appliance-plan"))
}

func TestSubdir_EmptyPath(t *testing.T) {
	t.Parallel()
	c := NewSubdir("Root", "", false, "top-level")
	assert.True(t, classifyRel(t, c, "Makefile").HasTag("top-level"))
	assert.False(t, classifyRel(t, c, "conf.d/main").HasTag("top-level"))
}

func TestGlob(t *testing.T) {
	t.Parallel()
	c, err := NewGlob("Cron", "overlay/etc/cron.*/**", "cron")
	require.NoError(t, err)

	assert.True(t, classifyRel(t, c, "overlay/etc/cron.d/backup").HasTag("cron"))
	assert.True(t, classifyRel(t, c, "overlay/etc/cron.daily/a/b").HasTag("cron"))
	assert.False(t, classifyRel(t, c, "overlay/etc/crontab").HasTag("cron"))
}

func TestGlob_BadPattern(t *testing.T) {
	t.Parallel()
	_, err := NewGlob("Bad", "overlay/[", "x")
	assert.Error(t, err)
}
