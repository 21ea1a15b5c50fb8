package labelset_test

import (
	"testing"

	"github.com/jkroepke/sshlog-exporter/internal/labelset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOverwritesInPlace(t *testing.T) {
	t.Parallel()

	ls := labelset.New("prod")
	ls.Set("host", "a")
	ls.Set("status", "200")
	ls.Set("host", "b")

	assert.Equal(t, `environment="prod",host="b",status="200"`, ls.Render(""))
}

func TestGet(t *testing.T) {
	t.Parallel()

	ls := labelset.New("prod")
	ls.Set("host", "a")

	v, ok := ls.Get("host")
	require.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = ls.Get("missing")
	assert.False(t, ok)
}

func TestEqualAndHash(t *testing.T) {
	t.Parallel()

	a := labelset.New("prod")
	a.Set("host", "1.2.3.4")
	a.Set("status", "200")

	b := labelset.New("prod")
	b.Set("host", "1.2.3.4")
	b.Set("status", "200")

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	c := labelset.New("prod")
	c.Set("status", "200")
	c.Set("host", "1.2.3.4")

	assert.False(t, a.Equal(c), "order must matter")
}

func TestCloneIsIndependentAndEqual(t *testing.T) {
	t.Parallel()

	a := labelset.New("prod")
	a.Set("host", "1.2.3.4")

	clone := a.Clone()
	clone.Set("host", "5.6.7.8")

	assert.True(t, a.Equal(a.Clone()))
	assert.False(t, a.Equal(clone))
}

func TestRenderEscaping(t *testing.T) {
	t.Parallel()

	ls := labelset.New("prod")
	ls.Set("msg", "a\"b\\c\nd")

	assert.Equal(t, `environment="prod",msg="a\"b\\c\nd"`, ls.Render(""))
}

func TestRenderWithLe(t *testing.T) {
	t.Parallel()

	ls := labelset.New("prod")
	ls.Set("host", "x")

	assert.Equal(t, `environment="prod",le="10",host="x"`, ls.Render("10"))
}

func TestNewEmptyEnvironmentPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		labelset.New("")
	})
}

func TestWithTarget(t *testing.T) {
	t.Parallel()

	ls := labelset.New("prod")
	ls.Set("host", "x")

	withTarget := ls.WithTarget("ssh://host/file")
	assert.Equal(t, `environment="prod",host="x",target="ssh://host/file"`, withTarget.Render(""))
	assert.Equal(t, `environment="prod",host="x"`, ls.Render(""), "original must be unmodified")
}
