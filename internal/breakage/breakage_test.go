package breakage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/nestmig/internal/domain"
	"github.com/lherron/nestmig/internal/testutil"
)

func TestLocationParent(t *testing.T) {
	ns := testutil.NewNamespace("wiki")

	loc, ok := LocationParent(ns.Path("A/B/Page"), "Main")
	require.True(t, ok)
	assert.Equal(t, "wiki:A/B/INDEX", loc.String())

	loc, ok = LocationParent(ns.Path("A/B/INDEX"), "Main")
	require.True(t, ok)
	assert.Equal(t, "wiki:A/INDEX", loc.String())

	loc, ok = LocationParent(ns.Path("A/INDEX"), "Main")
	require.True(t, ok)
	assert.Equal(t, "wiki:Main/INDEX", loc.String())

	_, ok = LocationParent(ns.Path("Main/INDEX"), "Main")
	assert.False(t, ok)
}

func TestDetect(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.PutWithParent("A/Page", "A/INDEX")
	ns.PutWithParent("A/Other", "B/INDEX")
	ns.PutWithParent("A/B/INDEX", "A/INDEX")
	ns.PutWithParent("A/INDEX", "Main/INDEX")
	ns.PutWithParent("C/INDEX", "A/INDEX")
	ns.Put("D/Orphan", domain.Item{})
	ns.Put("Main/INDEX", domain.Item{})
	ns.Put("E/Unreadable", domain.Item{})
	ns.ReadErrors[ns.Path("E/Unreadable").Key()] = errors.New("disk on fire")

	d := New(ns, Options{Jobs: 3}, nil)
	report, err := d.Detect(context.Background(), ns.Paths())
	require.NoError(t, err)

	var got []string
	for _, b := range report.Broken {
		got = append(got, b.Path.Local())
	}
	assert.Equal(t, []string{"A/Other", "C/INDEX", "D/Orphan"}, got)
	assert.Nil(t, report.Broken[2].Declared)
	assert.Equal(t, "wiki:D/INDEX", report.Broken[2].Location.String())
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "wiki:E/Unreadable", report.Failed[0].Item)
	assert.Equal(t, 7, report.Checked)
}

func TestDetectCancelled(t *testing.T) {
	ns := testutil.NewNamespace("wiki")
	ns.Put("A/Page", domain.Item{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ns, Options{}, nil).Detect(ctx, ns.Paths())
	assert.ErrorIs(t, err, context.Canceled)
}
