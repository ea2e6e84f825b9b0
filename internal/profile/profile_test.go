package profile

import (
	"testing"

	clierr "github.com/LukaszStem/azure-cli/internal/errors"
	"github.com/stretchr/testify/require"
)

func testProfile(t *testing.T, ceilings map[string]string) *Profile {
	t.Helper()
	p, err := New("test", []ResourceType{{Name: "widgets", Prefix: "mgmt/widgets"}}, map[string][]Entry{
		"widgets": {
			{APIVersion: "2018-01-01", ModulePath: "mgmt/widgets/v2018_01_01"},
			{APIVersion: "2016-01-01", ModulePath: "mgmt/widgets/v2016_01_01"},
			{APIVersion: "2017-06-01-preview", ModulePath: "mgmt/widgets/v2017_06_01_preview"},
			{APIVersion: "2017-06-01", ModulePath: "mgmt/widgets/v2017_06_01"},
		},
	}, ceilings)
	require.NoError(t, err)
	return p
}

func TestResolveWithoutBoundsPicksLatest(t *testing.T) {
	p := testProfile(t, nil)
	b, err := Resolve(p, "widgets", "", Latest)
	require.NoError(t, err)
	require.Equal(t, "2018-01-01", b.APIVersion)
	require.Equal(t, "mgmt/widgets/v2018_01_01", b.ModulePath)
}

func TestResolveHonoursBounds(t *testing.T) {
	p := testProfile(t, nil)
	cases := []struct {
		min, max, want string
	}{
		{"", "2017-12-31", "2017-06-01"},
		{"2016-01-01", "2017-06-01", "2017-06-01"},
		{"", "2017-06-01-preview", "2017-06-01-preview"},
		{"2016-01-01", "2016-01-01", "2016-01-01"},
		{"2017-01-01", "", "2018-01-01"},
	}
	for _, tc := range cases {
		b, err := Resolve(p, "widgets", tc.min, tc.max)
		require.NoError(t, err, "min=%s max=%s", tc.min, tc.max)
		require.Equal(t, tc.want, b.APIVersion, "min=%s max=%s", tc.min, tc.max)
		if tc.min != "" {
			require.GreaterOrEqual(t, Compare(b.APIVersion, tc.min), 0)
		}
		if tc.max != "" {
			require.LessOrEqual(t, Compare(b.APIVersion, tc.max), 0)
		}
	}
}

func TestResolveUnsupported(t *testing.T) {
	p := testProfile(t, nil)
	_, err := Resolve(p, "widgets", "2019-01-01", "")
	require.Error(t, err)
	require.True(t, clierr.Is(err, clierr.CodeUnsupportedVersion))

	_, err = Resolve(p, "gadgets", "", "")
	require.True(t, clierr.Is(err, clierr.CodeUnsupportedVersion))
	require.False(t, Supported(p, "gadgets", "", ""))
}

func TestResolveRespectsProfileCeiling(t *testing.T) {
	p := testProfile(t, map[string]string{"widgets": "2017-01-01"})
	b, err := Resolve(p, "widgets", "", "")
	require.NoError(t, err)
	require.Equal(t, "2016-01-01", b.APIVersion)
	require.False(t, Supported(p, "widgets", "2017-06-01", ""))
}

func TestCompareOrdersPreviewBeforeGA(t *testing.T) {
	require.Equal(t, -1, Compare("2017-06-01-preview", "2017-06-01"))
	require.Equal(t, 1, Compare("2017-06-02-preview", "2017-06-01"))
	require.Equal(t, 0, Compare("2017-06-01", "2017-06-01"))
}

func TestSubstitutePrefix(t *testing.T) {
	p := testProfile(t, nil)
	got, ok, err := Substitute(p, "mgmt/widgets/operations")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mgmt/widgets/v2018_01_01/operations", got)

	got, ok, err = Substitute(p, "mgmt/widgetsextra")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "mgmt/widgetsextra", got)
}

func TestNewRejectsDuplicateVersions(t *testing.T) {
	_, err := New("dup", []ResourceType{{Name: "w"}}, map[string][]Entry{
		"w": {{APIVersion: "2017-01-01"}, {APIVersion: "2017-01-01"}},
	}, nil)
	require.Error(t, err)
}

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()
	p, err := c.Get("")
	require.NoError(t, err)
	require.Equal(t, Latest, p.Name)

	old, err := c.Get("2017-03-09-profile")
	require.NoError(t, err)
	b, err := Resolve(old, ResourceTypeResources, "", "")
	require.NoError(t, err)
	require.Equal(t, "2016-09-01", b.APIVersion)

	_, err = c.Get("nope")
	require.Error(t, err)
}
