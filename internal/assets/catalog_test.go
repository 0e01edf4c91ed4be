package assets

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leapstack-labs/leaprun/internal/ident"
	"github.com/leapstack-labs/leaprun/internal/testutil"
	"github.com/leapstack-labs/leaprun/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog([]core.Asset{
		{Name: "zips", Kind: core.AssetTabular, Location: "zips.csv"},
		{Name: "banner", Kind: core.AssetText, Location: "banner.txt"},
	}, nil)

	a, err := c.Lookup("zips")
	require.NoError(t, err)
	assert.Equal(t, core.AssetTabular, a.Kind)

	_, err = c.Lookup("missing")
	require.Error(t, err)
	assert.Equal(t, core.ErrUnknownAsset, core.KindOf(err))

	assert.Equal(t, []string{"banner", "zips"}, c.Names())

	var nilCatalog *Catalog
	_, err = nilCatalog.Lookup("zips")
	assert.Equal(t, core.ErrUnknownAsset, core.KindOf(err))
}

func TestCatalog_ReadTextAndStage(t *testing.T) {
	base := t.TempDir()
	testutil.WriteTree(t, base, map[string]string{
		"data/banner.txt": "-- generated",
		"data/zips.csv":   "zip,city\n10001,New York\n",
	})

	c := NewCatalog(nil, &LocalFetcher{BaseDir: base})
	ctx := context.Background()

	text, err := c.ReadText(ctx, core.Asset{Name: "banner", Location: "data/banner.txt"})
	require.NoError(t, err)
	assert.Equal(t, "-- generated", text)

	stage := t.TempDir()
	path, err := c.Stage(ctx, core.Asset{Name: "zip codes", Location: "data/zips.csv"}, stage)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stage, "zip_codes.csv"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "zip,city"))

	_, err = c.ReadText(ctx, core.Asset{Name: "gone", Location: "data/gone.txt"})
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTempTableName(t *testing.T) {
	tests := []struct {
		runID string
		asset string
		want  string
	}{
		{"3f2a9c1e-aaaa-bbbb-cccc-000000000000", "country_codes", "tmp_3f2a9c1e_country_codes"},
		{"3f2a9c1e-aaaa", "Country Codes.csv", "tmp_3f2a9c1e_Country_Codes_csv_b8079803"},
		{"abc", "x; DROP TABLE users", "tmp_abc_x_DROP_TABLE_users_5d1b6e31"},
		{"12345678", "2024-rates", "tmp_12345678__2024_rates_46e29da5"},
	}
	for _, tt := range tests {
		t.Run(tt.asset, func(t *testing.T) {
			got, err := TempTableName(tt.runID, tt.asset)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, ident.Valid(got))
		})
	}
}

func TestTempTableName_DistinctAfterSanitizing(t *testing.T) {
	dashed, err := TempTableName("1e958696", "a-b")
	require.NoError(t, err)
	underscored, err := TempTableName("1e958696", "a_b")
	require.NoError(t, err)

	assert.Equal(t, "tmp_1e958696_a_b", underscored)
	assert.Equal(t, "tmp_1e958696_a_b_13f858a5", dashed)
}

type stubFetcher struct{ seen string }

func (s *stubFetcher) Open(_ context.Context, location string) (io.ReadCloser, error) {
	s.seen = location
	return io.NopCloser(strings.NewReader("ok")), nil
}

func TestRouter(t *testing.T) {
	local, object := &stubFetcher{}, &stubFetcher{}
	r := &Router{Local: local, Object: object}

	_, err := r.Open(context.Background(), "s3://bucket/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "s3://bucket/a.csv", object.seen)

	_, err = r.Open(context.Background(), "data/a.csv")
	require.NoError(t, err)
	assert.Equal(t, "data/a.csv", local.seen)

	_, err = (&Router{Local: local}).Open(context.Background(), "s3://bucket/a.csv")
	assert.Error(t, err)
}

func TestParseS3Location(t *testing.T) {
	bucket, key, err := ParseS3Location("s3://warehouse/seeds/zips.csv")
	require.NoError(t, err)
	assert.Equal(t, "warehouse", bucket)
	assert.Equal(t, "seeds/zips.csv", key)

	for _, bad := range []string{"warehouse/zips.csv", "s3://warehouse", "s3:///zips.csv"} {
		_, _, err := ParseS3Location(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewS3Fetcher(t *testing.T) {
	f, err := NewS3Fetcher(ObjectStoreConfig{Endpoint: "https://minio.example.com:9000", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "minio.example.com:9000", f.client.EndpointURL().Host)
	assert.Equal(t, "https", f.client.EndpointURL().Scheme)
}
