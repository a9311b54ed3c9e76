package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMergeKeywords(t *testing.T) {
	t.Parallel()

	got := MergeKeywords(gjson.Parse(`["b","a","b"]`), gjson.Parse(`["a","c"]`))
	assert.Equal(t, []string{"b", "a", "c"}, got)

	got = MergeKeywords(gjson.Parse(`["", null, 3, "x"]`), gjson.Parse(`"not a list"`), gjson.Result{})
	assert.Equal(t, []string{"x"}, got)
	assert.NotNil(t, MergeKeywords())
}

func TestResolveDates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantDate string
		wantTS   int64
		noTS     bool
	}{
		{name: "iso", raw: `{"iso8601":"2024-01-01T00:00:00Z"}`, wantDate: "2024-01-01T00:00:00Z", wantTS: 1704067200},
		{name: "iso with offset", raw: `{"iso8601":"2024-01-01T02:00:00+02:00"}`, wantDate: "2024-01-01T02:00:00+02:00", wantTS: 1704067200},
		{name: "rfc fallback", raw: `{"rfc2822":"Mon, 01 Jan 2024 00:00:00 GMT"}`, wantDate: "Mon, 01 Jan 2024 00:00:00 GMT", wantTS: 1704067200},
		{name: "iso preferred", raw: `{"iso8601":"2024-01-01T00:00:00Z","rfc2822":"Tue, 02 Jan 2024 00:00:00 GMT"}`, wantDate: "2024-01-01T00:00:00Z", wantTS: 1704067200},
		{name: "bad text uses utc millis", raw: `{"iso8601":"yesterday-ish","utc":1704067200123}`, wantDate: "yesterday-ish", wantTS: 1704067200},
		{name: "only utc", raw: `{"utc":1704067200000}`, wantTS: 1704067200},
		{name: "nothing", raw: `{}`, noTS: true},
		{name: "unparseable", raw: `{"iso8601":"not a date"}`, wantDate: "not a date", noTS: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			date, ts := resolveDates(gjson.Parse(tt.raw))
			if tt.wantDate == "" {
				assert.Nil(t, date)
			} else {
				require.NotNil(t, date)
				assert.Equal(t, tt.wantDate, *date)
			}
			if tt.noTS {
				assert.Nil(t, ts)
				return
			}
			require.NotNil(t, ts)
			assert.Equal(t, tt.wantTS, *ts)
		})
	}
}

func TestResolveAuthor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strings", `{"authors":["Jane Doe","John Roe"]}`, "Jane Doe, John Roe"},
		{"full name wins", `{"authors":[{"full_name":"Ann Lee","first_name":"A","screen_name":"al"}]}`, "Ann Lee"},
		{"first and last", `{"authors":[{"first_name":"Ann","last_name":"Lee"}]}`, "Ann Lee"},
		{"screen name", `{"authors":[{"screen_name":"annlee"}]}`, "annlee"},
		{"malformed entries dropped", `{"authors":[{"avatar":"x.png"},42,"Jane Doe"]}`, "Jane Doe"},
		{"byline fallback", `{"authors":[{}],"byline":"By Staff"}`, "By Staff"},
		{"byline only", `{"byline":"By Staff"}`, "By Staff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resolveAuthor(gjson.Parse(tt.raw))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}

	assert.Nil(t, resolveAuthor(gjson.Parse(`{"authors":[],"byline":""}`)))
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	got, err := ExtractText(gjson.Parse(`["a",{"k":"b","n":["c",{"d":"e"}],"num":5},null,true,"f"]`))
	require.NoError(t, err)
	assert.Equal(t, "a b c e f", got)

	got, err = ExtractText(gjson.Parse(`"plain"`))
	require.NoError(t, err)
	assert.Equal(t, "plain", got)

	got, err = ExtractText(gjson.Result{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractTextDepthBound(t *testing.T) {
	t.Parallel()

	deep := strings.Repeat("[", maxTextDepth+2) + `"x"` + strings.Repeat("]", maxTextDepth+2)
	_, err := ExtractText(gjson.Parse(deep))
	require.ErrorIs(t, err, ErrNormalization)

	shallow := strings.Repeat("[", 10) + `"x"` + strings.Repeat("]", 10)
	got, err := ExtractText(gjson.Parse(shallow))
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
