package columnreader_test

import (
	"testing"

	"github.com/jkroepke/sshlog-exporter/internal/columnreader"
	"github.com/jkroepke/sshlog-exporter/internal/errkind"
	"github.com/jkroepke/sshlog-exporter/internal/parsedline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecord(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		line string
		want []string
	}{
		{
			name: "simple",
			line: `1.2.3.4 - alice`,
			want: []string{"1.2.3.4", "-", "alice"},
		},
		{
			name: "quoted field with spaces",
			line: `1.2.3.4 - alice "GET /a?b=1 HTTP/1.1" 200`,
			want: []string{"1.2.3.4", "-", "alice", "GET /a?b=1 HTTP/1.1", "200"},
		},
		{
			name: "bare quote is not stripped",
			line: `a"b c`,
			want: []string{`a"b`, "c"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := columnreader.SplitRecord(tc.line, ' ', '"')
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyLineApacheSample(t *testing.T) {
	t.Parallel()

	readers := []columnreader.Reader{
		columnreader.NewLabel("remote_host"),
		columnreader.NewIgnore(),
		columnreader.NewLabel("remote_user"),
		columnreader.NewIgnore(),
		columnreader.NewRequestHeader(),
		columnreader.NewLabel("status"),
		columnreader.NewCLFNumber("body_bytes_sent"),
	}

	fields := columnreader.SplitRecord(`1.2.3.4 - alice - "GET /a?b=1 HTTP/1.1" 200 123`, ' ', '"')
	require.Len(t, fields, 7)

	line := parsedline.New("prod")
	require.NoError(t, columnreader.ApplyLine(readers, fields, line))

	method, _ := line.Labels.Get("request_method")
	uri, _ := line.Labels.Get("request_uri")
	version, _ := line.Labels.Get("request_http_version")
	host, _ := line.Labels.Get("remote_host")
	user, _ := line.Labels.Get("remote_user")
	status, _ := line.Labels.Get("status")

	assert.Equal(t, "GET", method)
	assert.Equal(t, "/a", uri)
	assert.Equal(t, "HTTP/1.1", version)
	assert.Equal(t, "1.2.3.4", host)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "200", status)
	assert.InDelta(t, 123.0, line.Metrics["body_bytes_sent"], 0)
}

func TestApplyLineCLFDash(t *testing.T) {
	t.Parallel()

	readers := []columnreader.Reader{
		columnreader.NewLabel("remote_host"),
		columnreader.NewIgnore(),
		columnreader.NewLabel("remote_user"),
		columnreader.NewIgnore(),
		columnreader.NewRequestHeader(),
		columnreader.NewLabel("status"),
		columnreader.NewCLFNumber("body_bytes_sent"),
	}

	fields := columnreader.SplitRecord(`1.2.3.4 - - - "GET / HTTP/1.0" 200 -`, ' ', '"')
	line := parsedline.New("prod")
	require.NoError(t, columnreader.ApplyLine(readers, fields, line))

	assert.InDelta(t, 0.0, line.Metrics["body_bytes_sent"], 0)
}

func TestApplyLineColumnCountMismatch(t *testing.T) {
	t.Parallel()

	readers := []columnreader.Reader{
		columnreader.NewLabel("a"),
		columnreader.NewLabel("b"),
		columnreader.NewLabel("c"),
	}

	fields := []string{"x", "y"}

	line := parsedline.New("prod")
	err := columnreader.ApplyLine(readers, fields, line)
	require.Error(t, err)

	var kindErr *errkind.Error

	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, errkind.Parse, kindErr.Kind)
}

func TestRequestHeaderWrongCardinality(t *testing.T) {
	t.Parallel()

	line := parsedline.New("prod")
	err := columnreader.NewRequestHeader().Apply("GET /only-two", line)
	require.Error(t, err)

	var kindErr *errkind.Error

	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, errkind.Parse, kindErr.Kind)
}

func TestNumberParseError(t *testing.T) {
	t.Parallel()

	line := parsedline.New("prod")
	err := columnreader.NewNumber("x").Apply("not-a-number", line)
	require.Error(t, err)

	var kindErr *errkind.Error

	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, errkind.Parse, kindErr.Kind)
}
