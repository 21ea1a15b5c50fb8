package config_test

import (
	"testing"

	"github.com/jkroepke/sshlog-exporter/internal/config"
	"github.com/jkroepke/sshlog-exporter/internal/config/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		conf config.Config
		err  string
	}{
		{
			config.Config{},
			"",
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{{Name: "status", Type: "label"}},
				},
			},
			"",
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{{Name: "status", Type: "label", Histogram: "size_buckets"}},
				},
			},
			`config: format entry "status" is a label column and cannot carry a histogram`,
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{{Name: "bytes_sum", Type: "number"}},
				},
			},
			`config: metricstore: metric name "bytes_sum" must not end in "_sum"`,
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{{Name: "connected", Type: "number"}},
				},
			},
			`config: metric name "connected" collides with a reserved family`,
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{{Name: "body_bytes_sent", Type: "clf_number", Histogram: "missing_spec"}},
				},
			},
			`config: format entry "body_bytes_sent" references undefined histogram spec "missing_spec"`,
		},
		{
			config.Config{
				Global: config.Global{
					Format: []config.FormatEntry{
						{Name: "body_bytes_sent", Type: "clf_number", Histogram: "size_buckets"},
					},
					Histograms: map[string]types.Float64Slice{"size_buckets": {10, 100, 1000}},
				},
			},
			"",
		},
		{
			config.Config{
				SSH: config.SSH{
					Environments: map[string]config.SSHEnvironment{"prod": {}},
				},
			},
			`config: ssh environment "prod" has no hosts configured`,
		},
	} {
		t.Run(tc.err, func(t *testing.T) {
			t.Parallel()

			err := config.Validate(tc.conf)
			if tc.err == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.EqualError(t, err, tc.err)
			}
		})
	}
}
