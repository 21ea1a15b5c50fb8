package config

import (
	"log/slog"
)

//nolint:gochecknoglobals
var Defaults = Config{
	Log: Log{
		Format: "console",
		Level:  slog.LevelInfo,
	},
	Web: Web{
		ListenAddress: ":5000",
	},
	Global: Global{
		Separator:            " ",
		Quote:                `"`,
		TTLSeconds:           60,
		BackgroundResilience: 1,
		LongTermResilience:   10,
	},
	SSH: SSH{
		Connection: SSHConnection{
			ConnectTimeoutSeconds: 30,
			ReadTimeoutMS:         60000,
		},
	},
}
