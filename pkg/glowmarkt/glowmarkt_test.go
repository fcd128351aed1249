package glowmarkt

import (
	"log/slog"

	"github.com/raterudder/glowmeter/pkg/log"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}
