package session

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/excimetry/excimetry/pkg/profile"
)

// hostMetadata enriches the profile metadata with facts about the profiled
// host. Enrichment is best effort: a host lookup failure is logged and the
// profile is exported without those entries.
func hostMetadata(md *profile.Metadata, logger zerolog.Logger) {
	info, err := host.Info()
	if err != nil {
		logger.Warn().Err(err).Msg("host metadata lookup failed")
	} else {
		md.Set("excimetry.hostname", profile.StringValue(info.Hostname))
		md.Set("excimetry.os", profile.StringValue(info.OS))
		md.Set("excimetry.platform", profile.StringValue(info.Platform))
	}
	md.Set("excimetry.pid", profile.IntValue(int64(os.Getpid())))
}
