package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Uint32SliceFlag implements flag.Value for -listener-ports, a
// comma-separated list of Envoy listener ports.
type Uint32SliceFlag []uint32

func (f *Uint32SliceFlag) String() string {
	if f == nil {
		return ""
	}
	strs := make([]string, len(*f))
	for i, v := range *f {
		strs[i] = strconv.FormatUint(uint64(v), 10)
	}
	return strings.Join(strs, ",")
}

func (f *Uint32SliceFlag) Set(value string) error {
	parts := strings.Split(value, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid port value %q: %w", part, err)
		}
		*f = append(*f, uint32(v))
	}
	return nil
}

// StringSliceFlag implements flag.Value for a comma-separated string list,
// used for the ServiceNames allow-list and similar repeated-string inputs.
type StringSliceFlag []string

func (f *StringSliceFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *StringSliceFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			*f = append(*f, part)
		}
	}
	return nil
}

// LogLevelFlag implements flag.Value for a slog.Level.
type LogLevelFlag slog.Level

func (f *LogLevelFlag) String() string {
	return slog.Level(*f).String()
}

func (f *LogLevelFlag) Set(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		*f = LogLevelFlag(slog.LevelDebug)
	case "info", "":
		*f = LogLevelFlag(slog.LevelInfo)
	case "warn", "warning":
		*f = LogLevelFlag(slog.LevelWarn)
	case "error":
		*f = LogLevelFlag(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", value)
	}
	return nil
}

// Level returns the underlying slog.Level.
func (f LogLevelFlag) Level() slog.Level {
	return slog.Level(f)
}
