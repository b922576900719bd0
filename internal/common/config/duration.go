package config

import "time"

// Duration lets the YAML overlay use human-friendly strings like "10s" or
// "1m30s" for the handful of intervals it can override, instead of forcing
// every one of them into its own raw-integer-seconds field.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) ToDuration() time.Duration {
	return time.Duration(*d)
}
