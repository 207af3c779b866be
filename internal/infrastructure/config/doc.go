// Package config loads and validates the gpioctrl daemon configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// GPIOCTRL_* environment variable overrides. Only settings that describe the
// daemon itself live here (logging, variable-server broker, PWM timing, the
// optional history and telemetry sinks). The GPIO mapping document is a
// separate file parsed by the gpiodef package; it is deliberately not merged
// into this configuration so that the binding table can be rebuilt from a
// single document on every start.
package config
