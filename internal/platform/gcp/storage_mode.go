package gcp

import (
	"fmt"
	"net/url"
	"strings"
)

type ObjectStorageMode string

const (
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode         ObjectStorageMode
	EmulatorHost string
	// Inferred is set when the mode was not configured and was derived from the emulator host.
	Inferred bool
}

func (cfg ObjectStorageConfig) IsEmulatorMode() bool {
	return cfg.Mode == ObjectStorageModeGCSEmulator
}

func (cfg ObjectStorageConfig) ModeSource() string {
	if cfg.Inferred {
		return "inferred_from_emulator_host"
	}
	return "explicit_or_default"
}

type ObjectStorageConfigError struct {
	Reason       string
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ObjectStorageConfigError) Error() string {
	if e == nil {
		return "invalid object storage config"
	}
	switch e.Reason {
	case "invalid_mode":
		return fmt.Sprintf("invalid object storage mode %q (allowed: %q, %q)", e.Mode, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	case "missing_emulator_host":
		return fmt.Sprintf("object storage mode %q requires an emulator host", ObjectStorageModeGCSEmulator)
	case "invalid_emulator_host":
		return fmt.Sprintf("invalid storage emulator host %q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid object storage config"
	}
}

func (e *ObjectStorageConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveObjectStorageConfig turns the configured mode and emulator host into a validated config.
// An empty mode selects the emulator when a host is present and real GCS otherwise.
func ResolveObjectStorageConfig(rawMode, emulatorHost string) (ObjectStorageConfig, error) {
	cfg := ObjectStorageConfig{EmulatorHost: strings.TrimRight(strings.TrimSpace(emulatorHost), "/")}

	switch mode := ObjectStorageMode(strings.ToLower(strings.TrimSpace(rawMode))); mode {
	case "":
		cfg.Mode = ObjectStorageModeGCS
		if cfg.EmulatorHost != "" {
			cfg.Mode = ObjectStorageModeGCSEmulator
			cfg.Inferred = true
		}
	case ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &ObjectStorageConfigError{Reason: "invalid_mode", Mode: rawMode}
	}

	if !cfg.IsEmulatorMode() {
		return cfg, nil
	}
	if cfg.EmulatorHost == "" {
		return cfg, &ObjectStorageConfigError{Reason: "missing_emulator_host", Mode: string(cfg.Mode)}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return cfg, &ObjectStorageConfigError{
			Reason:       "invalid_emulator_host",
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Cause:        err,
		}
	}
	return cfg, nil
}
