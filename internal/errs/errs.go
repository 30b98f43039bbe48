package errs

import "fmt"

// ConfigError reports a missing or invalid configuration value. For the
// Telegram token it is fatal at startup; for API credentials it is returned
// from the adapter at call time instead.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %v", e.Key, e.Err)
	}
	return fmt.Sprintf("config %s is not set", e.Key)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// StorageError wraps a failure of a single persistence operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ServiceError wraps a transport failure, non-success status or malformed
// response from an external API.
type ServiceError struct {
	Service string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s service: %v", e.Service, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ValidationError reports a malformed command, carrying the usage hint that
// should be shown to the user.
type ValidationError struct {
	Usage string
}

func (e *ValidationError) Error() string { return e.Usage }
