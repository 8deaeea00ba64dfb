package config

import "errors"

var (
	// ErrReadingFile is returned when the YAML config file cannot be read
	ErrReadingFile = errors.New("failed to read config file")

	// ErrParsingFile is returned when the YAML config file is not valid
	ErrParsingFile = errors.New("failed to parse config file")

	// ErrLoadingEnvFile is returned when an explicitly requested .env file cannot be loaded
	ErrLoadingEnvFile = errors.New("failed to load env file")

	// ErrParsingConfig is returned when environment variables cannot be parsed into the config struct
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrInvalidConfig is returned when a loaded value is out of range
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrReadingKeyFile is returned when a configured key file cannot be read
	ErrReadingKeyFile = errors.New("failed to read key file")

	// ErrConflictingKeySource is returned when a key is given both inline and as a file
	ErrConflictingKeySource = errors.New("key supplied both inline and as a file")

	// ErrIncompleteKeyPair is returned when only one half of the key pair is supplied
	ErrIncompleteKeyPair = errors.New("both private and public key must be supplied")

	// ErrInvalidKeyPair is returned when the supplied keys do not parse or do not match
	ErrInvalidKeyPair = errors.New("invalid key pair")
)
