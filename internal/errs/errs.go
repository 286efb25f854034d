// Package errs defines the error kinds shared across localns, one per
// failure domain, following the teacher's habit of wrapping underlying
// errors with fmt.Errorf("...: %w", err) rather than inventing a custom
// error interface.
package errs

import "errors"

var (
	// ErrDNSProto covers malformed or unsupported DNS wire messages.
	ErrDNSProto = errors.New("dns protocol error")
	// ErrIO covers a failed filesystem or network read/write.
	ErrIO = errors.New("io error")
	// ErrConfigParse covers a config file that failed to parse or validate.
	ErrConfigParse = errors.New("config parse error")
	// ErrWatch covers filesystem watcher setup/teardown failures.
	ErrWatch = errors.New("watch error")
	// ErrDocker covers failures talking to the Docker daemon itself.
	ErrDocker = errors.New("docker error")
	// ErrDockerAPI covers a well-formed-but-rejected Docker API call.
	ErrDockerAPI = errors.New("docker api error")
	// ErrFileType covers a source file whose extension/content doesn't
	// match any supported format.
	ErrFileType = errors.New("unsupported file type")
	// ErrTraefikRule covers a Traefik router rule this server cannot
	// parse into a hostname (anything beyond a bare Host(`...`) match).
	ErrTraefikRule = errors.New("unsupported traefik rule")
)

// Is is a re-export of errors.Is for callers that only import this
// package, matching the teacher's preference for flat error checks over a
// custom matching API.
func Is(err, target error) bool { return errors.Is(err, target) }
