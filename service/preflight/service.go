// Package preflight verifies the external executables sessions depend on are installed.
package preflight

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// Binary represents a required executable, any of Candidates satisfies it
type Binary struct {
	Name       string
	Candidates []string
}

// Result represents a single binary check outcome
type Result struct {
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Found    bool   `json:"found"`
	Searched string `json:"searched"`
}

// MissingError lists every binary that could not be resolved
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required executables: %v", strings.Join(e.Names, ", "))
}

// Service checks binaries through a local shell
type Service struct {
	binaries []*Binary
	logger   *slog.Logger
	timeout  int
}

// New creates a preflight service for binaries
func New(binaries []*Binary, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{binaries: binaries, logger: logger, timeout: 5000}
}

// Check resolves every binary and returns *MissingError when any is absent
func (s *Service) Check(ctx context.Context) ([]*Result, error) {
	shell, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}
	defer shell.Close()
	var results []*Result
	var missing []string
	for _, binary := range s.binaries {
		result := s.resolve(ctx, shell, binary)
		results = append(results, result)
		if !result.Found {
			missing = append(missing, binary.Name)
			s.logger.Warn("executable not found", "name", binary.Name, "searched", result.Searched)
			continue
		}
		s.logger.Debug("executable found", "name", binary.Name, "path", result.Path)
	}
	if len(missing) > 0 {
		return results, &MissingError{Names: missing}
	}
	return results, nil
}

func (s *Service) resolve(ctx context.Context, shell *gosh.Service, binary *Binary) *Result {
	result := &Result{Name: binary.Name, Searched: strings.Join(binary.Candidates, ",")}
	for _, candidate := range binary.Candidates {
		if candidate == "" {
			continue
		}
		stdout, status, err := shell.Run(ctx, "command -v "+shellQuote(candidate), runner.WithTimeout(s.timeout))
		if err != nil || status != 0 {
			continue
		}
		if location := strings.TrimSpace(stdout); location != "" {
			result.Path = location
			result.Found = true
			return result
		}
	}
	return result
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}
