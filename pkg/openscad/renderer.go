package openscad

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultBinary is the executable looked up in PATH
const DefaultBinary = "openscad"

var (
	useRegex     = regexp.MustCompile(`^\s*use\s*<([^>]+)>`)
	includeRegex = regexp.MustCompile(`^\s*include\s*<([^>]+)>`)
)

// Renderer handles OpenSCAD file rendering to STL
type Renderer struct {
	workDir string
	binary  string
	logger  *slog.Logger
	output  io.Writer
}

// Option configures a Renderer
type Option func(*Renderer)

// WithBinary sets the openscad executable
func WithBinary(binary string) Option {
	return func(r *Renderer) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput receives the renderer's console output
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		r.output = w
	}
}

// NewRenderer creates a new OpenSCAD renderer
func NewRenderer(workDir string, opts ...Option) *Renderer {
	r := &Renderer{
		workDir: workDir,
		binary:  DefaultBinary,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether the openscad executable can be found
func (r *Renderer) Available() bool {
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// RenderToSTL renders an OpenSCAD file to STL format
func (r *Renderer) RenderToSTL(ctx context.Context, scadFile, outputFile string) error {
	absScadFile := r.abs(scadFile)

	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("%s not found in PATH. Please install OpenSCAD from https://openscad.org/", r.binary)
	}

	cmd := exec.CommandContext(ctx, r.binary, "-o", outputFile, absScadFile)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.output != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.output)
		cmd.Stderr = io.MultiWriter(&stderr, r.output)
	}

	r.logger.Debug("rendering OpenSCAD model", "file", absScadFile, "output", outputFile)
	if err := cmd.Run(); err != nil {
		var errMsg strings.Builder
		fmt.Fprintf(&errMsg, "failed to render %s: %v", scadFile, err)
		if stderr.Len() > 0 {
			errMsg.WriteString("\nstderr: ")
			errMsg.WriteString(strings.TrimSpace(stderr.String()))
		}
		if stdout.Len() > 0 {
			errMsg.WriteString("\nstdout: ")
			errMsg.WriteString(strings.TrimSpace(stdout.String()))
		}
		return fmt.Errorf("%s", errMsg.String())
	}

	return nil
}

// ResolveDependencies finds all dependencies (use/include statements) in an OpenSCAD file
// Returns a list of absolute paths to all dependencies, starting with the file itself
func (r *Renderer) ResolveDependencies(scadFile string) ([]string, error) {
	visited := make(map[string]bool)
	var deps []string

	if err := r.resolveDependenciesRecursive(r.abs(scadFile), visited, &deps); err != nil {
		return nil, err
	}

	return deps, nil
}

func (r *Renderer) abs(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(r.workDir, file)
}

// resolveDependenciesRecursive recursively finds all dependencies
func (r *Renderer) resolveDependenciesRecursive(scadFile string, visited map[string]bool, deps *[]string) error {
	// Avoid circular dependencies
	if visited[scadFile] {
		return nil
	}
	visited[scadFile] = true
	*deps = append(*deps, scadFile)

	file, err := os.Open(scadFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", scadFile, err)
	}
	fileDeps, err := r.parseDependencies(file, filepath.Dir(scadFile))
	file.Close()
	if err != nil {
		return fmt.Errorf("error reading %s: %w", scadFile, err)
	}

	for _, dep := range fileDeps {
		if err := r.resolveDependenciesRecursive(dep, visited, deps); err != nil {
			return err
		}
	}

	return nil
}

// parseDependencies finds the use/include statements of one file
func (r *Renderer) parseDependencies(reader io.Reader, scadDir string) ([]string, error) {
	var deps []string
	scanner := bufio.NewScanner(reader)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}

		if matches := useRegex.FindStringSubmatch(line); len(matches) > 1 {
			deps = append(deps, r.resolveDepPath(matches[1], scadDir))
		}
		if matches := includeRegex.FindStringSubmatch(line); len(matches) > 1 {
			deps = append(deps, r.resolveDepPath(matches[1], scadDir))
		}
	}

	return deps, scanner.Err()
}

// resolveDepPath resolves a dependency path relative to the current file's directory
func (r *Renderer) resolveDepPath(depPath, currentDir string) string {
	// If the path starts with ./ or ../, it's relative to the current file
	if strings.HasPrefix(depPath, "./") || strings.HasPrefix(depPath, "../") {
		return filepath.Clean(filepath.Join(currentDir, depPath))
	}

	// Otherwise, try relative to current directory first
	absPath := filepath.Join(currentDir, depPath)
	if _, err := os.Stat(absPath); err == nil {
		return filepath.Clean(absPath)
	}

	// Try relative to work directory
	return filepath.Clean(filepath.Join(r.workDir, depPath))
}
