package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kunchev/go-linux-installer/pkg/errdefs"
	"github.com/kunchev/go-linux-installer/pkg/logger"
)

// Markers delimiting the managed block. Everything between them belongs to
// this tool, everything outside stays untouched.
const (
	blockStart = "# >>> go-linux-installer >>>"
	blockEnd   = "# <<< go-linux-installer <<<"
)

// Options configures a Configurator.
type Options struct {
	File      string // explicit profile path, empty means detect from $SHELL
	GoPath    string
	Workspace bool // create $GOPATH/{src,pkg,bin}
}

// Configurator rewrites the user's shell profile so new sessions find the
// installed toolchain. Edits happen inside one marker delimited block and
// replace any previous block, applying twice changes nothing.
type Configurator struct {
	file      string
	goPath    string
	workspace bool
	logger    *logger.Logger

	homeFn func() (string, error)
	envFn  func(string) string
}

// NewConfigurator creates a Configurator.
func NewConfigurator(opts Options) *Configurator {
	return &Configurator{
		file:      opts.File,
		goPath:    opts.GoPath,
		workspace: opts.Workspace,
		logger:    logger.NewLogger("profile"),
		homeFn:    os.UserHomeDir,
		envFn:     os.Getenv,
	}
}

// Apply points the managed profile block at installDir and, when enabled,
// prepares the GOPATH workspace directories.
func (c *Configurator) Apply(installDir string) error {
	path, err := c.profilePath()
	if err != nil {
		return err
	}

	if err := c.writeBlock(path, installDir); err != nil {
		return err
	}
	c.logger.WithFields(logger.Fields{
		"profile": path,
		"goroot":  installDir,
	}).Info("Shell profile updated")

	if c.workspace && c.goPath != "" {
		if err := c.ensureWorkspace(); err != nil {
			return err
		}
	}
	return nil
}

// ProfilePath reports which profile file Apply writes to.
func (c *Configurator) ProfilePath() (string, error) {
	return c.profilePath()
}

// DetectShell infers the user's shell from $SHELL, defaulting to bash.
func (c *Configurator) DetectShell() (string, error) {
	shellPath := c.envFn("SHELL")
	if shellPath == "" {
		shellPath = "bash"
	}
	shell := filepath.Base(shellPath)
	switch shell {
	case "bash", "zsh":
		return shell, nil
	default:
		return "", fmt.Errorf("%w: unsupported shell %q, set profile.file explicitly", errdefs.ErrConfigWrite, shell)
	}
}

// profilePath picks the file carrying the managed block.
func (c *Configurator) profilePath() (string, error) {
	if c.file != "" {
		return c.file, nil
	}

	shell, err := c.DetectShell()
	if err != nil {
		return "", err
	}

	home, err := c.homeFn()
	if err != nil {
		return "", fmt.Errorf("%w: resolve home dir: %w", errdefs.ErrConfigWrite, err)
	}

	switch shell {
	case "zsh":
		return filepath.Join(home, ".zshrc"), nil
	default:
		rc := filepath.Join(home, ".bashrc")
		if fileExists(rc) {
			return rc, nil
		}
		return filepath.Join(home, ".profile"), nil
	}
}

func (c *Configurator) writeBlock(path, installDir string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create profile dir: %w", errdefs.ErrConfigWrite, err)
	}

	mode := os.FileMode(0644)
	var existing []byte
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
		existing, err = os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%w: read %s: %w", errdefs.ErrConfigWrite, path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", errdefs.ErrConfigWrite, path, err)
	}

	merged := mergeProfile(string(existing), c.buildBlock(installDir))

	// Rewrite through a uniquely named sibling so a crash can never leave
	// the profile half written.
	tmp := path + "." + uuid.NewString() + ".tmp"
	if err := os.WriteFile(tmp, []byte(merged), mode); err != nil {
		return fmt.Errorf("%w: write %s: %w", errdefs.ErrConfigWrite, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %w", errdefs.ErrConfigWrite, path, err)
	}
	return nil
}

func (c *Configurator) buildBlock(installDir string) string {
	goPath := c.goPath
	if goPath == "" {
		goPath = "$HOME/go"
	}
	lines := []string{
		blockStart,
		fmt.Sprintf("export GOROOT=\"%s\"", installDir),
		fmt.Sprintf("export GOPATH=\"${GOPATH:-%s}\"", goPath),
		`export PATH="$GOROOT/bin:$GOPATH/bin:$PATH"`,
		blockEnd,
	}
	return strings.Join(lines, "\n")
}

// ensureWorkspace creates the classic GOPATH layout.
func (c *Configurator) ensureWorkspace() error {
	for _, sub := range []string{"src", "pkg", "bin"} {
		dir := filepath.Join(c.goPath, sub)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create workspace dir %s: %w", errdefs.ErrConfigWrite, dir, err)
		}
	}
	c.logger.WithFields(logger.Fields{"gopath": c.goPath}).Debug("Workspace directories ready")
	return nil
}

func mergeProfile(existing, block string) string {
	cleaned := removeManagedBlock(existing)
	cleaned = strings.TrimRight(cleaned, "\n")
	if strings.TrimSpace(cleaned) == "" {
		return block + "\n"
	}
	return cleaned + "\n\n" + block + "\n"
}

func removeManagedBlock(content string) string {
	var builder strings.Builder
	skipping := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == blockStart {
			skipping = true
			continue
		}
		if trimmed == blockEnd {
			skipping = false
			continue
		}
		if skipping {
			continue
		}
		if line == "" && builder.Len() == 0 {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte('\n')
		}
		builder.WriteString(line)
	}
	return strings.Trim(builder.String(), "\n")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
