// Package media writes ISO images to optical discs using whichever
// burning tool the host provides.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// DefaultDevices are probed in order when no device is given.
var DefaultDevices = []string{"/dev/dvd", "/dev/sr0", "/dev/cdrom"}

// ErrManual means no automatic burning path exists on this host.
var ErrManual = errors.New("automatic burning not available")

// Burner selects and runs a burning tool.
type Burner struct {
	// GOOS and KernelRelease describe the host. WSL kernels report
	// "microsoft" in their release and have no usable optical drive.
	GOOS          string
	KernelRelease string

	// DefaultDevice is used when Burn gets no device (e.g. $BURN_DEV).
	DefaultDevice string

	// Stderr receives the manual-burn hint.
	Stderr io.Writer

	Logger *slog.Logger

	lookPath func(string) (string, error)
	exists   func(string) bool
	run      func(ctx context.Context, argv []string) error
}

// NewBurner returns a Burner for the running host.
func NewBurner(defaultDevice string, logger *slog.Logger) *Burner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Burner{
		GOOS:          runtime.GOOS,
		KernelRelease: kernelRelease(),
		DefaultDevice: defaultDevice,
		Stderr:        os.Stderr,
		Logger:        logger,
		lookPath:      exec.LookPath,
		exists:        pathExists,
		run:           runCommand,
	}
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runCommand(ctx context.Context, argv []string) error {
	// #nosec G204 -- argv is chosen from a fixed set of burning tools
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

func (b *Burner) has(tool string) bool {
	_, err := b.lookPath(tool)
	return err == nil
}

// Plan returns the command that would burn iso to device. It returns
// ErrManual when the host has no drive or no supported tool.
func (b *Burner) Plan(iso, device string) ([]string, error) {
	if b.GOOS == "darwin" && b.has("drutil") {
		return []string{"drutil", "burn", "-speed", "max", iso}, nil
	}

	if b.GOOS != "linux" || strings.Contains(strings.ToLower(b.KernelRelease), "microsoft") {
		return nil, ErrManual
	}

	dev := device
	if dev == "" {
		dev = b.DefaultDevice
	}
	if dev == "" {
		for _, candidate := range DefaultDevices {
			if b.exists(candidate) {
				dev = candidate
				break
			}
		}
	}
	if dev == "" {
		return nil, fmt.Errorf("%w: no optical drive found", ErrManual)
	}

	switch {
	case b.has("growisofs"):
		return []string{"growisofs", "-speed=MAX", "-dvd-compat", "-Z", dev + "=" + iso}, nil
	case b.has("wodim"):
		return []string{"wodim", "dev=" + dev, "speed=max", "-v", "-data", iso}, nil
	case b.has("cdrecord"):
		return []string{"cdrecord", "dev=" + dev, "speed=max", "-v", "-data", iso}, nil
	default:
		return nil, fmt.Errorf("%w: no burning tool installed", ErrManual)
	}
}

// Burn writes iso to device (or the default device). A missing ISO is
// an error. When burning is not possible on this host a hint is printed
// to Stderr and Burn returns nil.
func (b *Burner) Burn(ctx context.Context, iso, device string) error {
	fi, err := os.Stat(iso)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !fi.Mode().IsRegular()) {
		return fmt.Errorf("burn iso: file not found: %s", iso)
	}
	if err != nil {
		return fmt.Errorf("burn iso: %w", err)
	}

	argv, err := b.Plan(iso, device)
	if errors.Is(err, ErrManual) {
		b.Logger.Debug("no automatic burn path", "reason", err)
		fmt.Fprintf(b.Stderr, "burn_iso: automatic burning not available; burn this ISO manually: %s\n", iso)
		return nil
	}
	if err != nil {
		return err
	}

	b.Logger.Info("burning iso", "cmd", strings.Join(argv, " "))
	return b.run(ctx, argv)
}
