package update

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/fatih/color"
	"golang.org/x/sys/unix"

	"github.com/stackmill/awsmod/internal/build_info"
)

const slug = "stackmill/awsmod"

type Updater struct {
	opts UpdaterOpts
}

type UpdaterOpts struct {
	Force     bool
	CheckOnly bool
}

func NewUpdater(opts UpdaterOpts) *Updater {
	return &Updater{
		opts: opts,
	}
}

func (u *Updater) Run() error {
	currentVersion := build_info.Version

	// Dev builds have no release to compare against.
	if (currentVersion == "" || currentVersion == build_info.DefaultDevVersion) && !u.opts.Force {
		slog.Info("this is a development build; skipping the release check (pass --force to install the latest release anyway)")
		return nil
	}

	exePath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}
	if err := u.verifyWritePermissions(exePath); err != nil {
		rerun := "sudo awsmod " + strings.Join(os.Args[1:], " ")
		return fmt.Errorf("the awsmod binary lives in a directory this user cannot write to\nrerun as: %s", color.GreenString(rerun))
	}

	latest, found, err := selfupdate.DetectLatest(context.Background(), selfupdate.ParseSlug(slug))
	if err != nil {
		return fmt.Errorf("failed to check for releases: %w", err)
	}
	if !found {
		return fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	if latest.LessOrEqual(currentVersion) {
		slog.Info(fmt.Sprintf("awsmod %s is up to date", currentVersion))
		return nil
	}

	if u.opts.CheckOnly {
		slog.Info(fmt.Sprintf("release %s is available (installed: %s); rerun without --check-only to install it", latest.Version(), currentVersion))
		return nil
	}

	if !u.opts.Force && !u.askForConfirmation(fmt.Sprintf("Install awsmod %s over %s? (y/N): ", latest.Version(), currentVersion)) {
		slog.Warn("update declined, nothing changed")
		return nil
	}

	slog.Info(fmt.Sprintf("installing awsmod %s", latest.Version()))
	if err := selfupdate.UpdateTo(context.Background(), latest.AssetURL, latest.AssetName, exePath); err != nil {
		return fmt.Errorf("failed to install %s: %w", latest.Version(), err)
	}

	slog.Info(fmt.Sprintf("awsmod is now at %s", latest.Version()))
	return nil
}

// verifyWritePermissions rejects early so a half-downloaded binary never hits a
// read-only install directory. Linux and macOS only.
func (u *Updater) verifyWritePermissions(path string) error {
	dir := filepath.Dir(path)
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory %s is not writable", dir)
	}
	return nil
}

func (u *Updater) askForConfirmation(prompt string) bool {
	fmt.Print(prompt)
	response, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
