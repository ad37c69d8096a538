// Package library places the helper's source file inside a local checkout of
// the server's object library, so the server can compile it.
package library

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/universal-console/dgdconsole/internal/logging"
)

// StatusHeader is the file that identifies the root of a kernel library
const StatusHeader = "include/status.h"

// Installer copies the helper source into the library when it is missing.
type Installer struct {
	libraryPath string
	sourceFile  string
	logger      *logging.Logger
}

// NewInstaller creates an installer for the library rooted at libraryPath.
// sourceFile is the local helper source copied when the library lacks one.
func NewInstaller(libraryPath, sourceFile string) *Installer {
	return &Installer{
		libraryPath: libraryPath,
		sourceFile:  sourceFile,
		logger:      logging.GetProvisionerLogger().WithField("library", libraryPath),
	}
}

// TargetPath returns where helperPath lives inside the library
func (i *Installer) TargetPath(helperPath string) string {
	return filepath.Join(i.libraryPath, filepath.FromSlash(strings.TrimPrefix(helperPath, "/")))
}

// EnsureHelperSource makes sure the helper source exists in the library.
func (i *Installer) EnsureHelperSource(helperPath string) error {
	if i.libraryPath == "" {
		return fmt.Errorf("library path is not configured")
	}

	if _, err := os.Stat(filepath.Join(i.libraryPath, filepath.FromSlash(StatusHeader))); err != nil {
		return fmt.Errorf("could not locate /%s, library path must be the root of your DGD library", StatusHeader)
	}

	target := i.TargetPath(helperPath)
	if _, err := os.Stat(target); err == nil {
		i.logger.Debug("Helper source already present", "path", target)
		return nil
	}

	if i.sourceFile == "" {
		return fmt.Errorf("%s is missing and no helper source file is configured", target)
	}

	if err := copyFile(i.sourceFile, target); err != nil {
		return fmt.Errorf("failed to install helper source: %w", err)
	}
	i.logger.Info("Copied helper source", "from", i.sourceFile, "to", target)
	return nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		return err
	}

	dst, err := os.OpenFile(to, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
