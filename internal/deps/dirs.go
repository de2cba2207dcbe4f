package deps

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// CheckWritableDir reports whether path is an existing directory the
// current user can create files in.
func CheckWritableDir(name, path string) Status {
	status := Status{Name: name, Command: path, Description: "directory"}
	path = strings.TrimSpace(path)
	if path == "" {
		status.Detail = "path not configured"
		return status
	}
	info, err := os.Stat(path)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	if !info.IsDir() {
		status.Detail = fmt.Sprintf("%s is not a directory", path)
		return status
	}
	if err := unix.Access(path, unix.W_OK|unix.X_OK); err != nil {
		status.Detail = fmt.Sprintf("%s not writable: %v", path, err)
		return status
	}
	status.Available = true
	return status
}
