package shared

import (
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EnvBrowser names a browser command that overrides the platform default.
const EnvBrowser = "BROWSER"

var (
	getRuntime = func() string { return runtime.GOOS }
	startCmd   = func(cmd *exec.Cmd) error { return cmd.Start() }
)

// OpenBrowser opens link in the user's browser. Only http and https links are
// opened; OAuth consent pages and Google Play reader links are both https.
func OpenBrowser(link string) error {
	cmd, err := browserCommand(link)
	if err != nil {
		return err
	}
	if err := startCmd(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

func browserCommand(link string) (*exec.Cmd, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not a web link: %q", ErrInvalidArgument, link)
	}

	if fields := strings.Fields(os.Getenv(EnvBrowser)); len(fields) > 0 {
		return exec.Command(fields[0], append(fields[1:], link)...), nil
	}

	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", link), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", link), nil
	case "windows":
		// "cmd /c start" splits query strings on '&'.
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", link), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}
