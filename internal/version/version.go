package version

import "fmt"

var (
	CLIName    = "az"
	CLIVersion = "2.0.26"
	Commit     = "unknown"
	BuildDate  = "unknown"
)

func Long() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", CLIVersion, Commit, BuildDate)
}

// UserAgent is sent with every backend request.
func UserAgent() string {
	return fmt.Sprintf("%s-cli/%s", CLIName, CLIVersion)
}
