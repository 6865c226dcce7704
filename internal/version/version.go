package version

import (
	"fmt"
	"log"
	"strings"
)

var (
	Name        = "coxswain"
	Authors     = "Tidemark Labs"
	Description = "Adaptive model routing engine"
	Version     = "v0.1.0"
	Commit      = "none"
	Date        = "nowish"
	User        = "local"
)

const (
	GithubHomeUri   = "https://github.com/tidemark-ai/coxswain"
	GithubLatestUri = "https://github.com/tidemark-ai/coxswain/releases/latest"
)

func PrintVersionInfo(extendedInfo bool, vlog *log.Logger) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s %s - %s\n", Name, Version, Description))
	b.WriteString(fmt.Sprintf(" Home: %s\n", GithubHomeUri))

	if extendedInfo {
		b.WriteString(fmt.Sprintf(" Commit: %s\n", Commit))
		b.WriteString(fmt.Sprintf("  Built: %s\n", Date))
		b.WriteString(fmt.Sprintf("  Using: %s\n", User))
	}

	vlog.Println(b.String())
}
