package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner with version details
func PrintBanner(version string) {
	b := banner.New().SetWidth(60)
	b.PrintTopLine()
	b.PrintCenteredText("Doceo")
	b.PrintCenteredText("training job orchestration")
	b.PrintSeparatorLine()
	b.PrintKeyValue("version", version, 2)
	b.PrintKeyValue("build", GetBuild(), 2)
	b.PrintBottomLine()
}
