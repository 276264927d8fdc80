package build

import "strings"

var (
	Version = "dev"
	AppName = "Taskdog"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
