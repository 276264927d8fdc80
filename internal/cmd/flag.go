package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	required                             bool
	isBool                               bool
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $TASKDOG_HOME/config.yaml)",
	}
	hostFlag = commandLineFlag{
		name:      "host",
		shorthand: "s",
		usage:     "server host",
	}
	portFlag = commandLineFlag{
		name:      "port",
		shorthand: "p",
		usage:     "server port",
	}
	algorithmFlag = commandLineFlag{
		name:      "algorithm",
		shorthand: "a",
		usage:     "scheduling algorithm (greedy, balanced, backward, round_robin)",
	}
	startDateFlag = commandLineFlag{
		name:  "start-date",
		usage: "first date the optimizer may allocate (YYYY-MM-DD, default today)",
	}
	maxHoursFlag = commandLineFlag{
		name:  "max-hours",
		usage: "per-day capacity in hours (default from config)",
	}
	forceFlag = commandLineFlag{
		name:   "force",
		usage:  "reschedule fixed tasks and clear schedules the run declined to renew",
		isBool: true,
	}
	allDaysFlag = commandLineFlag{
		name:   "all-days",
		usage:  "allocate on weekends and holidays too",
		isBool: true,
	}
	statusFlag = commandLineFlag{
		name:  "status",
		usage: "filter by status (pending, in_progress, completed, canceled)",
	}
	tagFlag = commandLineFlag{
		name:  "tag",
		usage: "filter by tag",
	}
	archivedFlag = commandLineFlag{
		name:   "archived",
		usage:  "show archived tasks only",
		isBool: true,
	}
	allFlag = commandLineFlag{
		name:   "all",
		usage:  "include archived tasks",
		isBool: true,
	}
	periodFlag = commandLineFlag{
		name:         "period",
		defaultValue: "7d",
		usage:        "statistics window (7d, 30d, all)",
	}
)

func initFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	addFlags = append(addFlags, configFlag)
	for _, flag := range addFlags {
		if flag.isBool {
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
		} else {
			cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
		}
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
	cmd.Flags().BoolP("quiet", "q", false, "suppress console output")
}

// bindFlags exposes the command's flags through viper so NewContext can read
// them without threading the cobra command everywhere.
func bindFlags(cmd *cobra.Command, flags []commandLineFlag) {
	names := []string{"config"}
	for _, flag := range flags {
		names = append(names, flag.name)
	}
	for _, name := range names {
		_ = viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}
