package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status   *StatusCommand
	Start    *StartCommand
	List     *ListCommand
	Tree     *TreeCommand
	Insights *InsightsCommand
	Node     *NodeCommand
	Search   *SearchCommand
	Export   *ExportCommand
	Import   *ImportCommand
	Backup   *BackupCommand
	Restore  *RestoreCommand
	Note     *NoteCommand
	Aha      *AhaCommand
	Settings *SettingsCommand
	Serve    *ServeCommand
	Prune    *PruneCommand
	Purge    *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "burrow"
	parser.LongDescription = "Track browsing sessions as journey trees and analyze how you got where you are."

	cmds := &commands{
		Status:   &StatusCommand{globals: &globals, version: version},
		Start:    &StartCommand{globals: &globals, version: version},
		List:     &ListCommand{globals: &globals, version: version},
		Tree:     &TreeCommand{globals: &globals, version: version},
		Insights: &InsightsCommand{globals: &globals, version: version},
		Node:     &NodeCommand{globals: &globals, version: version},
		Search:   &SearchCommand{globals: &globals, version: version},
		Export:   &ExportCommand{globals: &globals, version: version},
		Import:   &ImportCommand{globals: &globals, version: version},
		Backup:   &BackupCommand{globals: &globals, version: version},
		Restore:  &RestoreCommand{globals: &globals, version: version},
		Note:     &NoteCommand{globals: &globals, version: version},
		Aha:      &AhaCommand{globals: &globals, version: version},
		Settings: &SettingsCommand{globals: &globals, version: version},
		Serve:    &ServeCommand{globals: &globals, version: version},
		Prune:    &PruneCommand{globals: &globals, version: version},
		Purge:    &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show database totals and daemon health", "Show journey and node totals, tracking state, retention and whether the daemon is running.", cmds.Status)
	parser.AddCommand("start", "Start a new journey", "Start a new journey and make it current. Without a title the configured default name is used.", cmds.Start)
	parser.AddCommand("list", "List journeys", "List journeys, most recently updated first.", cmds.List)
	parser.AddCommand("tree", "Print a journey tree", "Print a journey as an indented tree with focus time per page.", cmds.Tree)
	parser.AddCommand("insights", "Analyze a journey", "Show dead ends, topic drift, the longest path, time allocation and Aha! moments of a journey.", cmds.Insights)
	parser.AddCommand("node", "Print a stored node", "Print the stored details of a single node.", cmds.Node)
	parser.AddCommand("search", "Search visited pages", "Search nodes by title, URL or keyword, with optional filters.", cmds.Search)
	parser.AddCommand("export", "Export a journey", "Export a journey as a portable JSON document.", cmds.Export)
	parser.AddCommand("import", "Import a journey", "Import a journey document as a new shared journey with fresh node ids.", cmds.Import)
	parser.AddCommand("backup", "Back up all journeys", "Write every journey and its nodes, including screenshots, to one document.", cmds.Backup)
	parser.AddCommand("restore", "Restore a backup", "Import every journey of a backup document.", cmds.Restore)
	parser.AddCommand("note", "Annotate a node", "Set the note of a node. An empty text clears it.", cmds.Note)
	parser.AddCommand("aha", "Mark an Aha! moment", "Flag a node as a notable discovery.", cmds.Aha)
	parser.AddCommand("settings", "Show or change settings", "Show persisted settings, or change them with --set key=value.", cmds.Settings)
	serve, _ := parser.AddCommand("serve", "Run the burrow daemon", "Run the local HTTP daemon that receives tab events from the browser extension.", cmds.Serve)
	if serve != nil {
		serve.Aliases = []string{"ingest"}
	}
	parser.AddCommand("prune", "Expire old data", "Clear old screenshots and delete old journeys per the retention settings.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL burrow data", "Delete ALL journeys and nodes. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the burrow CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("burrow %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
