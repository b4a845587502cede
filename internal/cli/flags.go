package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	DB      string `long:"db" description:"Path to the SQLite database (overrides config)"`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand shows database totals, tracking state and daemon health.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// StartCommand begins a new journey and makes it current.
type StartCommand struct {
	Args struct {
		Title []string `positional-arg-name:"title"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ListCommand lists journeys, most recently updated first.
type ListCommand struct {
	Limit int `long:"limit" description:"Maximum journeys to show (0 for all)" default:"0"`

	globals *GlobalFlags
	version string
}

// TreeCommand prints a journey as an indented tree.
type TreeCommand struct {
	Args struct {
		ID int64 `positional-arg-name:"journey-id" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// InsightsCommand prints the insights report of a journey.
type InsightsCommand struct {
	Threshold float64 `long:"dead-end-threshold" description:"Dead-end threshold in seconds" default:"30"`

	Args struct {
		ID int64 `positional-arg-name:"journey-id" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// NodeCommand prints one stored node.
type NodeCommand struct {
	Format string `long:"format" description:"Output format: full | md | json | metadata | url | title" default:"full"`

	Args struct {
		ID string `positional-arg-name:"node-id" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// SearchCommand finds nodes whose title, URL or keywords match a query.
type SearchCommand struct {
	Domain  []string `long:"domain" description:"Filter by hostname substring (repeatable)"`
	Journey int64    `long:"journey" description:"Only search this journey"`
	Since   string   `long:"since" description:"Only nodes newer than duration (e.g., 7d, 24h, 2w)"`
	Limit   int      `long:"limit" description:"Maximum results" default:"20"`

	Args struct {
		Query []string `positional-arg-name:"query"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ExportCommand writes a journey document.
type ExportCommand struct {
	Output      string `short:"o" long:"output" description:"Write to file instead of stdout"`
	Screenshots bool   `long:"screenshots" description:"Include screenshot data"`
	Private     bool   `long:"private" description:"Drop nodes on excluded domains and all screenshots"`

	Args struct {
		ID int64 `positional-arg-name:"journey-id" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// ImportCommand reads a journey document and stores it as a new journey.
type ImportCommand struct {
	Args struct {
		File string `positional-arg-name:"file" required:"yes" description:"Document path, or - for stdin"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// BackupCommand writes every journey, with screenshots, to one document.
type BackupCommand struct {
	Output string `short:"o" long:"output" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	version string
}

// RestoreCommand imports every journey of a backup document.
type RestoreCommand struct {
	Args struct {
		File string `positional-arg-name:"file" required:"yes" description:"Backup path, or - for stdin"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// NoteCommand sets the note of a node.
type NoteCommand struct {
	Args struct {
		ID   string   `positional-arg-name:"node-id" required:"yes"`
		Text []string `positional-arg-name:"text"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// AhaCommand flags a node as an "Aha!" moment.
type AhaCommand struct {
	Args struct {
		ID string `positional-arg-name:"node-id" required:"yes"`
	} `positional-args:"yes"`

	globals *GlobalFlags
	version string
}

// SettingsCommand shows or changes persisted settings.
type SettingsCommand struct {
	Set []string `long:"set" description:"Set key=value; value is parsed as YAML (repeatable)"`

	globals *GlobalFlags
	version string
}

// ServeCommand runs the local daemon in the foreground.
type ServeCommand struct {
	Host     string `long:"host" description:"Override daemon host"`
	Port     int    `long:"port" description:"Override daemon port"`
	LogLevel string `long:"log-level" description:"Override log level"`

	globals *GlobalFlags
	version string
}

// PruneCommand expires old screenshots and journeys.
type PruneCommand struct {
	ScreenshotsOlderThan string `long:"screenshots-older-than" description:"Override screenshot retention (e.g., 30d)"`
	JourneysOlderThan    string `long:"journeys-older-than" description:"Override journey retention (e.g., 90d)"`
	DryRun               bool   `long:"dry-run" description:"Show what would be pruned without deleting"`
	Force                bool   `long:"force" description:"Skip confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}

// PurgeCommand deletes all journeys and nodes with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	stdin   io.Reader
}
