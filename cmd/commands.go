package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/richard-senior/leaguesim/pkg/datasource"
	"github.com/richard-senior/leaguesim/pkg/report"
	"github.com/richard-senior/leaguesim/pkg/server"
	"github.com/richard-senior/leaguesim/pkg/store"
)

// snapshotPath is <assets>/snapshots/<league>/<YYYY-MM-DD>.json
func snapshotPath(assets, leagueName string, t time.Time) string {
	dir := filepath.Dir(report.RunDir(filepath.Join(assets, "snapshots"), leagueName, t))
	return dir + ".json"
}

func runFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	leagueArg := fs.String("league", defaultLeague, "tournament id or league name")
	out := fs.String("out", "", "snapshot file to write (default under the assets directory)")
	configPath := fs.String("config", "", "YAML or JSON configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	ctx, done := interruptContext()
	defer done()

	snap, err := loadSnapshot(ctx, cfg, *leagueArg, "")
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = snapshotPath(cfg.AssetsPath, snap.League, snap.FetchedAt)
	}
	if err := snap.Save(path); err != nil {
		return err
	}
	fmt.Printf("%s: %d teams, %d fixtures remaining, saved to %s\n",
		snap.League, len(snap.Standings.Overall), len(snap.Fixtures), path)
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML or JSON configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := loadConfig(*configPath); err != nil {
		return err
	}
	defer store.CloseDatabase()
	return server.GetInstance().Start(context.Background())
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	leagueName := fs.String("league", "", "only runs for this league name")
	limit := fs.Int("limit", 20, "number of runs to list")
	id := fs.String("id", "", "show the stored probabilities of one run")
	configPath := fs.String("config", "", "YAML or JSON configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := loadConfig(*configPath); err != nil {
		return err
	}
	defer store.CloseDatabase()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if *id != "" {
		stored, err := store.LoadRun(*id)
		if err != nil {
			return err
		}
		r := stored.Run
		fmt.Fprintf(tw, "%s (season %d), %s, %d seasons, stopped: %s\n\n",
			r.League, r.SeasonID, r.Started().Format("2006-01-02 15:04:05"), r.Completed, r.StopReason)
		fmt.Fprint(tw, "Team")
		for pos := 1; pos <= len(stored.Frequencies.Teams); pos++ {
			fmt.Fprintf(tw, "\t%d", pos)
		}
		fmt.Fprintln(tw)
		for _, team := range stored.Frequencies.Teams {
			fmt.Fprint(tw, team)
			for _, p := range stored.Frequencies.Distribution(team) {
				fmt.Fprintf(tw, "\t%.1f", p*100)
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	}

	runs, err := store.ListRuns(*leagueName, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}
	fmt.Fprintln(tw, "ID\tLeague\tStarted\tSeasons\tElapsed\tStopped")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.League,
			r.Started().Format("2006-01-02 15:04"), r.Completed, report.FormatDuration(r.Elapsed()), r.StopReason)
	}
	return tw.Flush()
}

func runLeagues(args []string) error {
	fs := flag.NewFlagSet("leagues", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLeague")
	for _, l := range datasource.Leagues() {
		fmt.Fprintf(tw, "%d\t%s\n", l.ID, l.Name)
	}
	return tw.Flush()
}
